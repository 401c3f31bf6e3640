package optimize

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// maxFrameSize bounds one streamed line. Backends chunk content into small
// deltas; a line beyond this means a broken stream.
const maxFrameSize = 1024 * 1024

// frameFunc decodes one wire line into a content delta. done marks the
// backend's terminal frame; lines carrying nothing return ("", false, nil).
type frameFunc func(line []byte) (delta string, done bool, err error)

// DeltaStream is a cancellable lazy sequence of content deltas from a
// streaming backend. Usage mirrors bufio.Scanner:
//
//	for s.Next() {
//		b.WriteString(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Close releases the underlying connection and may be called at any time,
// including mid-stream to abandon the rest.
type DeltaStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  frameFunc
	delta   string
	done    bool
	err     error
}

func newDeltaStream(body io.ReadCloser, decode frameFunc) *DeltaStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), maxFrameSize)
	return &DeltaStream{body: body, scanner: sc, decode: decode}
}

// Next advances to the next non-empty delta. It returns false at the
// terminal frame, on error, and at connection end.
func (s *DeltaStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		delta, done, err := s.decode(line)
		if err != nil {
			s.err = err
			return false
		}
		if done {
			s.done = true
			if delta != "" {
				s.delta = delta
				return true
			}
			return false
		}
		if delta == "" {
			continue
		}
		s.delta = delta
		return true
	}
	if err := s.scanner.Err(); err != nil {
		s.err = err
	}
	s.done = true
	return false
}

// Text returns the delta read by the last successful Next.
func (s *DeltaStream) Text() string {
	return s.delta
}

// Err returns the first error hit while streaming.
func (s *DeltaStream) Err() error {
	return s.err
}

// Close releases the connection.
func (s *DeltaStream) Close() error {
	return s.body.Close()
}

// joinStream drains a freshly opened stream into a single Result, applying
// the same fallback contract as a non-streaming call.
func joinStream(stream *DeltaStream, src Source) Result {
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		b.WriteString(stream.Text())
	}
	if err := stream.Err(); err != nil {
		return fallback(src, err)
	}
	out := b.String()
	if strings.TrimSpace(out) == "" {
		return fallback(src, ErrEmptyResponse)
	}
	return Result{Content: out}
}
