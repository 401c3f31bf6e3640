package report

import (
	"io"

	"github.com/nao1215/wikimirror/internal/model"
)

// Writer defines the interface for report output.
// Implementations write mirror run results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.MirrorResult) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write run results, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(result *model.MirrorResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText renders the run status for human-readable formats.
func statusText(result *model.MirrorResult) string {
	switch result.Status {
	case model.RunCompleted:
		if result.CountByStatus(model.StatusFailed) > 0 {
			return "Completed with failures"
		}
		return "Completed"
	case model.RunCanceled:
		return "Canceled (partial results)"
	case model.RunFailed:
		return "Failed before mirroring"
	case model.RunRunning:
		return "Running"
	default:
		return result.Status
	}
}
