package fetch

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// DecodeStream wraps r to undo the transfer encoding named by the
// Content-Encoding header. It understands gzip and deflate; for deflate it
// distinguishes zlib-wrapped from raw streams by peeking at the first byte,
// because servers disagree about what "deflate" means.
//
// An empty or "identity" encoding returns r unchanged.
func DecodeStream(r io.Reader, contentEncoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return r, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, nil
	case "deflate":
		br := bufio.NewReader(r)
		head, err := br.Peek(1)
		if err != nil {
			return nil, fmt.Errorf("deflate decode: %w", err)
		}
		// 0x78 is the zlib CMF byte for the deflate method with a 32KB
		// window, which covers every real zlib stream we see.
		if head[0] == 0x78 {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, fmt.Errorf("zlib decode: %w", err)
			}
			return zr, nil
		}
		return flate.NewReader(br), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
}

// DecodeBody reads an HTML response body into a UTF-8 string. The stream is
// first unwrapped per contentEncoding, then converted from the document's
// character set, determined from the Content-Type header, a BOM, or meta
// tags in the first kilobyte. Wikis of this vintage serve GBK and GB2312
// often enough that skipping this step garbles real content.
//
// Anything in the GBK family is decoded as GB18030: deployments labelled
// gb2312 routinely contain characters outside that set, and GB18030 is a
// strict superset of both.
func DecodeBody(r io.Reader, contentEncoding, contentType string) (string, error) {
	decoded, err := DecodeStream(r, contentEncoding)
	if err != nil {
		return "", err
	}

	br := bufio.NewReader(decoded)
	peek, _ := br.Peek(1024)
	enc, name, _ := charset.DetermineEncoding(peek, contentType)
	if name == "gbk" || name == "gb18030" {
		enc = simplifiedchinese.GB18030
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, transform.NewReader(br, enc.NewDecoder())); err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return sb.String(), nil
}
