package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// External binaries. Both are optional at runtime; a missing binary
// degrades extraction for the types that need it.
const (
	tesseractBin = "tesseract"
	pdftoppmBin  = "pdftoppm"
)

// rasterDPI is the resolution PDF pages are rendered at before OCR. CJK
// glyphs need at least this much to stay legible for tesseract.
const rasterDPI = "150"

// ocrImage runs tesseract over one image file and returns the recognized
// text.
func (e *Extractor) ocrImage(ctx context.Context, imagePath string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tesseractBin, imagePath, "stdout", "-l", e.ocrLang)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", binaryError(tesseractBin, err, &stderr)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// pdfText rasterizes a PDF into page images and OCRs each page in order.
// The page images live in their own directory under the scratch root and
// are removed with it before returning.
func (e *Extractor) pdfText(ctx context.Context, pdfPath string) (string, error) {
	pageDir, err := os.MkdirTemp(e.scratchRoot(), "pdfpages-")
	if err != nil {
		return "", fmt.Errorf("pdf page dir: %w", err)
	}
	defer os.RemoveAll(pageDir)

	prefix := filepath.Join(pageDir, "page")
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, pdftoppmBin, "-png", "-r", rasterDPI, pdfPath, prefix)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", binaryError(pdftoppmBin, err, &stderr)
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", fmt.Errorf("list pdf pages: %w", err)
	}
	sortPages(pages)

	var parts []string
	for _, page := range pages {
		text, err := e.ocrImage(ctx, page)
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// sortPages orders pdftoppm output by page number. The numbers in the
// filenames are padded to a uniform width per document, but numeric order
// does not depend on that.
func sortPages(pages []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndexByte(base, '-')
		if i < 0 {
			return 0
		}
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.Slice(pages, func(i, j int) bool { return num(pages[i]) < num(pages[j]) })
}

// binaryError wraps an external binary failure, marking missing binaries
// with ErrOCRUnavailable and surfacing stderr for everything else.
func binaryError(bin string, err error, stderr *bytes.Buffer) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s: %w", bin, ErrOCRUnavailable)
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%s: %v: %s", bin, err, msg)
	}
	return fmt.Errorf("%s: %w", bin, err)
}
