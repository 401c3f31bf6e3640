package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidePattern matches slide part names inside a PowerPoint archive.
var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// docxText extracts the paragraph text of a Word (.docx) attachment. The
// document is a zip archive whose word/document.xml part carries the text
// in w:t runs grouped into w:p paragraphs.
func docxText(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open word archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document part: %w", err)
		}
		text, err := collectTextRuns(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document part: %w", err)
		}
		return text, nil
	}
	return "", ErrNoDocumentPart
}

// pptxText extracts the shape text of a PowerPoint (.pptx) attachment,
// slides joined in presentation order. Slide parts carry their text in a:t
// runs grouped into a:p paragraphs.
func pptxText(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open powerpoint archive: %w", err)
	}
	defer r.Close()

	type slidePart struct {
		num  int
		file *zip.File
	}
	var slides []slidePart
	for _, f := range r.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slidePart{num: n, file: f})
	}
	if len(slides) == 0 {
		return "", ErrNoSlideParts
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("open slide %d: %w", s.num, err)
		}
		text, err := collectTextRuns(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read slide %d: %w", s.num, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// collectTextRuns walks an Office XML part and joins its text runs:
// character data inside <t> elements is collected, paragraph ends become
// newlines, blank paragraphs are dropped. The same walk covers
// WordprocessingML (w:t/w:p) and DrawingML (a:t/a:p) because only local
// names are matched.
func collectTextRuns(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var out strings.Builder
	var para strings.Builder
	inRun := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.CharData:
			if inRun {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				if line := strings.TrimSpace(para.String()); line != "" {
					out.WriteString(line)
					out.WriteByte('\n')
				}
				para.Reset()
			}
		}
	}

	if line := strings.TrimSpace(para.String()); line != "" {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return strings.TrimSpace(out.String()), nil
}
