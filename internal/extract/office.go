package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DOCXExtractor reads paragraph text from word/document.xml.
type DOCXExtractor struct{}

// NewDOCX creates a DOCX extractor.
func NewDOCX() *DOCXExtractor {
	return &DOCXExtractor{}
}

// Extract returns one line per paragraph.
func (e *DOCXExtractor) Extract(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name == "word/document.xml" {
			return xmlText(file)
		}
	}
	return "", fmt.Errorf("%w: word/document.xml not found", ErrInvalidFile)
}

// PPTXExtractor reads text frames from every slide in slide order.
type PPTXExtractor struct{}

// NewPPTX creates a PPTX extractor.
func NewPPTX() *PPTXExtractor {
	return &PPTXExtractor{}
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Extract returns slides separated by blank lines.
func (e *PPTXExtractor) Extract(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer reader.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range reader.File {
		m := slideName.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		text, err := xmlText(s.file)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// xmlText streams an OOXML part and collects <t> runs, ending a line at each </p>.
// WordprocessingML (w:) and DrawingML (a:) share these local names.
func xmlText(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var b strings.Builder
	var line strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidFile, file.Name, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteByte('\t')
			case "br":
				line.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(line.String()); s != "" {
					if b.Len() > 0 {
						b.WriteByte('\n')
					}
					b.WriteString(s)
				}
				line.Reset()
			}
		case xml.CharData:
			if inText {
				line.Write(el)
			}
		}
	}

	if s := strings.TrimSpace(line.String()); s != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s)
	}
	return b.String(), nil
}
