// Package extract turns downloaded files into plain-text documents.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileType is a supported document format, keyed by file extension.
type FileType string

const (
	CSV      FileType = "csv"
	DOCX     FileType = "docx"
	PDF      FileType = "pdf"
	PPTX     FileType = "pptx"
	Text     FileType = "txt"
	Markdown FileType = "md"
)

// FileTypes lists every supported format.
var FileTypes = []FileType{CSV, DOCX, PDF, PPTX, Text, Markdown}

// ParseFileType maps an extension (with or without the dot) to a FileType.
func ParseFileType(ext string) (FileType, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, ft := range FileTypes {
		if string(ft) == ext {
			return ft, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

// FileTypeOf returns the FileType for a path based on its extension.
func FileTypeOf(path string) (FileType, error) {
	return ParseFileType(filepath.Ext(path))
}

func (t FileType) String() string {
	return string(t)
}
