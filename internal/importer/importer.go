// Package importer converts uploaded documents into markdown source so they
// can be edited and previewed. Each format maps headings and paragraphs onto
// their markdown equivalents; layout fidelity is not a goal.
package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Importer converts one document format into markdown.
type Importer interface {
	Import(r io.Reader, filename string) (string, error)
}

// SupportedExtensions lists the upload formats previewd accepts.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the importer for a filename.
func ForFile(filename string) (Importer, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return &MarkdownImporter{}, nil
	case ".txt":
		return &TextImporter{}, nil
	case ".csv":
		return &CSVImporter{}, nil
	case ".html", ".htm":
		return &HTMLImporter{}, nil
	case ".pdf":
		return &PDFImporter{}, nil
	case ".docx":
		return &DOCXImporter{}, nil
	}
	return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename))
}

// IsSupportedExtension checks whether a filename can be imported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// MarkdownImporter passes markdown through untouched.
type MarkdownImporter struct{}

func (p *MarkdownImporter) Import(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// mdDoc accumulates markdown output: headings at their level, paragraphs
// separated by blank lines.
type mdDoc struct {
	buf strings.Builder
}

func (d *mdDoc) heading(level int, title string) {
	if title == "" {
		return
	}
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	d.separate()
	d.buf.WriteString(strings.Repeat("#", level))
	d.buf.WriteByte(' ')
	d.buf.WriteString(title)
	d.buf.WriteByte('\n')
}

func (d *mdDoc) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.separate()
	d.buf.WriteString(text)
	d.buf.WriteByte('\n')
}

func (d *mdDoc) separate() {
	if d.buf.Len() > 0 {
		d.buf.WriteByte('\n')
	}
}

func (d *mdDoc) String() string {
	return d.buf.String()
}
