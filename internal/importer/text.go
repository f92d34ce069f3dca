package importer

import (
	"bufio"
	"io"
	"strings"
)

// TextImporter turns plain text into markdown: paragraphs separated by blank
// lines survive as paragraphs.
type TextImporter struct{}

func (p *TextImporter) Import(r io.Reader, filename string) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var doc mdDoc
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			doc.paragraph(current.String())
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return "", err
	}
	return doc.String(), nil
}
