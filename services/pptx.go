package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const pptxMimeType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

const drawingMLNamespace = "http://schemas.openxmlformats.org/drawingml/2006/main"

var slidePartName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func isPresentation(filename, mimeType string) bool {
	return mimeType == pptxMimeType || strings.EqualFold(filepath.Ext(filename), ".pptx")
}

type slidePart struct {
	number int
	file   *zip.File
}

// extractSlideText returns the text of every slide in slide order, one
// paragraph per line.
func extractSlideText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a pptx archive: %w", err)
	}

	var slides []slidePart
	for _, f := range zr.File {
		m := slidePartName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slidePart{number: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var lines []string
	for _, s := range slides {
		paragraphs, err := slideParagraphs(s.file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", s.file.Name, err)
		}
		lines = append(lines, paragraphs...)
	}
	return strings.Join(lines, "\n"), nil
}

// slideParagraphs collects the a:t runs of each a:p paragraph in one slide.
func slideParagraphs(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return paragraphs, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == drawingMLNamespace && t.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != drawingMLNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		}
	}
}
