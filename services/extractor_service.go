package services

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github/itish2003/autorag/logger"
	"github/itish2003/autorag/models"
)

// Extractor turns an uploaded file into plain text. An empty string with a nil
// error means no text could be produced and the file should be skipped.
type Extractor interface {
	Extract(ctx context.Context, file models.UploadedFile) (string, error)
}

var (
	licenseOnce sync.Once
	licenseErr  error
)

type extractorImpl struct {
	reader      FileReader
	generator   TextGenerator
	pdfLicensed bool
}

// NewExtractor reads text and markdown directly, PDFs with unipdf when a
// license key is given, slide text of presentations through generator, and
// everything else through reader.
func NewExtractor(reader FileReader, generator TextGenerator, unidocKey string) Extractor {
	e := &extractorImpl{reader: reader, generator: generator}
	if key := strings.TrimSpace(unidocKey); key != "" {
		licenseOnce.Do(func() {
			licenseErr = license.SetMeteredKey(key)
		})
		if licenseErr != nil {
			logger.Error("failed to set Unidoc license key; PDFs go through the model", "error", licenseErr)
		} else {
			e.pdfLicensed = true
		}
	}
	return e
}

func (e *extractorImpl) Extract(ctx context.Context, file models.UploadedFile) (string, error) {
	if len(file.Data) == 0 {
		return "", nil
	}
	mimeType := detectMimeType(file)
	switch {
	case isPlainText(file.Filename, mimeType):
		return string(file.Data), nil
	case isPresentation(file.Filename, mimeType):
		return e.extractPresentation(ctx, file)
	case mimeType == "application/pdf" && e.pdfLicensed:
		text, err := extractTextFromPDF(file.Data)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		logger.FromContext(ctx).Warn("unipdf extraction failed; falling back to model", "filename", file.Filename, "error", err)
	}
	if e.reader == nil || !e.reader.Available() {
		return "", nil
	}
	text, err := e.reader.ReadFile(ctx, file.Data, mimeType)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", file.Filename, err)
	}
	return text, nil
}

// extractPresentation reads slide text locally and asks the model to clean it.
// Without a model the raw slide text is returned.
func (e *extractorImpl) extractPresentation(ctx context.Context, file models.UploadedFile) (string, error) {
	slideText, err := extractSlideText(file.Data)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", file.Filename, err)
	}
	if strings.TrimSpace(slideText) == "" {
		return "", nil
	}
	if e.generator == nil || !e.generator.Available() {
		return slideText, nil
	}
	text, err := e.generator.Generate(ctx, buildPresentationPrompt(slideText))
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", file.Filename, err)
	}
	return strings.TrimSpace(text), nil
}

func detectMimeType(file models.UploadedFile) string {
	if ct := strings.TrimSpace(file.ContentType); ct != "" && ct != "application/octet-stream" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			return parsed
		}
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.Filename))); byExt != "" {
		if parsed, _, err := mime.ParseMediaType(byExt); err == nil {
			return parsed
		}
	}
	if len(file.Data) > 0 {
		if parsed, _, err := mime.ParseMediaType(mimetype.Detect(file.Data).String()); err == nil {
			return parsed
		}
	}
	return "application/octet-stream"
}

func isPlainText(filename, mimeType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return mimeType == "text/plain" || mimeType == "text/markdown"
}

// extractTextFromPDF uses UniPDF to get all text from a PDF document.
func extractTextFromPDF(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return sb.String(), nil
}
