package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"

	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

var logger = logger_i.NewLogger("Extraction")

var ErrUnsupportedDocType = errors.New("unsupported document type")

// File pulls per-page text out of a document on disk, dispatching on the
// file extension. Pages come back zero-indexed.
func File(path string) ([]docModel.RawPage, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return extractPDF(path)
	case ".docx", ".txt", ".rtf", ".odt":
		return extractDocxTxtRtf(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocType, ext)
	}
}

func extractPDF(path string) ([]docModel.RawPage, error) {
	logger.Debug("extractPDF", "attempting extraction", path)
	f, err := pdf.Open(path)
	if err != nil {
		logger.Error("failed opening of pdf file")
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []docModel.RawPage
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := pageText(page)
		if err != nil {
			// keep going; one broken page should not sink the document
			logger.Error("Error parsing page content", "page", i, "Error", err)
			continue
		}

		// kept pages are renumbered: downstream expects indices
		// contiguous from zero even when pages were skipped
		pages = append(pages, docModel.RawPage{
			Index: len(pages),
			Text:  content,
		})
	}
	return pages, nil
}

// extractDocxTxtRtf reads a .odt, .docx, .rtf or plaintext file. cat gives
// no page boundaries, so the whole text lands on page zero.
func extractDocxTxtRtf(path string) ([]docModel.RawPage, error) {
	text, err := cat.File(path)
	if err != nil {
		logger.Error("Error extracting content from doc")
		return nil, fmt.Errorf("failed to extract doc: %w", err)
	}

	return []docModel.RawPage{
		{
			Index: 0,
			Text:  text,
		},
	}, nil
}

// seam so tests can exercise the skip path without a malformed fixture
var pageText = protectExtract

// protectExtract bounds GetPlainText, which can hang on malformed pages.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(time.Second * 10):
		logger.Error("pageExtract", "timeout")
		return "", errors.New("timeout")
	}
}
