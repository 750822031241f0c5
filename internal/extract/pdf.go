package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// PDFExtractor concatenates the text of every page. Pages that yield no
// text (scans, images) are logged and skipped.
type PDFExtractor struct {
	logger *slog.Logger
}

// NewPDFExtractor registers the unipdf metered license key when one is
// given. Without a key, extraction fails at read time.
func NewPDFExtractor(licenseKey string) (*PDFExtractor, error) {
	if licenseKey != "" {
		if err := license.SetMeteredKey(licenseKey); err != nil {
			return nil, fmt.Errorf("setting unidoc license key: %w", err)
		}
	}
	return &PDFExtractor{logger: slog.Default().With("component", "pdf-extractor")}, nil
}

func (p *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return "", fmt.Errorf("reading pdf %s: %w", path, err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("counting pages of %s: %w", path, err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := pageText(reader, i)
		if err != nil {
			p.logger.Warn("page extraction failed", "path", path, "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			p.logger.Info("page has no extractable text", "path", path, "page", i)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func pageText(reader *model.PdfReader, num int) (string, error) {
	page, err := reader.GetPage(num)
	if err != nil {
		return "", err
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", err
	}
	return ex.ExtractText()
}
