package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFName returns the file name used for the PDF copy of doc.
func PDFName(doc Document) string {
	return fmt.Sprintf("%s_%s.pdf", strings.ReplaceAll(doc.Title, " ", "_"), doc.Date.Format(DateLayout))
}

// WritePDF renders the document body in a monospaced font to path.
func WritePDF(doc Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("shodan-notifier", true)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Courier", "I", 7)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("{nb}")
	pdf.AddPage()

	// core fonts are cp1252, so non-latin hostnames degrade instead of failing
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Courier", "", 7)
	for _, line := range strings.Split(doc.Body, "\n") {
		pdf.MultiCell(0, 3.5, tr(line), "", "L", false)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write pdf %s: %w", path, err)
	}
	return nil
}
