// Package ingest loads PDF documents, splits them into overlapping chunks
// and persists them with embeddings for retrieval.
package ingest

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPages returns the plain text of each page of a PDF document.
// Pages with a null content tree are returned as empty strings so page
// numbering stays aligned with the document.
func extractPages(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := r.NumPage()
	pages := make([]string, 0, numPages)
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
