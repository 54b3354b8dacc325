package library

import (
	"fmt"
	"os"
	"strings"

	rpdf "rsc.io/pdf"

	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// convertPDF does best-effort text extraction via rsc.io/pdf. The reader
// panics on malformed files, so both entry points convert faults to errors.
func convertPDF(sourcePath string) (doc *schema.ExtractedDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("pdf parser fault: %v", r)
		}
	}()

	reader, closeFn, err := openPDF(sourcePath)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	pages := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		var lastY float64
		first := true
		for _, t := range content.Text {
			switch {
			case first:
			case t.Y != lastY:
				b.WriteString("\n")
			default:
				b.WriteString(" ")
			}
			b.WriteString(t.S)
			lastY = t.Y
			first = false
		}
		b.WriteString("\n\n")
	}

	text := cleanupText(b.String())
	return &schema.ExtractedDocument{
		Text: text,
		Metadata: schema.DocumentMetadata{
			PageCount: pages,
			WordCount: utils.WordCount(text),
		},
	}, nil
}

// pdfPageCount reads only the page tree
func pdfPageCount(sourcePath string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("pdf parser fault: %v", r)
		}
	}()

	reader, closeFn, err := openPDF(sourcePath)
	if err != nil {
		return 0, err
	}
	defer closeFn()
	return reader.NumPage(), nil
}

func openPDF(sourcePath string) (*rpdf.Reader, func(), error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening pdf: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat pdf: %w", err)
	}
	reader, err := rpdf.NewReader(f, st.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("reading pdf: %w", err)
	}
	return reader, func() { f.Close() }, nil
}
