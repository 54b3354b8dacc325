package library

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// NativeLibrary is the built-in embedded backend. It structures the simple
// formats that need no external tooling (plain text, markdown, HTML) and
// does best-effort PDF extraction. Binary office formats are recognized but
// deferred to external backends via can_process=false.
type NativeLibrary struct{}

// NewNativeLibrary creates the built-in library
func NewNativeLibrary() *NativeLibrary {
	return &NativeLibrary{}
}

// Name returns the registry handle
func (l *NativeLibrary) Name() string {
	return "native"
}

// Extension classes the native library understands. Office formats appear in
// the recognized set only: info answers for them, extraction does not.
var (
	plainTextExts = map[string]bool{
		"txt": true, "log": true, "json": true, "xml": true, "csv": true,
	}
	markdownExts = map[string]bool{
		"md": true, "markdown": true,
	}
	htmlExts = map[string]bool{
		"html": true, "htm": true,
	}
	recognizedExts = map[string]bool{
		"docx": true, "pptx": true, "doc": true, "ppt": true,
		"xlsx": true, "odt": true, "epub": true,
	}
)

// CanProcess reports whether the native library can fully extract the
// given file type
func CanProcess(ext string) bool {
	return plainTextExts[ext] || markdownExts[ext] || htmlExts[ext] || ext == "pdf"
}

// Convert performs a full extraction of the given file
func (l *NativeLibrary) Convert(ctx context.Context, sourcePath string, options map[string]string) (*schema.ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.EnsureReadable(sourcePath); err != nil {
		return nil, err
	}

	ext := utils.FileExt(sourcePath)
	var (
		doc *schema.ExtractedDocument
		err error
	)
	switch {
	case htmlExts[ext]:
		doc, err = convertHTML(sourcePath)
	case markdownExts[ext]:
		doc, err = convertMarkdown(sourcePath)
	case plainTextExts[ext]:
		doc, err = convertPlainText(sourcePath)
	case ext == "pdf":
		doc, err = convertPDF(sourcePath)
	default:
		return nil, fmt.Errorf("native library cannot process file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	doc.Normalize()
	return doc, nil
}

// Inspect answers a capability/estimate query without full parsing
func (l *NativeLibrary) Inspect(ctx context.Context, sourcePath string) (*schema.InfoResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.EnsureReadable(sourcePath); err != nil {
		return nil, err
	}

	res := EstimateInfo(sourcePath, utils.FileSize(sourcePath))

	// A real page count is cheap for PDFs and beats the size heuristic.
	if res.FileType == "pdf" {
		if pages, err := pdfPageCount(sourcePath); err == nil && pages > 0 {
			res.EstimatedPages = pages
			res.EstimatedProcessingTimeMs = estimateTimeMs(res.FileType, pages)
		}
	}
	return &res, nil
}

// EstimateInfo derives a capability estimate from a file name and size
// alone. The server's info endpoint shares this with the native library so
// a remote metadata query needs no upload.
func EstimateInfo(fileName string, sizeBytes int64) schema.InfoResult {
	ext := utils.FileExt(fileName)
	pages := estimatePages(ext, sizeBytes)
	return schema.InfoResult{
		FileType:                  ext,
		CanProcess:                CanProcess(ext),
		EstimatedPages:            pages,
		EstimatedProcessingTimeMs: estimateTimeMs(ext, pages),
	}
}

// estimatePages guesses a page count from the file size
func estimatePages(ext string, sizeBytes int64) int {
	if sizeBytes <= 0 {
		return 0
	}
	var perPage int64
	switch {
	case ext == "pdf" || recognizedExts[ext]:
		perPage = 50 * 1024 // binary formats carry layout and media
	default:
		perPage = 3000 // ~3000 bytes of text per page
	}
	pages := int((sizeBytes + perPage - 1) / perPage)
	if pages < 1 {
		pages = 1
	}
	return pages
}

// estimateTimeMs guesses processing cost; only monotonicity in the page
// count matters to callers
func estimateTimeMs(ext string, pages int) int64 {
	var perPageMs int64
	switch {
	case ext == "pdf":
		perPageMs = 150
	case htmlExts[ext]:
		perPageMs = 20
	case plainTextExts[ext] || markdownExts[ext]:
		perPageMs = 5
	default:
		perPageMs = 100
	}
	return int64(pages) * perPageMs
}

// convertPlainText reads the file verbatim as the document body
func convertPlainText(sourcePath string) (*schema.ExtractedDocument, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	return &schema.ExtractedDocument{
		Text: text,
		Metadata: schema.DocumentMetadata{
			PageCount: estimatePages("txt", int64(len(data))),
			WordCount: utils.WordCount(text),
		},
	}, nil
}

var (
	mdHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	mdImageRe   = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
)

// convertMarkdown splits a markdown file into sections at heading lines,
// collects pipe-table blocks and image alt texts
func convertMarkdown(sourcePath string) (*schema.ExtractedDocument, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	doc := &schema.ExtractedDocument{}
	var (
		heading   string
		inSection bool
		content   []string
		table     []string
	)

	flushSection := func() {
		if inSection {
			doc.Sections = append(doc.Sections, schema.Section{
				Heading: heading,
				Content: strings.TrimSpace(strings.Join(content, "\n")),
			})
		}
		content = nil
	}
	// Tables are attributed to the section being accumulated, which will sit
	// at index len(doc.Sections) once flushed.
	flushTable := func() {
		if len(table) == 0 {
			return
		}
		block := schema.TableBlock{Representation: strings.Join(table, "\n")}
		if inSection {
			idx := len(doc.Sections)
			block.SourceSectionIndex = &idx
		}
		doc.Tables = append(doc.Tables, block)
		table = nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "|") {
			table = append(table, trimmed)
			continue
		}
		flushTable()

		if m := mdHeadingRe.FindStringSubmatch(trimmed); m != nil {
			flushSection()
			heading = strings.TrimSpace(m[2])
			inSection = true
			if doc.Title == "" && len(m[1]) == 1 {
				doc.Title = heading
			}
			continue
		}

		for _, img := range mdImageRe.FindAllStringSubmatch(trimmed, -1) {
			fig := schema.FigureRef{Description: img[1]}
			if inSection {
				idx := len(doc.Sections)
				fig.SourceSectionIndex = &idx
			}
			doc.Figures = append(doc.Figures, fig)
		}

		if inSection {
			content = append(content, line)
		}
	}
	flushTable()
	flushSection()

	text := strings.TrimSpace(string(data))
	doc.Text = text
	doc.Metadata = schema.DocumentMetadata{
		PageCount: estimatePages("md", int64(len(data))),
		WordCount: utils.WordCount(text),
	}
	return doc, nil
}
