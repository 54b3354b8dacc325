package library

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nodewee/doc-structurer/pkg/schema"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// convertHTML parses an HTML file into the structured contract: title,
// sections split at heading elements, tables rendered as markdown, figures
// collected from image alt text
func convertHTML(sourcePath string) (*schema.ExtractedDocument, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	w := &htmlWalker{byteSize: int64(len(data))}
	w.walk(root)
	return w.finish(), nil
}

// htmlWalker accumulates document structure while traversing the node tree.
// Sections follow reading order; the section currently being accumulated
// will sit at index len(sections) once flushed, so tables and figures can
// reference it before the flush.
type htmlWalker struct {
	byteSize int64

	title    string
	firstH1  string
	language string
	author   string
	created  string

	sections []schema.Section
	tables   []schema.TableBlock
	figures  []schema.FigureRef

	heading   string
	inSection bool
	content   strings.Builder
	body      strings.Builder
}

func (w *htmlWalker) walk(node *html.Node) {
	if node.Type == html.ElementNode {
		switch node.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		case atom.Html:
			if lang := attrValue(node, "lang"); lang != "" {
				// "en-US" style tags carry the ISO code up front.
				w.language = strings.SplitN(lang, "-", 2)[0]
			}
		case atom.Title:
			if w.title == "" {
				w.title = textContent(node)
			}
			return
		case atom.Meta:
			w.readMeta(node)
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			heading := textContent(node)
			w.flushSection()
			w.heading = heading
			w.inSection = true
			w.body.WriteString("\n" + heading + "\n")
			if node.DataAtom == atom.H1 && w.firstH1 == "" {
				w.firstH1 = heading
			}
			return
		case atom.Table:
			w.addTable(node)
			return
		case atom.Figure:
			w.addFigure(node)
			return
		case atom.Img:
			if alt := attrValue(node, "alt"); alt != "" {
				w.figures = append(w.figures, schema.FigureRef{
					Description:        alt,
					SourceSectionIndex: w.sectionIndex(),
				})
			}
			return
		}

		if isBlockElement(node.DataAtom) {
			w.write("\n")
		}
	}

	if node.Type == html.TextNode {
		if text := strings.TrimSpace(node.Data); text != "" {
			w.write(text + " ")
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		w.walk(child)
	}

	if node.Type == html.ElementNode && isBlockElement(node.DataAtom) {
		w.write("\n")
	}
}

// write appends text to the body and, when a section is open, to its content
func (w *htmlWalker) write(s string) {
	w.body.WriteString(s)
	if w.inSection {
		w.content.WriteString(s)
	}
}

// readMeta picks up author and creation date from meta tags
func (w *htmlWalker) readMeta(node *html.Node) {
	name := strings.ToLower(attrValue(node, "name"))
	content := attrValue(node, "content")
	if content == "" {
		return
	}
	switch name {
	case "author":
		w.author = content
	case "date", "dcterms.created", "created":
		w.created = content
	}
}

// sectionIndex returns a pointer to the index the open section will occupy,
// or nil when no section is open
func (w *htmlWalker) sectionIndex() *int {
	if !w.inSection {
		return nil
	}
	idx := len(w.sections)
	return &idx
}

func (w *htmlWalker) flushSection() {
	if !w.inSection {
		return
	}
	w.sections = append(w.sections, schema.Section{
		Heading: w.heading,
		Content: cleanupText(w.content.String()),
	})
	w.content.Reset()
	w.inSection = false
}

// addTable renders the table subtree as a markdown table. The subtree is not
// visited by the main walker, so cell text appears only in the table block.
func (w *htmlWalker) addTable(node *html.Node) {
	rows := tableRows(node)
	if len(rows) == 0 {
		return
	}
	w.tables = append(w.tables, schema.TableBlock{
		Representation:     markdownTable(rows),
		SourceSectionIndex: w.sectionIndex(),
	})
}

// addFigure collects one figure from a <figure> subtree, preferring the
// image alt text over the caption
func (w *htmlWalker) addFigure(node *html.Node) {
	var alt, caption string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Img:
				if alt == "" {
					alt = attrValue(n, "alt")
				}
			case atom.Figcaption:
				caption = textContent(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(node)

	description := alt
	if description == "" {
		description = caption
	}
	if description == "" {
		return
	}
	w.figures = append(w.figures, schema.FigureRef{
		Description:        description,
		SourceSectionIndex: w.sectionIndex(),
	})
}

func (w *htmlWalker) finish() *schema.ExtractedDocument {
	w.flushSection()

	title := w.title
	if title == "" {
		title = w.firstH1
	}

	text := cleanupText(w.body.String())
	return &schema.ExtractedDocument{
		Title:    title,
		Text:     text,
		Sections: w.sections,
		Tables:   w.tables,
		Figures:  w.figures,
		Metadata: schema.DocumentMetadata{
			PageCount:    estimatePages("html", w.byteSize),
			WordCount:    utils.WordCount(text),
			Language:     w.language,
			CreationDate: w.created,
			Author:       w.author,
		},
	}
}

// tableRows extracts cell text row by row
func tableRows(node *html.Node) [][]string {
	var rows [][]string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, escapeCell(textContent(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(node)
	return rows
}

// markdownTable renders rows as a markdown table, first row as header
func markdownTable(rows [][]string) string {
	var b strings.Builder
	for i, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			seps := make([]string, len(row))
			for j := range seps {
				seps[j] = "---"
			}
			b.WriteString("| " + strings.Join(seps, " | ") + " |\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// attrValue returns the value of the named attribute, or "" when absent
func attrValue(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

// textContent collects the text of a subtree with collapsed whitespace
func textContent(node *html.Node) string {
	var b strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(node)
	return strings.Join(strings.Fields(b.String()), " ")
}

// isBlockElement checks if an HTML element is a block-level element
func isBlockElement(atomType atom.Atom) bool {
	switch atomType {
	case atom.P, atom.Div, atom.Blockquote, atom.Pre,
		atom.Article, atom.Section, atom.Header, atom.Footer,
		atom.Nav, atom.Aside, atom.Main,
		atom.Ul, atom.Ol, atom.Li,
		atom.Tr, atom.Td, atom.Th,
		atom.Form, atom.Fieldset, atom.Address, atom.Br:
		return true
	}
	return false
}

var (
	spacesRe     = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\n\s*\n\s*\n+`)
	lineEdgesRe  = regexp.MustCompile(` *\n *`)
)

// cleanupText normalizes extracted whitespace while preserving paragraph
// structure
func cleanupText(text string) string {
	text = html.UnescapeString(text)
	text = spacesRe.ReplaceAllString(text, " ")
	text = lineEdgesRe.ReplaceAllString(text, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
