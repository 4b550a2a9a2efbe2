// Package htmlutil extracts text, links and tables from the table based
// markup served by the upstream.
package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var tracer = otel.Tracer("matrusp.htmlutil")

// GetText returns the raw concatenation of every text node under node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

func textNodes(node *html.Node, out *[]string) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		*out = append(*out, node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		textNodes(child, out)
	}
}

// Normalize turns non-breaking spaces into plain spaces and composes
// accented characters, so that regexp probes behave the same whatever
// form the upstream used.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return norm.NFC.String(s)
}

// StrippedStrings returns every non-empty text node under sel, normalized
// and trimmed, in document order.
func StrippedStrings(sel *goquery.Selection) []string {
	var raw []string
	for _, n := range sel.Nodes {
		textNodes(n, &raw)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(Normalize(s))
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CellText is the concatenation of the stripped strings of sel with no
// separator.
func CellText(sel *goquery.Selection) string {
	return strings.Join(StrippedStrings(sel), "")
}

// ContainsText reports whether any single text node under sel matches pattern.
func ContainsText(sel *goquery.Selection, pattern *regexp.Regexp) bool {
	var raw []string
	for _, n := range sel.Nodes {
		textNodes(n, &raw)
	}
	for _, s := range raw {
		if pattern.MatchString(Normalize(s)) {
			return true
		}
	}
	return false
}

// ContainsExactText reports whether any text node under sel is exactly text
// once surrounding whitespace is removed.
func ContainsExactText(sel *goquery.Selection, text string) bool {
	for _, s := range StrippedStrings(sel) {
		if s == text {
			return true
		}
	}
	return false
}

// LeafTables returns every table under root that contains no other table,
// in document order.
func LeafTables(ctx context.Context, root *goquery.Selection) []*goquery.Selection {
	_, span := tracer.Start(ctx, "LeafTables")
	defer span.End()

	var leaves []*goquery.Selection
	root.Find("table").Each(func(_ int, table *goquery.Selection) {
		if table.Find("table").Length() > 0 {
			return
		}
		leaves = append(leaves, table)
	})
	span.SetAttributes(attribute.Int("leaf_tables", len(leaves)))
	return leaves
}

// Rows returns the rows of a leaf table.
func Rows(table *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		rows = append(rows, row)
	})
	return rows
}

// Cells returns the text of each data cell of row.
func Cells(row *goquery.Selection) []string {
	var cells []string
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, CellText(cell))
	})
	return cells
}

type Anchor struct {
	Name string
	Href string
}

// CollapseSpace trims s and folds every run of whitespace into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// GetAnchors returns the visible text and target of every anchor in sel
// whose href matches filter. A nil filter keeps every anchor.
func GetAnchors(ctx context.Context, sel *goquery.Selection, filter *regexp.Regexp) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}
		if filter != nil && !filter.MatchString(href) {
			continue
		}

		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}

		name := removeNonPrintable(CollapseSpace(Normalize(GetText(n))))

		linkStr := link.String()
		anchors = append(anchors, Anchor{
			Name: name,
			Href: linkStr,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors
}
