// Package htmldoc wraps a saved page source in a goquery document so the
// snapshot and challenge code can run against it without a browser.
package htmldoc

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a static, parsed page
type Document struct {
	url    string
	source string
	doc    *goquery.Document
}

// Parse builds a Document from raw HTML. url is reported as the location.
func Parse(url, source string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{url: url, source: source, doc: doc}, nil
}

func (d *Document) Location(context.Context) (string, error) {
	return d.url, nil
}

func (d *Document) Title(context.Context) (string, error) {
	return collapse(d.doc.Find("title").First().Text()), nil
}

func (d *Document) Source(context.Context) (string, error) {
	return d.source, nil
}

// SelectorText returns the text of the first match. goquery treats an
// invalid selector as matching nothing.
func (d *Document) SelectorText(_ context.Context, selector string) (string, error) {
	return collapse(visible(d.doc.Find(selector).First()).Text()), nil
}

func (d *Document) BodyText(context.Context) (string, error) {
	return collapse(visible(d.doc.Find("body")).Text()), nil
}

// visible drops script-like children that a browser would not render as text
func visible(sel *goquery.Selection) *goquery.Selection {
	clone := sel.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return clone
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
