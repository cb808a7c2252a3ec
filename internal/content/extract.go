// Package content converts imported LMS page HTML into the plain text the
// coverage scorer consumes.
package content

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors removed before text extraction: scripts, styles and LMS chrome
// that would pollute sentence segmentation.
const noiseSelector = "script, style, noscript, iframe, nav, header, footer, form, button"

// blockSelector lists elements that imply a text break; a space is inserted
// after each so adjacent blocks do not fuse into one word.
const blockSelector = "p, div, li, ul, ol, h1, h2, h3, h4, h5, h6, br, tr, td, th, blockquote, pre, table, section, article"

// ExtractText strips markup from an HTML fragment and returns plain text with
// collapsed whitespace plus its word count. Deterministic for fixed input.
func ExtractText(html string) (string, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", 0, fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelector).Remove()
	doc.Find(blockSelector).AfterHtml(" ")

	words := strings.Fields(doc.Text())
	return strings.Join(words, " "), len(words), nil
}
