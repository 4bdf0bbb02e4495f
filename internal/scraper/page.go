package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is one parsed snapshot of a rendered listing page: the document
// tree plus the structured-data blob extracted once for all cascades.
// It is immutable after construction, so independent resolvers may read
// it concurrently.
type Page struct {
	URL        string
	Structured *StructuredData

	doc  *goquery.Document
	base *url.URL
}

// NewPage parses the rendered HTML of a listing page.
func NewPage(rawURL, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(rawURL)
	return &Page{
		URL:        rawURL,
		Structured: ParseStructuredData(doc),
		doc:        doc,
		base:       base,
	}, nil
}

// Find runs a CSS selector against the snapshot.
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// AbsoluteURL resolves href/src values against the page URL. Inputs
// that cannot be resolved come back empty.
func (p *Page) AbsoluteURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if p.base != nil {
		u = p.base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return ""
	}
	return u.String()
}

// GalleryURL is the listing URL with the gallery-activation parameter
// appended, used for the second navigation that exposes all photos.
func GalleryURL(listing string) string {
	if strings.Contains(listing, "?") {
		return listing + "&" + galleryQueryParam
	}
	return listing + "?" + galleryQueryParam
}
