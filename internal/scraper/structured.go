package scraper

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredData is the machine-readable listing metadata embedded in
// the page as JSON-LD. It is parsed once per page and shared by every
// cascade that can use it; when both it and a DOM selector produce a
// value, structured data wins because it survives visual redesigns.
type StructuredData struct {
	Type            string           `json:"@type"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Address         *PostalAddress   `json:"address"`
	AggregateRating *AggregateRating `json:"aggregateRating"`
	Image           StringList       `json:"image"`
}

// PostalAddress mirrors the schema.org shape.
type PostalAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	AddressCountry  string `json:"addressCountry"`
	PostalCode      string `json:"postalCode"`
}

// AggregateRating carries the review summary. Sites emit ratingValue
// and reviewCount as either numbers or strings.
type AggregateRating struct {
	RatingValue FlexFloat `json:"ratingValue"`
	ReviewCount FlexInt   `json:"reviewCount"`
}

// FlexFloat decodes a JSON number or numeric string. Zero means absent.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Tolerate junk; absence beats a parse failure here.
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// FlexInt decodes a JSON number or numeric string. Zero means absent.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(v)
	return nil
}

// StringList decodes a single string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = StringList(many)
		return nil
	}
	*l = nil
	return nil
}

// lodgingTypes are the schema.org entity types we accept as "the hotel".
var lodgingTypes = map[string]bool{
	"Hotel":           true,
	"LodgingBusiness": true,
	"Resort":          true,
	"Hostel":          true,
	"Motel":           true,
	"BedAndBreakfast": true,
	"Apartment":       true,
}

// ParseStructuredData scans the document's ld+json scripts for a
// lodging entity. It never fails: malformed or missing blobs simply
// yield nil.
func ParseStructuredData(doc *goquery.Document) *StructuredData {
	var found *StructuredData
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		if sd := decodeLodging([]byte(raw)); sd != nil {
			found = sd
			return false
		}
		return true
	})
	return found
}

func decodeLodging(raw []byte) *StructuredData {
	var single StructuredData
	if err := json.Unmarshal(raw, &single); err == nil && lodgingTypes[single.Type] {
		return &single
	}
	var many []StructuredData
	if err := json.Unmarshal(raw, &many); err == nil {
		for i := range many {
			if lodgingTypes[many[i].Type] {
				return &many[i]
			}
		}
	}
	return nil
}

// HasRatingValue reports whether the blob carries a usable score.
func (sd *StructuredData) HasRatingValue() bool {
	return sd != nil && sd.AggregateRating != nil && sd.AggregateRating.RatingValue > 0
}

// HasReviewCount reports whether the blob carries a usable review count.
func (sd *StructuredData) HasReviewCount() bool {
	return sd != nil && sd.AggregateRating != nil && sd.AggregateRating.ReviewCount > 0
}
