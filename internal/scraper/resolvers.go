package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dangson92/crawl2/internal/domain"
)

// LogFunc receives resolver-level events. Misses are warnings, never
// errors: a failed strategy falls through the cascade and a fully
// missed field resolves to its zero value. The assembler runs field
// groups concurrently, so implementations must be safe to call from
// multiple goroutines.
type LogFunc func(severity domain.LogSeverity, message string)

// Strategy is one extraction attempt for a field. It must not panic or
// fail; an empty string means "no value, try the next one".
type Strategy func(*Page) string

// Cascade is an ordered list of strategies for one logical field. The
// first non-empty result wins. Structured-data strategies come first,
// DOM selectors after, page-wide heuristics last.
type Cascade struct {
	Field      string
	Strategies []Strategy
}

// Resolve runs the cascade. A total miss logs a warning and returns "".
func (c Cascade) Resolve(p *Page, logf LogFunc) string {
	for _, strategy := range c.Strategies {
		if v := strategy(p); v != "" {
			return v
		}
	}
	logWarn(logf, fmt.Sprintf("field %q: no extraction strategy produced a value", c.Field))
	return ""
}

// FromStructured extracts a value from the JSON-LD blob, if present.
func FromStructured(get func(*StructuredData) string) Strategy {
	return func(p *Page) string {
		if p.Structured == nil {
			return ""
		}
		return strings.TrimSpace(get(p.Structured))
	}
}

// SelectorText tries each selector in order and returns the first
// match with non-empty text. An element that matches but yields empty
// text does not satisfy the strategy; the next selector is tried.
func SelectorText(selectors ...string) Strategy {
	return func(p *Page) string {
		for _, sel := range selectors {
			text := strings.TrimSpace(p.Find(sel).First().Text())
			if text != "" {
				return text
			}
		}
		return ""
	}
}

// ResolveName extracts the hotel name.
func ResolveName(p *Page, logf LogFunc) string {
	return Cascade{
		Field: "name",
		Strategies: []Strategy{
			FromStructured(func(sd *StructuredData) string { return sd.Name }),
			SelectorText(nameSelectors...),
		},
	}.Resolve(p, logf)
}

// ResolveAddress extracts the street address.
func ResolveAddress(p *Page, logf LogFunc) string {
	return Cascade{
		Field: "address",
		Strategies: []Strategy{
			FromStructured(func(sd *StructuredData) string {
				if sd.Address == nil {
					return ""
				}
				return joinNonEmpty(", ",
					sd.Address.StreetAddress,
					sd.Address.AddressLocality,
					sd.Address.AddressRegion,
					sd.Address.PostalCode,
					sd.Address.AddressCountry,
				)
			}),
			SelectorText(addressSelectors...),
		},
	}.Resolve(p, logf)
}

// ResolveAbout extracts the rich-text description.
func ResolveAbout(p *Page, logf LogFunc) string {
	return Cascade{
		Field: "about",
		Strategies: []Strategy{
			FromStructured(func(sd *StructuredData) string { return sd.Description }),
			SelectorText(aboutSelectors...),
		},
	}.Resolve(p, logf)
}

// ResolveCity extracts the city name.
func ResolveCity(p *Page, logf LogFunc) string {
	return Cascade{
		Field: "city",
		Strategies: []Strategy{
			FromStructured(func(sd *StructuredData) string {
				if sd.Address == nil {
					return ""
				}
				return sd.Address.AddressLocality
			}),
			breadcrumbPart(3),
		},
	}.Resolve(p, logf)
}

// ResolveRegion extracts the region/state name.
func ResolveRegion(p *Page, logf LogFunc) string {
	return Cascade{
		Field: "region",
		Strategies: []Strategy{
			FromStructured(func(sd *StructuredData) string {
				if sd.Address == nil {
					return ""
				}
				return sd.Address.AddressRegion
			}),
			breadcrumbPart(2),
		},
	}.Resolve(p, logf)
}

// ResolveCountry extracts the country name.
func ResolveCountry(p *Page, logf LogFunc) string {
	return Cascade{
		Field: "country",
		Strategies: []Strategy{
			FromStructured(func(sd *StructuredData) string {
				if sd.Address == nil {
					return ""
				}
				return sd.Address.AddressCountry
			}),
			breadcrumbPart(1),
		},
	}.Resolve(p, logf)
}

// breadcrumbPart reads the nth crumb of the location trail
// (Home > Country > Region > City > Hotel).
func breadcrumbPart(index int) Strategy {
	return func(p *Page) string {
		for _, sel := range breadcrumbSelectors {
			var crumbs []string
			p.Find(sel).Each(func(_ int, s *goquery.Selection) {
				if text := strings.TrimSpace(s.Text()); text != "" {
					crumbs = append(crumbs, text)
				}
			})
			// The trail must at least reach the city level.
			if len(crumbs) >= 5 && index < len(crumbs) {
				return crumbs[index]
			}
		}
		return ""
	}
}

var (
	scoreRe  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	digitsRe = regexp.MustCompile(`[\d,.]+`)
)

// ResolveRating combines score, review count and category into one
// rating. Score and count substitute per subfield: structured data
// fills what it has, the DOM fills only the missing piece. The category
// label comes from the DOM or, failing that, is derived from the score.
func ResolveRating(p *Page, logf LogFunc) *domain.Rating {
	var rating domain.Rating

	if p.Structured.HasRatingValue() {
		rating.Score = float64(p.Structured.AggregateRating.RatingValue)
	} else {
		rating.Score = parseScore(SelectorText(ratingScoreSelectors...)(p))
	}

	if p.Structured.HasReviewCount() {
		rating.ReviewCount = int(p.Structured.AggregateRating.ReviewCount)
	} else {
		rating.ReviewCount = parseCount(SelectorText(reviewCountSelectors...)(p))
	}

	rating.Category = SelectorText(ratingCategorySelectors...)(p)
	if rating.Category == "" && rating.Score > 0 {
		rating.Category = domain.RatingCategory(rating.Score)
	}

	if rating.Score == 0 && rating.ReviewCount == 0 && rating.Category == "" {
		logWarn(logf, `field "rating": no extraction strategy produced a value`)
		return nil
	}
	return &rating
}

func parseScore(text string) float64 {
	m := scoreRe.FindString(text)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseCount(text string) int {
	m := digitsRe.FindString(text)
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(strings.NewReplacer(",", "", ".", "").Replace(m))
	if err != nil {
		return 0
	}
	return v
}

// CollectFacilities lists the property's facilities, de-duplicated by
// exact text equality.
func CollectFacilities(p *Page, logf LogFunc) []string {
	for _, sel := range facilitySelectors {
		var items []string
		p.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			return dedupe(items)
		}
	}
	logWarn(logf, `field "facilities": no extraction strategy produced a value`)
	return nil
}

// CollectFAQs lists the page's question/answer pairs, de-duplicated by
// question text.
func CollectFAQs(p *Page, logf LogFunc) []domain.FAQ {
	for _, sel := range faqPairSelectors {
		var faqs []domain.FAQ
		seen := map[string]bool{}
		p.Find(sel.Container).Each(func(_ int, s *goquery.Selection) {
			q := strings.TrimSpace(s.Find(sel.Question).First().Text())
			a := strings.TrimSpace(s.Find(sel.Answer).First().Text())
			if q == "" || seen[q] {
				return
			}
			seen[q] = true
			faqs = append(faqs, domain.FAQ{Question: q, Answer: a})
		})
		if len(faqs) > 0 {
			return faqs
		}
	}
	logWarn(logf, `field "faqs": no extraction strategy produced a value`)
	return nil
}

// CollectHouseRules reads the policy rows and maps each onto the
// matching rule by heading keywords. Unrecognized rows are skipped.
func CollectHouseRules(p *Page, logf LogFunc) *domain.HouseRules {
	for _, sel := range houseRuleRowSelectors {
		rules := &domain.HouseRules{}
		p.Find(sel.Row).Each(func(_ int, s *goquery.Selection) {
			title := strings.ToLower(strings.TrimSpace(s.Find(sel.Title).First().Text()))
			content := strings.TrimSpace(s.Find(sel.Content).First().Text())
			if title == "" || content == "" {
				return
			}
			applyHouseRule(rules, title, content, s, sel.Content)
		})
		if !rules.Empty() {
			return rules
		}
	}
	logWarn(logf, `field "house_rules": no extraction strategy produced a value`)
	return nil
}

func applyHouseRule(rules *domain.HouseRules, title, content string, row *goquery.Selection, contentSel string) {
	switch {
	case strings.Contains(title, "check-in") || strings.Contains(title, "check in"):
		rules.CheckIn = content
	case strings.Contains(title, "check-out") || strings.Contains(title, "check out"):
		rules.CheckOut = content
	case strings.Contains(title, "cancellation") || strings.Contains(title, "prepayment"):
		rules.CancellationPolicy = content
	case strings.Contains(title, "pet"):
		rules.Pets = content
	case strings.Contains(title, "age"):
		rules.AgeRestriction = content
	case strings.Contains(title, "child") || strings.Contains(title, "bed"):
		rules.ChildPolicies = dedupe(splitParagraphs(row, contentSel, content))
	case strings.Contains(title, "card") || strings.Contains(title, "payment"):
		rules.AcceptedCards = dedupe(extractCards(row, content))
		if lower := strings.ToLower(content); strings.Contains(lower, "cash") {
			rules.CashPolicy = cashSentence(content)
		}
	case strings.Contains(title, "cash"):
		rules.CashPolicy = content
	}
}

// splitParagraphs returns each content block of a row separately, so
// multi-paragraph policies keep their structure.
func splitParagraphs(row *goquery.Selection, contentSel, fallback string) []string {
	var parts []string
	row.Find(contentSel).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 && fallback != "" {
		parts = []string{fallback}
	}
	return parts
}

// knownCards is the fixed vocabulary scanned for in the payment row.
var knownCards = []string{
	"Visa", "Mastercard", "American Express", "Maestro", "Diners Club",
	"Discover", "JCB", "UnionPay", "Carte Bleue", "Bancontact",
}

func extractCards(row *goquery.Selection, content string) []string {
	var cards []string
	row.Find("img[alt]").Each(func(_ int, s *goquery.Selection) {
		if alt := strings.TrimSpace(s.AttrOr("alt", "")); alt != "" {
			cards = append(cards, alt)
		}
	})
	if len(cards) > 0 {
		return cards
	}
	for _, card := range knownCards {
		if strings.Contains(strings.ToLower(content), strings.ToLower(card)) {
			cards = append(cards, card)
		}
	}
	return cards
}

func cashSentence(content string) string {
	for _, sentence := range strings.Split(content, ".") {
		if strings.Contains(strings.ToLower(sentence), "cash") {
			return strings.TrimSpace(sentence) + "."
		}
	}
	return ""
}

// CollectNearby lists the grouped points of interest around the hotel.
func CollectNearby(p *Page, logf LogFunc) []domain.NearbyGroup {
	for _, sel := range nearbyGroupSelectors {
		var groups []domain.NearbyGroup
		p.Find(sel.Group).Each(func(_ int, g *goquery.Selection) {
			category := strings.TrimSpace(g.Find(sel.Heading).First().Text())
			if category == "" {
				return
			}
			group := domain.NearbyGroup{Category: category}
			seen := map[string]bool{}
			g.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
				name := strings.TrimSpace(item.Find(sel.Name).First().Text())
				if name == "" || seen[name] {
					return
				}
				seen[name] = true
				group.Items = append(group.Items, domain.NearbyPlace{
					Name:     name,
					Distance: strings.TrimSpace(item.Find(sel.Distance).First().Text()),
					Type:     strings.TrimSpace(item.AttrOr("data-poi-type", "")),
				})
			})
			if len(group.Items) > 0 {
				groups = append(groups, group)
			}
		})
		if len(groups) > 0 {
			return groups
		}
	}
	logWarn(logf, `field "nearby_places": no extraction strategy produced a value`)
	return nil
}

// CollectImages gathers photo URLs from the snapshot: structured data
// first, then the gallery selectors, then a page-wide scan for anything
// on the hotel photo path. URLs are absolutized and de-duplicated.
func CollectImages(p *Page, logf LogFunc) []string {
	if p.Structured != nil && len(p.Structured.Image) > 0 {
		if imgs := absolutizeAll(p, p.Structured.Image); len(imgs) > 0 {
			return imgs
		}
	}

	for _, sel := range imageSelectors {
		var srcs []string
		p.Find(sel).Each(func(_ int, s *goquery.Selection) {
			srcs = append(srcs, imageSource(s))
		})
		if imgs := absolutizeAll(p, srcs); len(imgs) > 0 {
			return imgs
		}
	}

	// Last resort: any image on the recognizable photo path. Partial
	// recall beats an empty gallery here.
	var srcs []string
	p.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src := imageSource(s); strings.Contains(src, hotelPhotoPathToken) {
			srcs = append(srcs, src)
		}
	})
	if imgs := absolutizeAll(p, srcs); len(imgs) > 0 {
		return imgs
	}

	logWarn(logf, `field "images": no extraction strategy produced a value`)
	return nil
}

func imageSource(s *goquery.Selection) string {
	if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
		return src
	}
	return strings.TrimSpace(s.AttrOr("data-src", ""))
}

func absolutizeAll(p *Page, refs []string) []string {
	var out []string
	for _, ref := range refs {
		if abs := p.AbsoluteURL(ref); abs != "" {
			out = append(out, abs)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}

func logWarn(logf LogFunc, msg string) {
	if logf != nil {
		logf(domain.SeverityWarning, msg)
	}
}
