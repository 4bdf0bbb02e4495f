package domain

import "time"

// HotelRecord holds everything extracted from one listing page. Every
// field is independently optional: a partial record is a valid record,
// and a missing field never invalidates the rest.
type HotelRecord struct {
	Name        string        `json:"name,omitempty"`
	Address     string        `json:"address,omitempty"`
	Rating      *Rating       `json:"rating,omitempty"`
	Facilities  []string      `json:"facilities,omitempty"`
	FAQs        []FAQ         `json:"faqs,omitempty"`
	About       string        `json:"about,omitempty"`
	HouseRules  *HouseRules   `json:"house_rules,omitempty"`
	Images      []string      `json:"images,omitempty"` // absolute URLs, gallery order
	CityName    string        `json:"city_name,omitempty"`
	RegionName  string        `json:"region_name,omitempty"`
	CountryName string        `json:"country_name,omitempty"`
	Nearby      []NearbyGroup `json:"nearby_places,omitempty"`
	CrawledAt   time.Time     `json:"crawled_at"`
}

// Rating is the guest-review summary. Score and ReviewCount are
// resolved independently, so either may be missing on its own.
type Rating struct {
	Score       float64 `json:"score,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	Category    string  `json:"category,omitempty"`
}

// FAQ is one question/answer pair from the listing's FAQ section.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// HouseRules groups the property's policies.
type HouseRules struct {
	CheckIn            string   `json:"check_in,omitempty"`
	CheckOut           string   `json:"check_out,omitempty"`
	CancellationPolicy string   `json:"cancellation_policy,omitempty"`
	Pets               string   `json:"pets,omitempty"`
	AgeRestriction     string   `json:"age_restriction,omitempty"`
	AcceptedCards      []string `json:"accepted_cards,omitempty"`
	CashPolicy         string   `json:"cash_policy,omitempty"`
	ChildPolicies      []string `json:"child_policies,omitempty"`
}

// Empty reports whether no rule was extracted at all.
func (h *HouseRules) Empty() bool {
	return h.CheckIn == "" && h.CheckOut == "" && h.CancellationPolicy == "" &&
		h.Pets == "" && h.AgeRestriction == "" && len(h.AcceptedCards) == 0 &&
		h.CashPolicy == "" && len(h.ChildPolicies) == 0
}

// NearbyGroup is one category of points of interest around the hotel.
type NearbyGroup struct {
	Category string        `json:"category"`
	Items    []NearbyPlace `json:"items"`
}

// NearbyPlace is a single point of interest with its listed distance.
type NearbyPlace struct {
	Name     string `json:"name"`
	Distance string `json:"distance"`
	Type     string `json:"type,omitempty"`
}

// RatingCategory maps a numeric score to its label. This is domain
// policy, used when the page yields a score but no label.
func RatingCategory(score float64) string {
	switch {
	case score >= 9:
		return "Excellent"
	case score >= 8:
		return "Very Good"
	case score >= 7:
		return "Good"
	case score >= 6:
		return "Pleasant"
	default:
		return "Fair"
	}
}
