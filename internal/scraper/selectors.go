package scraper

// CSS selectors used across the resolver cascades. Each list is ordered
// from the most specific/current markup to older fallbacks; keeping them
// in one place makes selector rot a one-file fix.

// Name and address.
var (
	nameSelectors = []string{
		`h2[data-testid="title"]`,
		`#hp_hotel_name_reviews`,
		`h2.pp-header__title`,
		`.hp__hotel-name`,
	}
	addressSelectors = []string{
		`[data-testid="address"]`,
		`span.hp_address_subtitle`,
		`.hp_address_subtitle`,
	}
)

// Rating block. Score and review count resolve independently.
var (
	ratingScoreSelectors = []string{
		`[data-testid="review-score-component"] div.ac4a7896c7`,
		`[data-testid="review-score-right-component"] div.a3b8729ab1`,
		`.b5cd09854e.d10a6220b4`,
	}
	reviewCountSelectors = []string{
		`[data-testid="review-score-component"] div.abf093bdfe`,
		`[data-testid="review-score-right-component"] div.abf093bdfe`,
		`.d8eab2cf7f.c90c0a70d3.db63693c62`,
	}
	ratingCategorySelectors = []string{
		`[data-testid="review-score-component"] div.a3b8729ab1`,
		`[data-testid="review-score-right-component"] div.a3b8729ab1.e6208ee469`,
	}
)

// About / description section.
var aboutSelectors = []string{
	`[data-testid="property-description"]`,
	`#property_description_content`,
	`.hp_desc_main_content`,
}

// Facilities. Item selectors are tried per list selector.
var facilitySelectors = []string{
	`[data-testid="property-most-popular-facilities-wrapper"] li .a5a5a75131`,
	`[data-testid="property-most-popular-facilities-wrapper"] li span`,
	`.hotel-facilities-group .bui-list__description`,
	`.facilitiesChecklistSection li`,
}

// FAQ section: pairs of question/answer containers.
var faqPairSelectors = []struct {
	Container string
	Question  string
	Answer    string
}{
	{`[data-testid="faq-accordion"] [data-testid="accordion-item"]`, `button h3`, `[data-testid="accordion-item-content"]`},
	{`.faq-list .faq-item`, `.faq-question`, `.faq-answer`},
}

// House rules: policy rows keyed by their heading text.
var houseRuleRowSelectors = []struct {
	Row     string
	Title   string
	Content string
}{
	{`[data-testid="house-rules-section"] div.a26e4f0adb`, `div.e1eebb6a1e`, `div.a53cbfa6de`},
	{`#hotelPoliciesInc .policy_block`, `.policy_name`, `.policy_content`},
	{`.hp_policies_box .policy_block`, `.policy_name`, `.policy_content`},
}

// Breadcrumb trail for city/region/country.
var breadcrumbSelectors = []string{
	`ol.e1eebb6a1e li[data-testid="breadcrumb-item"] a`,
	`.bui-breadcrumb__item a`,
	`#breadcrumb a`,
}

// Nearby points of interest: grouped lists.
var nearbyGroupSelectors = []struct {
	Group    string
	Heading  string
	Item     string
	Name     string
	Distance string
}{
	{
		Group:    `[data-testid="poi-block"]`,
		Heading:  `div.e1eebb6a1e`,
		Item:     `ul li`,
		Name:     `div.aa225776f2`,
		Distance: `div.b99b6ef58f`,
	},
	{
		Group:    `.hp-poi-content-container .hp-poi-list-container`,
		Heading:  `.hp-poi-list-title`,
		Item:     `li.hp-poi-list-item`,
		Name:     `.hp-poi-name`,
		Distance: `.hp-poi-distance`,
	},
}

// Gallery images on the base page.
var imageSelectors = []string{
	`[data-testid="property-gallery"] img`,
	`#photo_wrapper img`,
	`.bh-photo-grid img`,
}

// hotelPhotoPathToken marks CDN photo URLs; the page-wide heuristic
// scan accepts any image whose URL contains it.
const hotelPhotoPathToken = "/xdata/images/hotel"

// galleryQueryParam activates the full photo gallery on a second
// navigation of the listing URL.
const galleryQueryParam = "activeTab=photosGallery"
