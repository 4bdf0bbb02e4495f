package scraper

import (
	"testing"

	"github.com/dangson92/crawl2/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingURL = "https://example.com/hotel/aurora.html"

func mustPage(t *testing.T, html string) *Page {
	t.Helper()
	page, err := NewPage(listingURL, html)
	require.NoError(t, err)
	return page
}

func collectLogs(t *testing.T) (LogFunc, *[]string) {
	t.Helper()
	var messages []string
	return func(_ domain.LogSeverity, msg string) {
		messages = append(messages, msg)
	}, &messages
}

func TestCascade_StructuredDataWinsOverSelectors(t *testing.T) {
	t.Parallel()

	page := mustPage(t, `<html><head>
		<script type="application/ld+json">
		{"@type":"Hotel","name":"Hotel Aurora","address":{"streetAddress":"1 Seaside Ave","addressLocality":"Brighton","addressCountry":"UK"}}
		</script></head><body>
		<h2 data-testid="title">Some Redesigned Heading</h2>
		</body></html>`)

	assert.Equal(t, "Hotel Aurora", ResolveName(page, nil))
	assert.Equal(t, "1 Seaside Ave, Brighton, UK", ResolveAddress(page, nil))
	assert.Equal(t, "Brighton", ResolveCity(page, nil))
	assert.Equal(t, "UK", ResolveCountry(page, nil))
}

func TestCascade_EmptySelectorHitFallsThrough(t *testing.T) {
	t.Parallel()

	// The primary selector matches but yields only whitespace; the
	// cascade must move on instead of accepting the empty value.
	page := mustPage(t, `<html><body>
		<h2 data-testid="title">   </h2>
		<h2 id="hp_hotel_name_reviews">Hotel Aurora</h2>
		</body></html>`)

	assert.Equal(t, "Hotel Aurora", ResolveName(page, nil))
}

func TestCascade_TotalMissLogsWarningAndReturnsEmpty(t *testing.T) {
	t.Parallel()

	logf, messages := collectLogs(t)
	page := mustPage(t, `<html><body><p>nothing relevant</p></body></html>`)

	assert.Empty(t, ResolveName(page, logf))
	require.Len(t, *messages, 1)
	assert.Contains(t, (*messages)[0], `field "name"`)
}

func TestResolveRating_CategoryDerivedFromStructuredScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		category string
	}{
		{"excellent", "9.3", "Excellent"},
		{"very good", "8.1", "Very Good"},
		{"good", "7.5", "Good"},
		{"pleasant", "6.4", "Pleasant"},
		{"fair", "5.2", "Fair"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := mustPage(t, `<html><head><script type="application/ld+json">
				{"@type":"Hotel","name":"H","aggregateRating":{"ratingValue":"`+tt.value+`"}}
				</script></head><body></body></html>`)

			rating := ResolveRating(page, nil)
			require.NotNil(t, rating)
			assert.Equal(t, tt.category, rating.Category)
		})
	}
}

func TestResolveRating_PerSubfieldSubstitution(t *testing.T) {
	t.Parallel()

	// Structured data has the score but no review count; the DOM has
	// both. Only the missing piece is taken from the DOM.
	page := mustPage(t, `<html><head>
		<script type="application/ld+json">
		{"@type":"Hotel","name":"H","aggregateRating":{"ratingValue":9.3}}
		</script></head><body>
		<div data-testid="review-score-component">
			<div class="ac4a7896c7">Scored 4.0</div>
			<div class="abf093bdfe">1,204 reviews</div>
		</div>
		</body></html>`)

	rating := ResolveRating(page, nil)
	require.NotNil(t, rating)
	assert.Equal(t, 9.3, rating.Score)
	assert.Equal(t, 1204, rating.ReviewCount)
	assert.Equal(t, "Excellent", rating.Category)
}

func TestResolveRating_DOMCategoryBeatsDerived(t *testing.T) {
	t.Parallel()

	page := mustPage(t, `<html><body>
		<div data-testid="review-score-component">
			<div class="ac4a7896c7">9.3</div>
			<div class="a3b8729ab1">Wonderful</div>
		</div>
		</body></html>`)

	rating := ResolveRating(page, nil)
	require.NotNil(t, rating)
	assert.Equal(t, 9.3, rating.Score)
	assert.Equal(t, "Wonderful", rating.Category)
}

func TestResolveRating_NothingFoundIsNil(t *testing.T) {
	t.Parallel()

	logf, messages := collectLogs(t)
	page := mustPage(t, `<html><body></body></html>`)

	assert.Nil(t, ResolveRating(page, logf))
	assert.Len(t, *messages, 1)
}

func TestCollectFacilities_DeduplicatesByExactText(t *testing.T) {
	t.Parallel()

	page := mustPage(t, `<html><body>
		<div data-testid="property-most-popular-facilities-wrapper"><ul>
			<li><span>Free WiFi</span></li>
			<li><span>Free WiFi</span></li>
			<li><span>Swimming pool</span></li>
		</ul></div>
		</body></html>`)

	assert.Equal(t, []string{"Free WiFi", "Swimming pool"}, CollectFacilities(page, nil))
}

func TestCollectFAQs_DeduplicatesByQuestion(t *testing.T) {
	t.Parallel()

	page := mustPage(t, `<html><body>
		<div data-testid="faq-accordion">
			<div data-testid="accordion-item">
				<button><h3>Is breakfast included?</h3></button>
				<div data-testid="accordion-item-content">Yes, from 7am.</div>
			</div>
			<div data-testid="accordion-item">
				<button><h3>Is breakfast included?</h3></button>
				<div data-testid="accordion-item-content">Duplicate block.</div>
			</div>
			<div data-testid="accordion-item">
				<button><h3>Is there parking?</h3></button>
				<div data-testid="accordion-item-content">On-site, paid.</div>
			</div>
		</div>
		</body></html>`)

	faqs := CollectFAQs(page, nil)
	require.Len(t, faqs, 2)
	assert.Equal(t, domain.FAQ{Question: "Is breakfast included?", Answer: "Yes, from 7am."}, faqs[0])
	assert.Equal(t, "Is there parking?", faqs[1].Question)
}

func TestCollectHouseRules_MapsRowsByHeading(t *testing.T) {
	t.Parallel()

	page := mustPage(t, `<html><body><div data-testid="house-rules-section">
		<div class="a26e4f0adb">
			<div class="e1eebb6a1e">Check-in</div>
			<div class="a53cbfa6de">From 15:00</div>
		</div>
		<div class="a26e4f0adb">
			<div class="e1eebb6a1e">Check-out</div>
			<div class="a53cbfa6de">Until 11:00</div>
		</div>
		<div class="a26e4f0adb">
			<div class="e1eebb6a1e">Pets</div>
			<div class="a53cbfa6de">Pets are not allowed.</div>
		</div>
		<div class="a26e4f0adb">
			<div class="e1eebb6a1e">Accepted payment methods</div>
			<div class="a53cbfa6de">Visa, Mastercard. Cash is not accepted.</div>
		</div>
		</div></body></html>`)

	rules := CollectHouseRules(page, nil)
	require.NotNil(t, rules)
	assert.Equal(t, "From 15:00", rules.CheckIn)
	assert.Equal(t, "Until 11:00", rules.CheckOut)
	assert.Equal(t, "Pets are not allowed.", rules.Pets)
	assert.Equal(t, []string{"Visa", "Mastercard"}, rules.AcceptedCards)
	assert.Equal(t, "Cash is not accepted.", rules.CashPolicy)
}

func TestCollectNearby_GroupsAndDeduplicates(t *testing.T) {
	t.Parallel()

	page := mustPage(t, `<html><body>
		<div data-testid="poi-block">
			<div class="e1eebb6a1e">What's nearby</div>
			<ul>
				<li><div class="aa225776f2">Royal Pavilion</div><div class="b99b6ef58f">350 m</div></li>
				<li><div class="aa225776f2">Royal Pavilion</div><div class="b99b6ef58f">350 m</div></li>
				<li><div class="aa225776f2">Brighton Pier</div><div class="b99b6ef58f">600 m</div></li>
			</ul>
		</div>
		</body></html>`)

	groups := CollectNearby(page, nil)
	require.Len(t, groups, 1)
	assert.Equal(t, "What's nearby", groups[0].Category)
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, "Royal Pavilion", groups[0].Items[0].Name)
	assert.Equal(t, "350 m", groups[0].Items[0].Distance)
}

func TestCollectImages_HeuristicScanIsLastResort(t *testing.T) {
	t.Parallel()

	// No gallery markup at all, but two images sit on the hotel photo
	// path. Partial recall beats an empty gallery.
	page := mustPage(t, `<html><body>
		<img src="/static/logo.png">
		<img src="https://cf.example.com/xdata/images/hotel/max1024/111.jpg">
		<img src="/xdata/images/hotel/max1024/222.jpg">
		</body></html>`)

	images := CollectImages(page, nil)
	assert.Equal(t, []string{
		"https://cf.example.com/xdata/images/hotel/max1024/111.jpg",
		"https://example.com/xdata/images/hotel/max1024/222.jpg",
	}, images)
}

func TestCollectImages_StructuredDataFirst(t *testing.T) {
	t.Parallel()

	page := mustPage(t, `<html><head>
		<script type="application/ld+json">
		{"@type":"Hotel","name":"H","image":["https://cf.example.com/xdata/images/hotel/a.jpg","https://cf.example.com/xdata/images/hotel/a.jpg"]}
		</script></head><body>
		<div data-testid="property-gallery"><img src="/xdata/images/hotel/dom.jpg"></div>
		</body></html>`)

	assert.Equal(t, []string{"https://cf.example.com/xdata/images/hotel/a.jpg"}, CollectImages(page, nil))
}

func TestBreadcrumbFallbackForLocation(t *testing.T) {
	t.Parallel()

	page := mustPage(t, `<html><body>
		<ol class="e1eebb6a1e">
			<li data-testid="breadcrumb-item"><a>Home</a></li>
			<li data-testid="breadcrumb-item"><a>United Kingdom</a></li>
			<li data-testid="breadcrumb-item"><a>East Sussex</a></li>
			<li data-testid="breadcrumb-item"><a>Brighton</a></li>
			<li data-testid="breadcrumb-item"><a>Hotel Aurora</a></li>
		</ol>
		</body></html>`)

	assert.Equal(t, "United Kingdom", ResolveCountry(page, nil))
	assert.Equal(t, "East Sussex", ResolveRegion(page, nil))
	assert.Equal(t, "Brighton", ResolveCity(page, nil))
}
