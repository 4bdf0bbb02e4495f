package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseStructuredData(t *testing.T) {
	t.Parallel()

	t.Run("parses a hotel blob with string-typed numbers", func(t *testing.T) {
		t.Parallel()
		doc := docFrom(t, `<html><head><script type="application/ld+json">
			{"@type":"Hotel","name":"Hotel Aurora","description":"Seafront stay",
			 "aggregateRating":{"ratingValue":"9.3","reviewCount":"812"},
			 "image":"https://cf.example.com/xdata/images/hotel/a.jpg"}
			</script></head></html>`)

		sd := ParseStructuredData(doc)
		require.NotNil(t, sd)
		assert.Equal(t, "Hotel Aurora", sd.Name)
		assert.Equal(t, 9.3, float64(sd.AggregateRating.RatingValue))
		assert.Equal(t, 812, int(sd.AggregateRating.ReviewCount))
		assert.Equal(t, StringList{"https://cf.example.com/xdata/images/hotel/a.jpg"}, sd.Image)
		assert.True(t, sd.HasRatingValue())
		assert.True(t, sd.HasReviewCount())
	})

	t.Run("picks the lodging entity out of an array blob", func(t *testing.T) {
		t.Parallel()
		doc := docFrom(t, `<html><head><script type="application/ld+json">
			[{"@type":"BreadcrumbList"},{"@type":"Hotel","name":"Hotel Aurora"}]
			</script></head></html>`)

		sd := ParseStructuredData(doc)
		require.NotNil(t, sd)
		assert.Equal(t, "Hotel Aurora", sd.Name)
	})

	t.Run("skips non-lodging entities and malformed JSON", func(t *testing.T) {
		t.Parallel()
		doc := docFrom(t, `<html><head>
			<script type="application/ld+json">{"@type":"WebSite","name":"Example"}</script>
			<script type="application/ld+json">{not json at all</script>
			</head></html>`)

		assert.Nil(t, ParseStructuredData(doc))
	})

	t.Run("tolerates junk rating values as absent", func(t *testing.T) {
		t.Parallel()
		doc := docFrom(t, `<html><head><script type="application/ld+json">
			{"@type":"Hotel","name":"H","aggregateRating":{"ratingValue":"n/a","reviewCount":"many"}}
			</script></head></html>`)

		sd := ParseStructuredData(doc)
		require.NotNil(t, sd)
		assert.False(t, sd.HasRatingValue())
		assert.False(t, sd.HasReviewCount())
	})
}

func TestGalleryURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://example.com/hotel/aurora.html?activeTab=photosGallery",
		GalleryURL("https://example.com/hotel/aurora.html"))
	assert.Equal(t,
		"https://example.com/hotel/aurora.html?lang=en&activeTab=photosGallery",
		GalleryURL("https://example.com/hotel/aurora.html?lang=en"))
}

func TestPageAbsoluteURL(t *testing.T) {
	t.Parallel()

	page, err := NewPage("https://example.com/hotel/aurora.html", `<html></html>`)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/x.jpg", page.AbsoluteURL("/x.jpg"))
	assert.Equal(t, "https://cdn.example.com/y.jpg", page.AbsoluteURL("https://cdn.example.com/y.jpg"))
	assert.Empty(t, page.AbsoluteURL("   "))
}
