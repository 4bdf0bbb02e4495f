package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dangson92/crawl2/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	html        string
	navErrs     map[string]error
	galleryImgs []string
	evalErr     error
	navigated   []string
	scrolled    bool
	closed      bool
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	if err := f.navErrs[url]; err != nil {
		return err
	}
	return nil
}

func (f *fakeSession) HTML(context.Context) (string, error) { return f.html, nil }

func (f *fakeSession) Evaluate(_ context.Context, _ string, out interface{}) error {
	if f.evalErr != nil {
		return f.evalErr
	}
	*(out.(*[]string)) = f.galleryImgs
	return nil
}

func (f *fakeSession) ScrollToBottom(context.Context) error { f.scrolled = true; return nil }

func (f *fakeSession) Sleep(context.Context, time.Duration) error { return nil }

func (f *fakeSession) Close() { f.closed = true }

func newTestAssembler(session PageSession) *Assembler {
	return &Assembler{
		sessions: func() PageSession { return session },
		settle:   time.Millisecond,
	}
}

const fixtureHTML = `<html><head>
	<script type="application/ld+json">
	{"@type":"Hotel","name":"Hotel Aurora","description":"Seafront stay",
	 "address":{"streetAddress":"1 Seaside Ave","addressLocality":"Brighton","addressCountry":"UK"},
	 "aggregateRating":{"ratingValue":"9.3","reviewCount":"812"}}
	</script></head><body>
	<div data-testid="property-most-popular-facilities-wrapper"><ul>
		<li><span>Free WiFi</span></li>
	</ul></div>
	<img src="/xdata/images/hotel/base.jpg">
	</body></html>`

func TestAssemblerFetch_AssemblesFullRecord(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		html:        fixtureHTML,
		galleryImgs: []string{"https://cf.example.com/xdata/images/hotel/g1.jpg"},
	}
	assembler := newTestAssembler(session)

	var percents []int
	record, err := assembler.Fetch(context.Background(), listingURL,
		func(domain.LogSeverity, string) {},
		func(p int) { percents = append(percents, p) })

	require.NoError(t, err)
	assert.Equal(t, "Hotel Aurora", record.Name)
	assert.Equal(t, "Seafront stay", record.About)
	assert.Equal(t, "Brighton", record.CityName)
	require.NotNil(t, record.Rating)
	assert.Equal(t, 9.3, record.Rating.Score)
	assert.Equal(t, []string{"Free WiFi"}, record.Facilities)
	assert.False(t, record.CrawledAt.IsZero())

	// Gallery images lead, base-page images follow.
	assert.Equal(t, []string{
		"https://cf.example.com/xdata/images/hotel/g1.jpg",
		"https://example.com/xdata/images/hotel/base.jpg",
	}, record.Images)

	// The gallery navigation happens last, against the activation URL.
	require.Len(t, session.navigated, 2)
	assert.Equal(t, listingURL, session.navigated[0])
	assert.Equal(t, GalleryURL(listingURL), session.navigated[1])
	assert.True(t, session.scrolled)
	assert.True(t, session.closed)

	require.NotEmpty(t, percents)
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestAssemblerFetch_NavigationFailureFailsWholeTask(t *testing.T) {
	t.Parallel()

	navErr := errors.New("net::ERR_TIMED_OUT")
	session := &fakeSession{
		html:    fixtureHTML,
		navErrs: map[string]error{listingURL: navErr},
	}
	assembler := newTestAssembler(session)

	record, err := assembler.Fetch(context.Background(), listingURL,
		func(domain.LogSeverity, string) {}, func(int) {})

	require.ErrorIs(t, err, navErr)
	assert.Nil(t, record, "no partial record on a page-fetch failure")
	assert.True(t, session.closed)
}

func TestAssemblerFetch_GalleryFailureKeepsBaseFields(t *testing.T) {
	t.Parallel()

	session := &fakeSession{
		html:    fixtureHTML,
		navErrs: map[string]error{GalleryURL(listingURL): errors.New("gallery blocked")},
	}
	assembler := newTestAssembler(session)

	// Field resolvers log from concurrent goroutines, so the
	// collector needs its own lock.
	var mu sync.Mutex
	var warnings []string
	record, err := assembler.Fetch(context.Background(), listingURL,
		func(sev domain.LogSeverity, msg string) {
			if sev == domain.SeverityWarning {
				mu.Lock()
				warnings = append(warnings, msg)
				mu.Unlock()
			}
		}, func(int) {})

	require.NoError(t, err, "a gallery failure must not fail the crawl")
	assert.Equal(t, "Hotel Aurora", record.Name)
	assert.Equal(t, []string{"https://example.com/xdata/images/hotel/base.jpg"}, record.Images)

	joined := strings.Join(warnings, "\n")
	assert.Contains(t, joined, "gallery fetch failed")
}
