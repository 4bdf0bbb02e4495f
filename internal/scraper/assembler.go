package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dangson92/crawl2/internal/browser"
	"github.com/dangson92/crawl2/internal/domain"
	"go.uber.org/zap"
)

// PageSession is the slice of browser.Session the assembler drives.
type PageSession interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string, out interface{}) error
	ScrollToBottom(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
	Close()
}

// ProgressFunc receives coarse completion checkpoints, 0..100.
type ProgressFunc func(percent int)

// Assembler drives one page session through field resolution and
// assembles a single immutable hotel record. Field-level misses are
// tolerated; navigation-level failures fail the whole crawl with no
// partial record.
type Assembler struct {
	sessions func() PageSession
	settle   time.Duration
	logger   *zap.Logger
}

// NewAssembler builds an assembler minting sessions from the launcher.
func NewAssembler(launcher *browser.Launcher, settle time.Duration, logger *zap.Logger) *Assembler {
	return &Assembler{
		sessions: func() PageSession { return launcher.NewSession() },
		settle:   settle,
		logger:   logger,
	}
}

// Fetch crawls one listing URL. Cancelling ctx tears the session down
// and aborts in-flight browser calls.
func (a *Assembler) Fetch(ctx context.Context, url string, logf LogFunc, progress ProgressFunc) (*domain.HotelRecord, error) {
	session := a.sessions()
	defer session.Close()
	stop := context.AfterFunc(ctx, session.Close)
	defer stop()

	logf(domain.SeverityInfo, fmt.Sprintf("navigating to %s", url))
	progress(5)
	if err := session.Navigate(ctx, url); err != nil {
		return nil, err
	}
	progress(25)

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	page, err := NewPage(url, html)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	if page.Structured != nil {
		logf(domain.SeverityInfo, "structured data blob found, preferring it over selectors")
	} else {
		logf(domain.SeverityInfo, "no structured data blob, falling back to selectors")
	}
	progress(40)

	record := assembleRecord(page, logf)
	progress(70)

	// Base-page images, collected before the gallery navigation
	// invalidates the in-memory DOM. If the gallery fails these are
	// what the record keeps.
	baseImages := CollectImages(page, nil)

	// The gallery re-navigates the page, so it must run after every
	// other field has been resolved from the snapshot.
	galleryImages, err := a.fetchGallery(ctx, session, page, url)
	if err != nil {
		logf(domain.SeverityWarning, fmt.Sprintf("gallery fetch failed, keeping %d base-page images: %v", len(baseImages), err))
		record.Images = baseImages
	} else {
		record.Images = dedupe(append(galleryImages, baseImages...))
	}
	progress(95)

	record.CrawledAt = time.Now()
	logf(domain.SeveritySuccess, fmt.Sprintf("record assembled with %d facilities, %d faqs, %d images",
		len(record.Facilities), len(record.FAQs), len(record.Images)))
	progress(100)
	return record, nil
}

// assembleRecord resolves every snapshot-derived field. Fields with no
// interdependency run concurrently; the snapshot is immutable so the
// only coordination needed is the wait.
func assembleRecord(page *Page, logf LogFunc) *domain.HotelRecord {
	record := &domain.HotelRecord{}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() {
		record.Name = ResolveName(page, logf)
		record.Address = ResolveAddress(page, logf)
		record.About = ResolveAbout(page, logf)
	})
	run(func() {
		record.CityName = ResolveCity(page, logf)
		record.RegionName = ResolveRegion(page, logf)
		record.CountryName = ResolveCountry(page, logf)
	})
	run(func() { record.Rating = ResolveRating(page, logf) })
	run(func() { record.Facilities = CollectFacilities(page, logf) })
	run(func() { record.FAQs = CollectFAQs(page, logf) })
	run(func() { record.HouseRules = CollectHouseRules(page, logf) })
	run(func() { record.Nearby = CollectNearby(page, logf) })
	wg.Wait()

	return record
}

// galleryImagesScript collects every mounted image on the hotel photo
// path after the lazy-load pass.
const galleryImagesScript = `
(() => {
	const urls = new Set();
	for (const img of document.querySelectorAll('img')) {
		const src = img.currentSrc || img.src || '';
		if (src.includes('` + hotelPhotoPathToken + `')) {
			urls.add(src);
		}
	}
	return Array.from(urls);
})()
`

func (a *Assembler) fetchGallery(ctx context.Context, session PageSession, page *Page, url string) ([]string, error) {
	if err := session.Navigate(ctx, GalleryURL(url)); err != nil {
		return nil, err
	}
	if err := session.Sleep(ctx, a.settle); err != nil {
		return nil, err
	}
	if err := session.ScrollToBottom(ctx); err != nil {
		return nil, err
	}

	var srcs []string
	if err := session.Evaluate(ctx, galleryImagesScript, &srcs); err != nil {
		return nil, err
	}
	return absolutizeAll(page, srcs), nil
}
