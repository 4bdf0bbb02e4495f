// Package export flattens completed tasks into tabular and JSON files.
// It is pure formatting over already-extracted data.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dangson92/crawl2/internal/domain"
)

// Item is one completed task in the JSON export.
type Item struct {
	URL       string              `json:"url"`
	Status    domain.TaskStatus   `json:"status"`
	CrawledAt time.Time           `json:"crawledAt"`
	Result    *domain.HotelRecord `json:"result"`
}

// Completed filters tasks down to the exportable ones.
func Completed(tasks []*domain.Task) []*domain.Task {
	var out []*domain.Task
	for _, task := range tasks {
		if task.Status == domain.StatusCompleted && task.Result != nil {
			out = append(out, task)
		}
	}
	return out
}

// WriteJSON emits one Item per completed task.
func WriteJSON(w io.Writer, tasks []*domain.Task) error {
	items := make([]Item, 0, len(tasks))
	for _, task := range Completed(tasks) {
		items = append(items, Item{
			URL:       task.URL,
			Status:    task.Status,
			CrawledAt: task.Result.CrawledAt,
			Result:    task.Result,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

var csvHeader = []string{
	"url", "name", "address", "city", "region", "country",
	"rating_score", "review_count", "rating_category",
	"facilities", "faq_count", "check_in", "check_out",
	"cancellation_policy", "image_count", "images", "crawled_at",
}

// WriteCSV emits one row per completed task with list fields joined by
// "; ".
func WriteCSV(w io.Writer, tasks []*domain.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, task := range Completed(tasks) {
		if err := cw.Write(row(task)); err != nil {
			return fmt.Errorf("write csv row for %s: %w", task.URL, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(task *domain.Task) []string {
	r := task.Result

	var score, count, category string
	if r.Rating != nil {
		if r.Rating.Score > 0 {
			score = strconv.FormatFloat(r.Rating.Score, 'f', -1, 64)
		}
		if r.Rating.ReviewCount > 0 {
			count = strconv.Itoa(r.Rating.ReviewCount)
		}
		category = r.Rating.Category
	}

	var checkIn, checkOut, cancellation string
	if r.HouseRules != nil {
		checkIn = r.HouseRules.CheckIn
		checkOut = r.HouseRules.CheckOut
		cancellation = r.HouseRules.CancellationPolicy
	}

	return []string{
		task.URL,
		r.Name,
		r.Address,
		r.CityName,
		r.RegionName,
		r.CountryName,
		score,
		count,
		category,
		strings.Join(r.Facilities, "; "),
		strconv.Itoa(len(r.FAQs)),
		checkIn,
		checkOut,
		cancellation,
		strconv.Itoa(len(r.Images)),
		strings.Join(r.Images, "; "),
		r.CrawledAt.Format(time.RFC3339),
	}
}
