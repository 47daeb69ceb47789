package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/clearfield-labs/noteloop/internal/review"
)

func samplePending() review.PendingResult {
	return review.PendingResult{
		Notes: []review.PendingNote{
			{
				Title:      "Pipeline <Q3> sync",
				Date:       "2025-06-14",
				ReviewType: review.TypeNextDay,
			},
			{
				Title:      "Enablement planning",
				Date:       "2025-06-08",
				ReviewType: review.TypeWeekLater,
			},
		},
		ReviewDate:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		NextDayCount:   1,
		WeekLaterCount: 1,
	}
}

func TestRenderWithPendingNotes(testContext *testing.T) {
	email := Render(samplePending(), "https://notes.example.com/")

	if email.Subject != "📬 You have 2 notes to review today" {
		testContext.Fatalf("unexpected subject %q", email.Subject)
	}
	if email.Total != 2 || email.NextDayCount != 1 || email.WeekLaterCount != 1 {
		testContext.Fatalf("unexpected counts %d/%d/%d", email.Total, email.NextDayCount, email.WeekLaterCount)
	}

	if !strings.Contains(email.HTML, "Pipeline &lt;Q3&gt; sync") {
		testContext.Fatalf("expected escaped title in html")
	}
	if strings.Contains(email.HTML, "<Q3>") {
		testContext.Fatalf("raw title markup must not survive escaping")
	}
	if !strings.Contains(email.HTML, `href="https://notes.example.com/review"`) {
		testContext.Fatalf("expected review link without double slash, got %s", email.HTML)
	}
	if !strings.Contains(email.HTML, "Next Day") || !strings.Contains(email.HTML, "Week Later") {
		testContext.Fatalf("expected review type labels in html")
	}
	if !strings.Contains(email.Text, "Enablement planning") {
		testContext.Fatalf("expected note title in text rendering")
	}
}

func TestRenderEmptyDigest(testContext *testing.T) {
	email := Render(review.PendingResult{}, "https://notes.example.com")

	if email.Subject != "✨ You're all caught up — no notes to review" {
		testContext.Fatalf("unexpected subject %q", email.Subject)
	}
	if !strings.Contains(email.HTML, "No pending notes.") {
		testContext.Fatalf("expected empty-state list item")
	}
	if email.Total != 0 {
		testContext.Fatalf("expected zero total, got %d", email.Total)
	}
}
