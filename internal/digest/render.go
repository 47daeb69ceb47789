package digest

import (
	"fmt"
	"html"
	"strings"

	"github.com/k3a/html2text"

	"github.com/clearfield-labs/noteloop/internal/review"
)

// Email is a fully rendered review digest.
type Email struct {
	Subject        string `json:"subject"`
	HTML           string `json:"-"`
	Text           string `json:"-"`
	Total          int    `json:"total"`
	NextDayCount   int    `json:"nextDayCount"`
	WeekLaterCount int    `json:"weekLaterCount"`
}

func reviewTypeLabel(reviewType review.Type) string {
	if reviewType == review.TypeWeekLater {
		return "Week Later"
	}
	return "Next Day"
}

// Render builds the digest email for a pending-review snapshot. baseURL is
// the public address of the review UI; the CTA links to its /review page.
func Render(pending review.PendingResult, baseURL string) Email {
	total := len(pending.Notes)
	baseURL = strings.TrimRight(baseURL, "/")

	subject := "✨ You're all caught up — no notes to review"
	if total > 0 {
		subject = fmt.Sprintf("📬 You have %d notes to review today", total)
	}

	detailsLine := `<p style="margin: 0 0 16px 0; color:#374151;">No pending notes today.</p>`
	if total > 0 {
		detailsLine = fmt.Sprintf(
			`<p style="margin: 0 0 16px 0; color:#374151;">You have <strong>%d</strong> notes to review today <span style="color:#6B7280;">(%d next-day, %d week-later)</span>.</p>`,
			total, pending.NextDayCount, pending.WeekLaterCount)
	}

	var listItems strings.Builder
	if total > 0 {
		for _, n := range pending.Notes {
			fmt.Fprintf(&listItems,
				`<li style="margin: 0 0 10px 0; line-height: 1.5;"><span style="display:inline-block; font-weight:600; color:#111827;">%s</span><span style="color:#6B7280;"> — %s • %s</span></li>`,
				html.EscapeString(n.Title), reviewTypeLabel(n.ReviewType), n.Date)
		}
	} else {
		listItems.WriteString(`<li style="color:#6B7280;">No pending notes.</li>`)
	}

	linkHost := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	body := fmt.Sprintf(`<div style="background:#F9FAFB; padding:24px;">
  <div style="max-width:640px; margin:0 auto; background:#FFFFFF; border:1px solid #E5E7EB; border-radius:12px; overflow:hidden;">
    <div style="padding:24px 24px 0 24px;">
      <h1 style="margin:0 0 8px 0; font-size:20px; font-weight:700; color:#111827;">📚 Notes Review</h1>
      %s
    </div>
    <div style="padding:8px 24px 0 24px;">
      <ul style="padding-left:18px; margin:0 0 8px 0;">
        %s
      </ul>
    </div>
    <div style="padding:24px; text-align:center;">
      <a href="%s/review" style="display:inline-block; background:#7C3AED; color:#FFFFFF; text-decoration:none; font-weight:600; padding:12px 20px; border-radius:10px;">Open Review App →</a>
    </div>
  </div>
  <p style="max-width:640px; margin:12px auto 0; font-size:12px; color:#9CA3AF; text-align:center;">Sent by Noteloop · <a href="%s" style="color:#7C3AED; text-decoration:none;">%s</a></p>
</div>`, detailsLine, listItems.String(), baseURL, baseURL, linkHost)

	return Email{
		Subject:        subject,
		HTML:           body,
		Text:           html2text.HTML2Text(body),
		Total:          total,
		NextDayCount:   pending.NextDayCount,
		WeekLaterCount: pending.WeekLaterCount,
	}
}
