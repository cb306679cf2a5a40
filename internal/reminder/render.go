package reminder

import (
	"fmt"
	"html"
	"strings"
)

// renderReminder builds the HTML notification for one fired job.
func renderReminder(job Job, siteURL string) string {
	c := job.Contest
	link := fmt.Sprintf("%s/contests/%d", strings.TrimRight(siteURL, "/"), c.ID)

	var b strings.Builder
	b.WriteString("📢 Reminder: Codeforces Contest!\n\n")
	fmt.Fprintf(&b, "🔹 <b>%s</b> 🔹\n", html.EscapeString(c.Name))
	fmt.Fprintf(&b, "Starts in approximately: <b>%s</b>\n", job.Key.Label)
	fmt.Fprintf(&b, "Exact Start Time: %s\n", c.StartString())
	fmt.Fprintf(&b, "Duration: %s\n", c.DurationString())
	fmt.Fprintf(&b, "🔗 Link: %s\n\n", link)
	b.WriteString("Good luck! ✨")
	return b.String()
}
