package channels

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

const (
	testSubject = "BillTracker test notification"
	testText    = "This is a test notification from BillTracker. If you can read this, reminders will reach you here."
)

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2 style="color: {{.Color}};">{{.Headline}}</h2>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><strong>Bill</strong></td><td>{{.Title}}</td></tr>
    <tr><td><strong>Amount</strong></td><td>{{.Amount}}</td></tr>
    <tr><td><strong>Due date</strong></td><td>{{.DueDate}}</td></tr>
    {{- if .Category}}
    <tr><td><strong>Category</strong></td><td>{{.Category}}</td></tr>
    {{- end}}
  </table>
  {{- if .InvoiceURL}}
  <p><a href="{{.InvoiceURL}}">View invoice</a></p>
  {{- end}}
  <p>{{.Tone}}</p>
  <p style="color: #888; font-size: 12px;">Sent by BillTracker</p>
</body>
</html>
`))

type emailView struct {
	Color      string
	Headline   string
	Title      string
	Amount     string
	DueDate    string
	Category   string
	InvoiceURL string
	Tone       string
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// headline describes when the bill is due relative to the reminder.
func headline(r Reminder) string {
	title := r.Bill.Title
	switch {
	case r.DaysLeft < 0:
		return fmt.Sprintf("Overdue: %s was due %s ago", title, days(-r.DaysLeft))
	case r.DaysLeft == 0:
		return fmt.Sprintf("Due today: %s", title)
	case r.Urgency == model.UrgencyRed:
		return fmt.Sprintf("Urgent: %s is due in %s", title, days(r.DaysLeft))
	case r.Urgency == model.UrgencyYellow:
		return fmt.Sprintf("Reminder: %s is due in %s", title, days(r.DaysLeft))
	default:
		return fmt.Sprintf("%s is due on %s", title, r.Bill.DueDate.Format("2006-01-02"))
	}
}

func tone(u model.Urgency) string {
	switch u {
	case model.UrgencyRed:
		return "Please pay this bill as soon as possible to avoid late fees."
	case model.UrgencyYellow:
		return "This bill is coming up soon. Plan the payment ahead of time."
	default:
		return "No action is needed yet."
	}
}

func color(u model.Urgency) string {
	switch u {
	case model.UrgencyRed:
		return "#d32f2f"
	case model.UrgencyYellow:
		return "#f9a825"
	default:
		return "#388e3c"
	}
}

// EmailContent renders the subject and HTML body of a reminder email.
func EmailContent(r Reminder) (subject, body string, err error) {
	view := emailView{
		Color:      color(r.Urgency),
		Headline:   headline(r),
		Title:      r.Bill.Title,
		Amount:     r.Bill.Amount.StringFixed(2),
		DueDate:    r.Bill.DueDate.Format("Monday, 2 January 2006"),
		Category:   r.Bill.Category,
		InvoiceURL: r.Bill.InvoiceURL,
		Tone:       tone(r.Urgency),
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	return view.Headline, buf.String(), nil
}

// ChatText renders a reminder as Telegram HTML.
func ChatText(r Reminder) string {
	icon := "🟢"
	switch r.Urgency {
	case model.UrgencyRed:
		icon = "🔴"
	case model.UrgencyYellow:
		icon = "🟡"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", icon, html.EscapeString(headline(r)))
	fmt.Fprintf(&b, "<b>Amount:</b> %s\n", r.Bill.Amount.StringFixed(2))
	fmt.Fprintf(&b, "<b>Due:</b> %s\n", r.Bill.DueDate.Format("2006-01-02"))
	if r.Bill.Category != "" {
		fmt.Fprintf(&b, "<b>Category:</b> %s\n", html.EscapeString(r.Bill.Category))
	}
	if r.Bill.InvoiceURL != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">View invoice</a>\n", html.EscapeString(r.Bill.InvoiceURL))
	}
	fmt.Fprintf(&b, "\n%s", tone(r.Urgency))
	return b.String()
}
