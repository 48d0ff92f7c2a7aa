package channels_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/channels"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

func TestEmailContent_Subjects(t *testing.T) {
	tests := []struct {
		name     string
		urgency  model.Urgency
		daysLeft int
		subject  string
	}{
		{"overdue", model.UrgencyRed, -3, "Overdue: Electricity was due 3 days ago"},
		{"today", model.UrgencyRed, 0, "Due today: Electricity"},
		{"tomorrow", model.UrgencyRed, 1, "Urgent: Electricity is due in 1 day"},
		{"yellow", model.UrgencyYellow, 6, "Reminder: Electricity is due in 6 days"},
		{"green", model.UrgencyGreen, 20, "Electricity is due on 2026-10-19"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, _, err := channels.EmailContent(sampleReminder(tt.urgency, tt.daysLeft))
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
		})
	}
}

func TestEmailContent_EscapesBillFields(t *testing.T) {
	r := sampleReminder(model.UrgencyYellow, 5)
	r.Bill.Title = "<script>alert(1)</script>"
	r.Bill.Category = ""
	r.Bill.InvoiceURL = ""

	_, body, err := channels.EmailContent(r)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "Category")
	assert.NotContains(t, body, "View invoice")
	assert.Contains(t, body, "Plan the payment ahead")
}

func TestChatText(t *testing.T) {
	r := sampleReminder(model.UrgencyYellow, 4)
	r.Bill.Category = "a & b"

	text := channels.ChatText(r)
	assert.Contains(t, text, "🟡 <b>Reminder: Electricity is due in 4 days</b>")
	assert.Contains(t, text, "<b>Amount:</b> 84.20")
	assert.Contains(t, text, "<b>Due:</b> 2026-10-19")
	assert.Contains(t, text, "a &amp; b")
	assert.Contains(t, text, `<a href="https://power.example/inv/3">View invoice</a>`)
}
