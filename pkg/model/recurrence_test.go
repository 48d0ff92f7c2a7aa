package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecurringInterval_Months(t *testing.T) {
	tests := []struct {
		interval model.RecurringInterval
		months   int
		ok       bool
	}{
		{model.IntervalMonthly, 1, true},
		{model.IntervalEvery3Months, 3, true},
		{model.IntervalEvery6Months, 6, true},
		{model.IntervalYearly, 12, true},
		{model.IntervalEvery2Years, 24, true},
		{model.IntervalCustom, 0, false},
		{"fortnightly", 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.interval), func(t *testing.T) {
			m, ok := tt.interval.Months()
			assert.Equal(t, tt.months, m)
			assert.Equal(t, tt.ok, ok)
		})
	}
	assert.True(t, model.IntervalCustom.Valid())
	assert.False(t, model.RecurringInterval("fortnightly").Valid())
}

func TestOccurrences_MonthlyClampsToMonthEnd(t *testing.T) {
	b := model.Bill{DueDate: date(2024, 1, 31), IsRecurring: true, RecurringInterval: model.IntervalMonthly}

	got := model.Occurrences(b, date(2024, 2, 1), date(2024, 3, 1))
	require.Len(t, got, 1)
	assert.Equal(t, date(2024, 2, 29), got[0])

	got = model.Occurrences(b, date(2024, 4, 1), date(2024, 5, 1))
	require.Len(t, got, 1)
	assert.Equal(t, date(2024, 4, 30), got[0])
}

func TestOccurrences_Quarterly(t *testing.T) {
	b := model.Bill{DueDate: date(2025, 1, 10), IsRecurring: true, RecurringInterval: model.IntervalEvery3Months}

	got := model.Occurrences(b, date(2025, 1, 1), date(2026, 1, 1))
	assert.Equal(t, []time.Time{date(2025, 1, 10), date(2025, 4, 10), date(2025, 7, 10), date(2025, 10, 10)}, got)

	assert.Empty(t, model.Occurrences(b, date(2025, 2, 1), date(2025, 3, 1)))
}

func TestOccurrences_NothingBeforeAnchor(t *testing.T) {
	b := model.Bill{DueDate: date(2025, 6, 1), IsRecurring: true, RecurringInterval: model.IntervalYearly}
	assert.Empty(t, model.Occurrences(b, date(2024, 6, 1), date(2024, 7, 1)))

	got := model.Occurrences(b, date(2027, 6, 1), date(2027, 7, 1))
	assert.Equal(t, []time.Time{date(2027, 6, 1)}, got)
}

func TestOccurrences_CustomOnlyAnchor(t *testing.T) {
	b := model.Bill{DueDate: date(2025, 5, 5), IsRecurring: true, RecurringInterval: model.IntervalCustom}

	assert.Equal(t, []time.Time{date(2025, 5, 5)}, model.Occurrences(b, date(2025, 5, 1), date(2025, 6, 1)))
	assert.Empty(t, model.Occurrences(b, date(2025, 6, 1), date(2025, 7, 1)))
}

func TestOccurrences_EmptyInputs(t *testing.T) {
	assert.Nil(t, model.Occurrences(model.Bill{}, date(2025, 1, 1), date(2025, 2, 1)))

	b := model.Bill{DueDate: date(2025, 1, 5)}
	assert.Nil(t, model.Occurrences(b, date(2025, 2, 1), date(2025, 1, 1)))
}
