package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := daterange.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func closedNight(t *testing.T, raw string) *availability.Override {
	t.Helper()
	o, err := availability.NewOverride(availability.SetOverrideParams{PropertyID: "p-1", Date: date(t, raw), Now: time.Now()})
	require.NoError(t, err)
	return o
}

func TestBuildEvents_MergesConsecutiveClosedNights(t *testing.T) {
	dr, err := daterange.New(date(t, "2024-06-10"), date(t, "2024-06-12"))
	require.NoError(t, err)
	overrides := []*availability.Override{
		closedNight(t, "2024-06-01"),
		closedNight(t, "2024-06-02"),
		closedNight(t, "2024-06-05"),
	}

	events := BuildEvents("p-1", []availability.Stay{{Reference: "b-1", Range: dr}}, overrides)
	require.Len(t, events, 3)

	assert.Equal(t, date(t, "2024-06-01"), events[0].Start)
	assert.Equal(t, date(t, "2024-06-03"), events[0].End)
	assert.Equal(t, date(t, "2024-06-05"), events[1].Start)
	assert.Equal(t, "b-1@staybook", events[2].UID)
	assert.Equal(t, date(t, "2024-06-12"), events[2].End)
}

func TestRender(t *testing.T) {
	p := &property.Property{ID: "p-1", Title: "Loft, by the river; top floor " + strings.Repeat("x", 80), NightlyRate: money.Must(100, "USD")}
	events := []Event{{UID: "b-1@staybook", Summary: "Reserved", Start: date(t, "2024-06-10"), End: date(t, "2024-06-12")}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, p, events, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR\r\n"))
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240610\r\n")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20240612\r\n")
	assert.Contains(t, out, "DTSTAMP:20240601T080000Z\r\n")
	assert.Contains(t, out, `Loft\, by the river\; top floor`)
	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), maxLineOctet+1, line)
	}
}
