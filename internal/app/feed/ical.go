// Package feed renders a property's blocked nights as an iCal calendar so
// channel managers can import them.
package feed

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

const (
	ContentType  = "text/calendar; charset=utf-8"
	productID    = "-//staybook//availability feed//EN"
	icalDate     = "20060102"
	icalStamp    = "20060102T150405Z"
	maxLineOctet = 75
)

// Event is one all-day VEVENT; End is exclusive like a checkout date.
type Event struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
}

// BuildEvents turns blocking stays and closed override nights into events.
// Consecutive closed nights collapse into one event.
func BuildEvents(id property.ID, stays []availability.Stay, overrides []*availability.Override) []Event {
	out := make([]Event, 0, len(stays))
	for _, s := range stays {
		out = append(out, Event{
			UID:     s.Reference + "@staybook",
			Summary: "Reserved",
			Start:   s.Range.CheckIn,
			End:     s.Range.CheckOut,
		})
	}

	closed := availability.NewNightSet()
	for _, o := range overrides {
		if o != nil && !o.Available {
			closed.Add(o.Date)
		}
	}
	var run *Event
	for _, night := range closed.Dates() {
		if run != nil && run.End.Equal(night) {
			run.End = night.AddDate(0, 0, 1)
			continue
		}
		if run != nil {
			out = append(out, *run)
		}
		run = &Event{
			UID:     fmt.Sprintf("%s-closed-%s@staybook", id, night.Format(icalDate)),
			Summary: "Not available",
			Start:   night,
			End:     night.AddDate(0, 0, 1),
		}
	}
	if run != nil {
		out = append(out, *run)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Render writes a VCALENDAR with CRLF line endings and folded long lines.
func Render(w io.Writer, p *property.Property, events []Event, now time.Time) error {
	bw := bufio.NewWriter(w)
	write := func(line string) {
		for len(line) > maxLineOctet {
			cut := maxLineOctet
			for cut > 0 && !utf8Boundary(line, cut) {
				cut--
			}
			bw.WriteString(line[:cut])
			bw.WriteString("\r\n ")
			line = line[cut:]
		}
		bw.WriteString(line)
		bw.WriteString("\r\n")
	}

	stamp := now.UTC().Format(icalStamp)
	write("BEGIN:VCALENDAR")
	write("VERSION:2.0")
	write("PRODID:" + productID)
	write("CALSCALE:GREGORIAN")
	write("METHOD:PUBLISH")
	name := strings.TrimSpace(p.Title)
	if name == "" {
		name = string(p.ID)
	}
	write("X-WR-CALNAME:" + escape(name))
	for _, ev := range events {
		write("BEGIN:VEVENT")
		write("UID:" + escape(ev.UID))
		write("DTSTAMP:" + stamp)
		write("DTSTART;VALUE=DATE:" + daterange.Day(ev.Start).Format(icalDate))
		write("DTEND;VALUE=DATE:" + daterange.Day(ev.End).Format(icalDate))
		write("SUMMARY:" + escape(ev.Summary))
		write("TRANSP:OPAQUE")
		write("END:VEVENT")
	}
	write("END:VCALENDAR")
	return bw.Flush()
}

func escape(value string) string {
	r := strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)
	return r.Replace(value)
}

func utf8Boundary(s string, i int) bool {
	return i >= len(s) || s[i]&0xC0 != 0x80
}
