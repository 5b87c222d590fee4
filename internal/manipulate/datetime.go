package manipulate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rendis/scenario/pkg/schema"
)

const dateLayout = "2006-01-02"

var datetimeOps = map[string]operation{
	"shift":    shiftDate,
	"add":      shiftDate,
	"relative": shiftDate,
	"format":   formatDate,
	"diff":     diffDates,
}

// inputLayouts are tried in order when parsing a date value.
var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	dateLayout,
}

var weekdays = map[string]time.Weekday{
	"mo": time.Monday, "mon": time.Monday, "monday": time.Monday,
	"tu": time.Tuesday, "tue": time.Tuesday, "tuesday": time.Tuesday,
	"we": time.Wednesday, "wed": time.Wednesday, "wednesday": time.Wednesday,
	"th": time.Thursday, "thu": time.Thursday, "thursday": time.Thursday,
	"fr": time.Friday, "fri": time.Friday, "friday": time.Friday,
	"sa": time.Saturday, "sat": time.Saturday, "saturday": time.Saturday,
	"su": time.Sunday, "sun": time.Sunday, "sunday": time.Sunday,
}

// weekdayPattern accepts "MO", "MO(+1)" and "MO(-2)".
var weekdayPattern = regexp.MustCompile(`^([A-Za-z]+)(?:\(([+-]?\d+)\))?$`)

// offsetUnits lists the accepted calendar offset keys.
var offsetUnits = []string{"years", "months", "weeks", "days", "hours", "minutes", "seconds"}

// parseDate reads a date or datetime. dateOnly reports whether the input
// carried no time component.
func (e *Engine) parseDate(v any) (time.Time, bool, error) {
	s, err := toText(v)
	if err != nil {
		return time.Time{}, false, err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		now := e.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), true, nil
	case "now":
		return e.now(), false, nil
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, layout == dateLayout, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("cannot parse %q as a date", s)
}

func renderDate(t time.Time, dateOnly bool, layout string) string {
	switch {
	case layout != "":
		return t.Format(layout)
	case dateOnly:
		return t.Format(dateLayout)
	default:
		return t.Format(time.RFC3339)
	}
}

// offsets reads offset units from the "kwargs" mapping, or from the params
// themselves when no mapping is given.
func offsets(p params) (map[string]any, error) {
	if raw, ok := p["kwargs"]; ok {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("kwargs must be a mapping, got %T", raw)
		}
		return m, nil
	}
	return p, nil
}

// shiftDate applies a relative calendar offset to base_date. Years and
// months are applied first with the day clamped to the target month, then
// the fixed units, then the weekday constraint.
func shiftDate(_ context.Context, e *Engine, action string, p params) (any, error) {
	baseRaw, ok := p["base_date"]
	if !ok {
		return nil, invalid(schema.TypeDatetime, action, "base_date is required")
	}
	base, dateOnly, err := e.parseDate(baseRaw)
	if err != nil {
		return nil, invalid(schema.TypeDatetime, action, "%v", err)
	}
	offs, err := offsets(p)
	if err != nil {
		return nil, invalid(schema.TypeDatetime, action, "%v", err)
	}

	amounts := make(map[string]int, len(offsetUnits))
	for _, unit := range offsetUnits {
		v, ok := offs[unit]
		if !ok {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return nil, invalid(schema.TypeDatetime, action, "%s: %v", unit, err)
		}
		amounts[unit] = n
	}
	if amounts["hours"] != 0 || amounts["minutes"] != 0 || amounts["seconds"] != 0 {
		dateOnly = false
	}

	t := addMonths(base, amounts["years"]*12+amounts["months"])
	t = t.AddDate(0, 0, amounts["weeks"]*7+amounts["days"])
	t = t.Add(time.Duration(amounts["hours"])*time.Hour +
		time.Duration(amounts["minutes"])*time.Minute +
		time.Duration(amounts["seconds"])*time.Second)

	if raw := weekdayParam(offs, p, "weekday", "weekday_name"); raw != nil {
		day, n, err := parseWeekday(raw)
		if err != nil {
			return nil, invalid(schema.TypeDatetime, action, "%v", err)
		}
		if v := weekdayParam(offs, p, "weekday_offset"); v != nil {
			if n, err = toInt(v); err != nil {
				return nil, invalid(schema.TypeDatetime, action, "weekday_offset: %v", err)
			}
		}
		t = seekWeekday(t, day, n)
	}

	return renderDate(t, dateOnly, p.string("format", "")), nil
}

// weekdayParam returns the first non-nil value under keys, looking in the
// offsets before the top-level params.
func weekdayParam(offs map[string]any, p params, keys ...string) any {
	for _, src := range []map[string]any{offs, p} {
		for _, k := range keys {
			if v, ok := src[k]; ok && v != nil {
				return v
			}
		}
	}
	return nil
}

// addMonths moves by whole months, clamping the day to the target month.
func addMonths(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func parseWeekday(raw any) (time.Weekday, int, error) {
	s, err := toText(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("weekday: %w", err)
	}
	m := weekdayPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid weekday %q", s)
	}
	day, ok := weekdays[strings.ToLower(m[1])]
	if !ok {
		return 0, 0, fmt.Errorf("unknown weekday %q", m[1])
	}
	n := 0
	if m[2] != "" {
		n, _ = strconv.Atoi(m[2])
	}
	return day, n, nil
}

// seekWeekday moves t to a weekday. n == 0 keeps t when it already falls on
// day, otherwise moves forward to the next one. n > 0 picks the nth
// occurrence strictly after t, n < 0 the nth strictly before.
func seekWeekday(t time.Time, day time.Weekday, n int) time.Time {
	delta := int(day) - int(t.Weekday())
	switch {
	case n == 0:
		if delta < 0 {
			delta += 7
		}
		return t.AddDate(0, 0, delta)
	case n > 0:
		if delta <= 0 {
			delta += 7
		}
		return t.AddDate(0, 0, delta+(n-1)*7)
	default:
		if delta >= 0 {
			delta -= 7
		}
		return t.AddDate(0, 0, delta+(n+1)*7)
	}
}

// formatDate renders base_date with the Go layout in "format".
func formatDate(_ context.Context, e *Engine, action string, p params) (any, error) {
	baseRaw, ok := p["base_date"]
	if !ok {
		if baseRaw, ok = p.values(); !ok {
			return nil, invalid(schema.TypeDatetime, action, "base_date is required")
		}
	}
	layout := p.string("format", "")
	if layout == "" {
		return nil, invalid(schema.TypeDatetime, action, "format is required")
	}
	t, _, err := e.parseDate(baseRaw)
	if err != nil {
		return nil, invalid(schema.TypeDatetime, action, "%v", err)
	}
	return t.Format(layout), nil
}

// diffDates returns end - start in "unit" (days by default).
func diffDates(_ context.Context, e *Engine, action string, p params) (any, error) {
	start, _, err := e.parseDate(p["start"])
	if err != nil {
		return nil, invalid(schema.TypeDatetime, action, "start: %v", err)
	}
	end, _, err := e.parseDate(p["end"])
	if err != nil {
		return nil, invalid(schema.TypeDatetime, action, "end: %v", err)
	}
	d := end.Sub(start)
	switch unit := p.string("unit", "days"); unit {
	case "days":
		return d.Hours() / 24, nil
	case "weeks":
		return d.Hours() / (24 * 7), nil
	case "hours":
		return d.Hours(), nil
	case "minutes":
		return d.Minutes(), nil
	case "seconds":
		return d.Seconds(), nil
	default:
		return nil, invalid(schema.TypeDatetime, action, "unknown unit %q", unit)
	}
}
