package manipulate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/pkg/schema"
)

func TestShiftDate(t *testing.T) {
	e := newEngine(t)
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"next monday from a monday", map[string]any{"base_date": "2024-01-01", "kwargs": map[string]any{"weekday": "MO", "weekday_offset": 1}}, "2024-01-08"},
		{"monday on or after", map[string]any{"base_date": "2024-01-01", "kwargs": map[string]any{"weekday": "MO"}}, "2024-01-01"},
		{"second friday", map[string]any{"base_date": "2024-01-01", "kwargs": map[string]any{"weekday": "FR(+2)"}}, "2024-01-12"},
		{"previous sunday", map[string]any{"base_date": "2024-01-03", "kwargs": map[string]any{"weekday": "sunday", "weekday_offset": -1}}, "2023-12-31"},
		{"weekday_name beside kwargs", map[string]any{"base_date": "2024-01-01", "weekday_name": "FR", "weekday_offset": 1, "kwargs": map[string]any{"days": 1}}, "2024-01-05"},
		{"weekday_name in kwargs", map[string]any{"base_date": "2024-01-01", "kwargs": map[string]any{"weekday_name": "WE"}}, "2024-01-03"},
		{"days", map[string]any{"base_date": "2024-02-27", "kwargs": map[string]any{"days": 3}}, "2024-03-01"},
		{"month end clamp", map[string]any{"base_date": "2024-01-31", "kwargs": map[string]any{"months": 1}}, "2024-02-29"},
		{"years clamp", map[string]any{"base_date": "2024-02-29", "kwargs": map[string]any{"years": 1}}, "2025-02-28"},
		{"negative months", map[string]any{"base_date": "2024-03-31", "kwargs": map[string]any{"months": -1}}, "2024-02-29"},
		{"weeks at top level", map[string]any{"base_date": "2024-01-01", "weeks": 2}, "2024-01-15"},
		{"hours keep time", map[string]any{"base_date": "2024-01-01T22:00:00Z", "kwargs": map[string]any{"hours": 3}}, "2024-01-02T01:00:00Z"},
		{"today", map[string]any{"base_date": "today", "kwargs": map[string]any{"days": 1}}, "2024-03-16"},
		{"custom format", map[string]any{"base_date": "2024-01-01", "kwargs": map[string]any{"days": 1}, "format": "02/01/2006"}, "02/01/2024"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := run(t, e, schema.TypeDatetime, "shift", tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestShiftDate_Aliases(t *testing.T) {
	e := newEngine(t)
	for _, action := range []string{"add", "relative"} {
		got, err := run(t, e, schema.TypeDatetime, action, map[string]any{"base_date": "2024-01-01", "days": 1})
		require.NoError(t, err)
		assert.Equal(t, "2024-01-02", got)
	}
}

func TestShiftDate_Errors(t *testing.T) {
	e := newEngine(t)
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing base", map[string]any{"days": 1}},
		{"bad base", map[string]any{"base_date": "yesterday-ish"}},
		{"bad weekday", map[string]any{"base_date": "2024-01-01", "weekday": "XX"}},
		{"fractional days", map[string]any{"base_date": "2024-01-01", "days": 1.5}},
		{"kwargs not a map", map[string]any{"base_date": "2024-01-01", "kwargs": "days=1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, e, schema.TypeDatetime, "shift", tc.params)
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
		})
	}
}

func TestFormatAndDiff(t *testing.T) {
	e := newEngine(t)

	got, err := run(t, e, schema.TypeDatetime, "format", map[string]any{"base_date": "2024-07-04", "format": "Jan 2, 2006"})
	require.NoError(t, err)
	assert.Equal(t, "Jul 4, 2024", got)

	_, err = run(t, e, schema.TypeDatetime, "format", map[string]any{"base_date": "2024-07-04"})
	require.Error(t, err)

	got, err = run(t, e, schema.TypeDatetime, "diff", map[string]any{"start": "2024-01-01", "end": "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, 60.0, got)

	got, err = run(t, e, schema.TypeDatetime, "diff", map[string]any{"start": "2024-01-01T00:00:00Z", "end": "2024-01-01T01:30:00Z", "unit": "minutes"})
	require.NoError(t, err)
	assert.Equal(t, 90.0, got)

	_, err = run(t, e, schema.TypeDatetime, "diff", map[string]any{"start": "2024-01-01", "end": "2024-01-02", "unit": "fortnights"})
	require.Error(t, err)
}
