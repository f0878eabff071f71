package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckDateLayout(t *testing.T) {
	tests := []struct {
		layout string
		ok     bool
	}{
		{layout: "2006-01-02", ok: true},
		{layout: "2006/01/02", ok: true},
		{layout: "02.01.2006", ok: true},
		{layout: "2006.01.02", ok: true},
		{layout: "Jan 2, 2006", ok: true},
		{layout: "January 2, 2006", ok: true},
		{layout: "2006-01-02T15:04:05Z07:00", ok: true},
		{layout: "2006-01-02 15:04:05.000", ok: true},
		{layout: "2006-01-02 15:04:05 -0700", ok: true},
		{layout: "2006-01-02x", ok: false},
		{layout: "2006-01-", ok: false},
		{layout: "2006--01", ok: false},
		{layout: "15:04:05", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			err := checkDateLayout(tt.layout)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestParseStrictDate(t *testing.T) {
	loc := mustLoadLocation("Asia/Jakarta")

	got, err := parseStrictDate("2021-01-02", loc)
	require.NoError(t, err)
	require.Equal(t, time.Date(2021, time.January, 2, 0, 0, 0, 0, loc), got)

	got, err = parseStrictDate("2021/01/02", loc)
	require.NoError(t, err)
	require.Equal(t, time.Date(2021, time.January, 2, 0, 0, 0, 0, loc), got)

	for _, bad := range []string{"2021-01-01x", "2021-01-", "2021--01", "2021-13-01", "2021-02-30"} {
		_, err := parseStrictDate(bad, loc)
		require.Error(t, err, bad)
	}
}
