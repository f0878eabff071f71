package models

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func day(t *testing.T, loc *time.Location, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(DateLayout, s, loc)
	require.NoError(t, err)
	return d
}

func TestNewDailyCounts_ZeroFilled(t *testing.T) {
	from := day(t, time.UTC, "2021-01-01")
	to := day(t, time.UTC, "2021-01-03").Add(23*time.Hour + 59*time.Minute + 59*time.Second)

	dc := NewDailyCounts(from, to)

	require.Equal(t, 3, dc.Len())
	require.Equal(t, []DayCount{
		{Date: "2021-01-01", Count: 0},
		{Date: "2021-01-02", Count: 0},
		{Date: "2021-01-03", Count: 0},
	}, dc.Days())
}

func TestNewDailyCounts_InvertedIsEmpty(t *testing.T) {
	dc := NewDailyCounts(day(t, time.UTC, "2021-01-05"), day(t, time.UTC, "2021-01-01"))
	require.Zero(t, dc.Len())

	raw, err := json.Marshal(dc)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(raw))
}

func TestNewDailyCounts_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 2021-03-28 длится 23 часа, 2021-10-31 - 25 часов.
	spring := NewDailyCounts(day(t, loc, "2021-03-27"), day(t, loc, "2021-03-29"))
	require.Equal(t, 3, spring.Len())
	_, ok := spring.Get("2021-03-28")
	require.True(t, ok)

	autumn := NewDailyCounts(day(t, loc, "2021-10-30"), day(t, loc, "2021-11-01"))
	require.Equal(t, []string{"2021-10-30", "2021-10-31", "2021-11-01"}, dates(autumn))
}

func TestDailyCounts_SetAndGet(t *testing.T) {
	dc := NewDailyCounts(day(t, time.UTC, "2021-01-01"), day(t, time.UTC, "2021-01-03"))

	require.True(t, dc.Set("2021-01-02", 2))
	require.False(t, dc.Set("2021-01-09", 7))

	got, ok := dc.Get("2021-01-02")
	require.True(t, ok)
	require.Equal(t, 2, got)

	_, ok = dc.Get("2021-01-09")
	require.False(t, ok)
	require.Equal(t, 2, dc.Total())
	require.Equal(t, 3, dc.Len())
}

func TestDailyCounts_JSONKeepsAscendingOrder(t *testing.T) {
	dc := NewDailyCounts(day(t, time.UTC, "2021-01-01"), day(t, time.UTC, "2021-01-03"))
	// Строки приходят из базы в порядке убывания даты.
	dc.Set("2021-01-03", 5)
	dc.Set("2021-01-02", 2)

	raw, err := json.Marshal(dc)
	require.NoError(t, err)
	require.Equal(t, `{"2021-01-01":0,"2021-01-02":2,"2021-01-03":5}`, string(raw))

	var decoded DailyCounts
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, dc.Days(), decoded.Days())
}

func TestDailyCounts_UnmarshalRejectsNonObject(t *testing.T) {
	var dc DailyCounts
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &dc))
	require.Error(t, json.Unmarshal([]byte(`{"2021-01-01":"x"}`), &dc))
}

func TestEnvelope(t *testing.T) {
	ok := OK([]GroupCount{{Name: "GNU/Weeb", MsgCount: 3}})
	require.False(t, ok.IsError())

	raw, err := json.Marshal(ok)
	require.NoError(t, err)
	require.JSONEq(t, `{"is_ok":true,"msg":null,"data":[{"name":"GNU/Weeb","msg_count":3}]}`, string(raw))

	fail := Fail("bad date")
	require.True(t, fail.IsError())

	raw, err = json.Marshal(fail)
	require.NoError(t, err)
	require.JSONEq(t, `{"is_ok":false,"msg":"bad date","data":null}`, string(raw))
}

func dates(dc *DailyCounts) []string {
	out := make([]string, 0, dc.Len())
	for _, d := range dc.Days() {
		out = append(out, d.Date)
	}
	return out
}
