package main

import (
	"errors"
	"math/rand"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalcLatency(t *testing.T) {
	require.Equal(t, latencySummary{}, calcLatency(nil))

	samples := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}

	got := calcLatency(samples)
	require.Equal(t, 100, got.Samples)
	require.InDelta(t, 50.5, got.AverageMs, 0.001)
	require.InDelta(t, 50, got.P50Ms, 0.001)
	require.InDelta(t, 95, got.P95Ms, 0.001)
	require.InDelta(t, 99, got.P99Ms, 0.001)
	require.InDelta(t, 100, got.MaxMs, 0.001)
	require.Equal(t, 100*time.Millisecond, samples[0], "input must stay untouched")
}

func TestMetricRecorderSummary(t *testing.T) {
	rec := newMetricRecorder()
	rec.record("groups_today", 10*time.Millisecond, nil)
	rec.record("groups_today", 20*time.Millisecond, nil)
	rec.record("daily_range", 0, errors.New("status 500"))

	summary := rec.toSummary(time.Second, runConfig{BaseURL: "http://x", RPS: 3}, datasetInfo{Prefix: "load-1"})

	require.Equal(t, totalsSummary{Requested: 3, Succeeded: 2, Failed: 1}, summary.Totals)
	require.InDelta(t, 2.0, summary.ActualRPS, 0.001)
	require.Equal(t, 2, summary.Latency["groups_today"].Samples)
	require.NotContains(t, summary.Latency, "daily_range")
	require.Equal(t, []string{"daily_range: status 500"}, summary.Errors)
}

func TestBuildScenarios(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	withoutGroups := buildScenarios(7, nil)
	require.Len(t, withoutGroups, 4)

	scenarios := buildScenarios(7, []int64{-1001483770714})
	require.Len(t, scenarios, 5)

	for _, sc := range scenarios {
		path := sc.Build(rnd)
		require.True(t, strings.HasPrefix(path, "/messages/"), sc.Name)
		u, err := url.Parse(path)
		require.NoError(t, err)
		if sc.Name == "daily_group" {
			require.Equal(t, "-1001483770714", u.Query().Get("group_id"))
		}
	}
}

func TestDBConnString(t *testing.T) {
	cfg := runConfig{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p@ss", DBName: "msgs"}
	require.Equal(t, "postgres://u:p%40ss@db:5432/msgs?sslmode=disable", cfg.dbConnString())
}
