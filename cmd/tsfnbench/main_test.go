package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/wasm-tsfn/tsfn"
)

func TestParseProducers(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"1", []int{1}, false},
		{"1,2, 4 ,8", []int{1, 2, 4, 8}, false},
		{"2,,3,", []int{2, 3}, false},
		{"", nil, true},
		{"0", nil, true},
		{"-1", nil, true},
		{"two", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseProducers(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig("1,4", 16, "NonBlocking", time.Second, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, cfg.producers)
	assert.Equal(t, tsfn.ModeNonBlocking, cfg.mode)
	assert.Equal(t, 16, cfg.capacity)
	assert.True(t, cfg.guest)

	cfg, err = parseConfig("2", 0, "blocking", 0, 10, false)
	require.NoError(t, err)
	assert.Equal(t, tsfn.ModeBlocking, cfg.mode)
	assert.Equal(t, int64(20), cfg.expected(2))

	_, err = parseConfig("1", 1, "sometimes", time.Second, 0, false)
	assert.Error(t, err)
	_, err = parseConfig("1", -1, "blocking", time.Second, 0, false)
	assert.Error(t, err)
	_, err = parseConfig("1", 1, "blocking", 0, 0, false)
	assert.Error(t, err)
	_, err = parseConfig("1", 1, "blocking", time.Second, -5, false)
	assert.Error(t, err)
}

func TestRunScenario_Blocking(t *testing.T) {
	cfg := benchConfig{
		capacity: 4,
		mode:     tsfn.ModeBlocking,
		iter:     500,
		logger:   zaptest.NewLogger(t),
	}

	var observed atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res, err := runScenario(ctx, cfg, 4, func(n int64) { observed.Store(n) })
	require.NoError(t, err)

	assert.Equal(t, 4, res.Producers)
	assert.Equal(t, "blocking", res.Mode)
	assert.Equal(t, int64(2000), res.Accepted)
	assert.Equal(t, int64(2000), res.Delivered)
	assert.Zero(t, res.Rejected)
	assert.Equal(t, int64(2000), observed.Load(), "final observe sees every item")
}

func TestRunScenario_NonBlockingAccountsEveryCall(t *testing.T) {
	cfg := benchConfig{
		capacity: 2,
		mode:     tsfn.ModeNonBlocking,
		iter:     300,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res, err := runScenario(ctx, cfg, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(900), res.Accepted+res.Rejected)
	assert.Equal(t, res.Accepted, res.Delivered)
}

func TestRunScenario_Duration(t *testing.T) {
	cfg := benchConfig{
		capacity: 8,
		mode:     tsfn.ModeBlocking,
		duration: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res, err := runScenario(ctx, cfg, 2, nil)
	require.NoError(t, err)
	assert.Positive(t, res.Delivered)
	assert.Equal(t, res.Accepted, res.Delivered)
	assert.Positive(t, res.Throughput)
}

func TestRunScenario_Guest(t *testing.T) {
	cfg := benchConfig{
		capacity: 16,
		mode:     tsfn.ModeBlocking,
		iter:     100,
		guest:    true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res, err := runScenario(ctx, cfg, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Delivered)
	assert.Equal(t, int64(200), res.GuestCount)
}

func TestRunScenario_Cancelled(t *testing.T) {
	cfg := benchConfig{
		capacity: 1,
		mode:     tsfn.ModeBlocking,
		duration: time.Hour,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := runScenario(ctx, cfg, 4, nil)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled scenario did not return")
	}
}

func TestAppendReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	results := []Result{{Producers: 1, Delivered: 10, Throughput: 100}}

	require.NoError(t, appendReport(path, newReport(results)))
	require.NoError(t, appendReport(path, newReport(results)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var reports []Report
	require.NoError(t, json.Unmarshal(data, &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, results, reports[1].Results)
	assert.Positive(t, reports[0].System.NumCPU)
}

func TestAppendReport_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	err := appendReport(path, newReport(nil))
	assert.Error(t, err)
}

func TestWritePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "throughput.png")

	require.Error(t, writePlot(path, nil))

	results := []Result{
		{Producers: 1, Capacity: 64, Mode: "blocking", Throughput: 1000},
		{Producers: 2, Capacity: 64, Mode: "blocking", Throughput: 1800},
		{Producers: 4, Capacity: 64, Mode: "blocking", Throughput: 2500},
	}
	require.NoError(t, writePlot(path, results))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBenchModel(t *testing.T) {
	cancelled := false
	cfg := benchConfig{producers: []int{2}, capacity: 4, mode: tsfn.ModeBlocking, iter: 50}
	m := newBenchModel(cfg, func() { cancelled = true })

	m.Update(scenarioStartMsg{producers: 2, started: time.Now()})
	m.Update(deliveredMsg{producers: 2, delivered: 25})
	assert.InDelta(t, 0.25, m.percent(), 1e-9)

	m.Update(deliveredMsg{producers: 3, delivered: 99})
	assert.Equal(t, int64(25), m.delivered, "stale scenario updates are ignored")
	assert.Contains(t, m.View(), "25 delivered")

	m.Update(resultMsg{result: Result{Producers: 2, Delivered: 100, Throughput: 42}})
	m.Update(doneMsg{})
	view := m.View()
	assert.Contains(t, view, "2 producers")
	assert.True(t, strings.Contains(view, "q quit"))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, cancelled)
	require.NotNil(t, cmd)
}
