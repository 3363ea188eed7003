package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/countsort"
)

func TestGenerateIsDeterministicAndBounded(t *testing.T) {
	t.Parallel()

	a := Generate(500, 9, 42)
	b := Generate(500, 9, 42)
	c := Generate(500, 9, 43)

	require.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	for _, v := range a {
		require.GreaterOrEqual(t, v, int64(0))
		require.LessOrEqual(t, v, int64(9))
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	report, err := Run(context.Background(), Config{Size: 1000, MaxValue: 100, Runs: 3, Seed: 1}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.Len(t, r.Times, 3)
		assert.LessOrEqual(t, r.Min, r.Mean)
		assert.LessOrEqual(t, r.Mean, r.Max)
	}
	assert.Equal(t, "countsort counting-sort", report.Results[0].Command)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "size", cfg: Config{Size: 0, Runs: 1}, want: "size must be > 0"},
		{name: "max", cfg: Config{Size: 1, MaxValue: -1, Runs: 1}, want: "max value must be >= 0"},
		{name: "max int64", cfg: Config{Size: 1, MaxValue: math.MaxInt64, Runs: 1}, want: "max value must be <="},
		{name: "above table", cfg: Config{Size: 1, MaxValue: countsort.MaxKey + 1, Runs: 1}, want: "max value must be <="},
		{name: "runs", cfg: Config{Size: 1}, want: "runs must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Run(context.Background(), tt.cfg, nil)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Config{Size: 10, MaxValue: 10, Runs: 1}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	r := summarize("cmd", []float64{4, 1, 3, 2})
	assert.Equal(t, 1.0, r.Min)
	assert.Equal(t, 4.0, r.Max)
	assert.Equal(t, 2.5, r.Mean)
	assert.Equal(t, 2.5, r.Median)
	assert.InDelta(t, 1.2910, r.Stddev, 1e-4)

	single := summarize("cmd", []float64{0.5})
	assert.Equal(t, 0.5, single.Median)
	assert.Zero(t, single.Stddev)
}

func TestWriteJSONMatchesHyperfineLayout(t *testing.T) {
	t.Parallel()

	report := Report{Results: []Result{summarize("countsort counting-sort", []float64{0.25, 0.75})}}
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report))

	var doc map[string][]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc["results"], 1)
	entry := doc["results"][0]
	assert.Equal(t, "countsort counting-sort", entry["command"])
	assert.Equal(t, 0.5, entry["mean"])
	assert.Contains(t, entry, "min")
	assert.Contains(t, entry, "max")
}

func TestWriteTableOrdersFastestFirst(t *testing.T) {
	t.Parallel()

	report := Report{Results: []Result{
		summarize("countsort slow", []float64{2}),
		summarize("countsort fast", []float64{1}),
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, report))

	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("countsort fast")), bytes.Index(buf.Bytes(), []byte("countsort slow")))
	assert.Contains(t, out, "2.00")
	assert.Contains(t, out, "relative")
}
