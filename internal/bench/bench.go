// Package bench times counting sort against the standard library sort and
// reports the results in the layout hyperfine exports.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/countsort"
)

// Config controls one benchmark run.
type Config struct {
	Size     int
	MaxValue int64
	Runs     int
	Seed     uint64
}

// Validate rejects configurations that cannot produce a measurement.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return errors.New("size must be > 0")
	}
	if c.MaxValue < 0 {
		return errors.New("max value must be >= 0")
	}
	if c.MaxValue > countsort.MaxKey {
		return fmt.Errorf("max value must be <= %d", uint64(countsort.MaxKey))
	}
	if c.Runs <= 0 {
		return errors.New("runs must be > 0")
	}
	return nil
}

// Result mirrors one entry of a hyperfine JSON export. Durations are seconds.
type Result struct {
	Command string    `json:"command"`
	Mean    float64   `json:"mean"`
	Stddev  float64   `json:"stddev"`
	Median  float64   `json:"median"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Times   []float64 `json:"times"`
}

// Report is the top-level hyperfine export document.
type Report struct {
	Results []Result `json:"results"`
}

type sorter struct {
	command string
	sort    func([]int64) error
}

// The second word of each command is the label the plotting script uses.
var sorters = []sorter{
	{command: "countsort counting-sort", sort: countsort.Sort[int64]},
	{command: "countsort slices.Sort", sort: func(v []int64) error {
		slices.Sort(v)
		return nil
	}},
}

// Generate returns n pseudo-random values in [0, maxValue]. The same seed
// always yields the same sequence.
func Generate(n int, maxValue int64, seed uint64) []int64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	values := make([]int64, n)
	for i := range values {
		values[i] = rng.Int64N(maxValue + 1)
	}
	return values
}

// Run times every sorter cfg.Runs times over the same generated input.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, fmt.Errorf("invalid benchmark config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	input := Generate(cfg.Size, cfg.MaxValue, cfg.Seed)
	logger.Info("benchmark input generated",
		zap.Int("size", cfg.Size),
		zap.Int64("max_value", cfg.MaxValue),
		zap.Uint64("seed", cfg.Seed),
	)

	report := Report{Results: make([]Result, 0, len(sorters))}
	work := make([]int64, len(input))
	for _, s := range sorters {
		times := make([]float64, 0, cfg.Runs)
		for run := 0; run < cfg.Runs; run++ {
			if err := ctx.Err(); err != nil {
				return Report{}, fmt.Errorf("benchmark canceled: %w", err)
			}
			copy(work, input)
			start := time.Now()
			if err := s.sort(work); err != nil {
				return Report{}, fmt.Errorf("%s: %w", s.command, err)
			}
			elapsed := time.Since(start)
			if !slices.IsSorted(work) {
				return Report{}, fmt.Errorf("%s: output is not sorted", s.command)
			}
			times = append(times, elapsed.Seconds())
		}
		result := summarize(s.command, times)
		logger.Debug("benchmark finished",
			zap.String("command", s.command),
			zap.Float64("mean_seconds", result.Mean),
		)
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func summarize(command string, times []float64) Result {
	r := Result{Command: command, Times: times}
	if len(times) == 0 {
		return r
	}
	sorted := slices.Clone(times)
	slices.Sort(sorted)
	r.Min = sorted[0]
	r.Max = sorted[len(sorted)-1]

	var sum float64
	for _, t := range times {
		sum += t
	}
	r.Mean = sum / float64(len(times))

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		r.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		r.Median = sorted[mid]
	}

	if len(times) > 1 {
		var sq float64
		for _, t := range times {
			sq += (t - r.Mean) * (t - r.Mean)
		}
		r.Stddev = math.Sqrt(sq / float64(len(times)-1))
	}
	return r
}

// WriteTable renders the report as a bordered table, fastest first.
func WriteTable(w io.Writer, report Report) error {
	results := slices.Clone(report.Results)
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Mean < b.Mean:
			return -1
		case a.Mean > b.Mean:
			return 1
		default:
			return 0
		}
	})

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("command", "mean", "min", "max", "runs", "relative")
	var fastest float64
	if len(results) > 0 {
		fastest = results[0].Mean
	}
	for _, r := range results {
		relative := "1.00"
		if fastest > 0 {
			relative = fmt.Sprintf("%.2f", r.Mean/fastest)
		}
		t.Row(
			r.Command,
			formatSeconds(r.Mean),
			formatSeconds(r.Min),
			formatSeconds(r.Max),
			fmt.Sprintf("%d", len(r.Times)),
			relative,
		)
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// WriteJSON writes the hyperfine-shaped document.
func WriteJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.6fs", s)
}
