package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-tsfn/tsfn"
)

func main() {
	var (
		producers   = flag.String("producers", "1,2,4,8", "Producer counts to run (comma-separated)")
		capacity    = flag.Int("capacity", 64, "Max queue size (0 for unbounded)")
		mode        = flag.String("mode", "blocking", "Call mode: blocking or nonblocking")
		duration    = flag.Duration("duration", 2*time.Second, "How long each scenario produces when -iter is 0")
		iter        = flag.Int("iter", 0, "Items per producer (overrides -duration)")
		guest       = flag.Bool("guest", false, "Deliver items into the accumulator wasm guest")
		jsonFile    = flag.String("json", "", "Append a JSON report to this file")
		plotFile    = flag.String("plot", "", "Write a throughput PNG to this file")
		progress    = flag.Bool("progress", false, "Show a progress bar")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	cfg, err := parseConfig(*producers, *capacity, *mode, *duration, *iter, *guest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: tsfnbench [-producers 1,2,4] [-capacity N] [-mode blocking|nonblocking] [-iter N | -duration D]")
		fmt.Fprintln(os.Stderr, "       tsfnbench -guest -json report.json -plot throughput.png")
		fmt.Fprintln(os.Stderr, "       tsfnbench -i  (interactive mode)")
		os.Exit(1)
	}

	cfg.logger = zap.NewNop()
	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		cfg.logger = logger
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var results []Result
	if *interactive && term.IsTerminal(int(os.Stdout.Fd())) {
		results, err = runInteractive(ctx, cfg)
	} else {
		if *interactive {
			fmt.Fprintln(os.Stderr, "stdout is not a terminal, running without TUI")
		}
		results, err = run(ctx, cfg, *progress)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *jsonFile != "" {
		if err := appendReport(*jsonFile, newReport(results)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: write report: %v\n", err)
			os.Exit(1)
		}
	}
	if *plotFile != "" {
		if err := writePlot(*plotFile, results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: write plot: %v\n", err)
			os.Exit(1)
		}
	}
}

func parseConfig(producers string, capacity int, mode string, duration time.Duration, iter int, guest bool) (benchConfig, error) {
	cfg := benchConfig{
		capacity: capacity,
		duration: duration,
		iter:     iter,
		guest:    guest,
	}

	counts, err := parseProducers(producers)
	if err != nil {
		return cfg, err
	}
	cfg.producers = counts

	switch strings.ToLower(mode) {
	case "blocking":
		cfg.mode = tsfn.ModeBlocking
	case "nonblocking", "non-blocking":
		cfg.mode = tsfn.ModeNonBlocking
	default:
		return cfg, fmt.Errorf("unknown mode %q", mode)
	}

	if capacity < 0 {
		return cfg, fmt.Errorf("capacity must be >= 0, got %d", capacity)
	}
	if iter < 0 {
		return cfg, fmt.Errorf("iter must be >= 0, got %d", iter)
	}
	if iter == 0 && duration <= 0 {
		return cfg, fmt.Errorf("need -iter or a positive -duration")
	}
	return cfg, nil
}

func parseProducers(s string) ([]int, error) {
	var counts []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("producer count %q: %w", part, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("producer count must be >= 1, got %d", n)
		}
		counts = append(counts, n)
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("no producer counts given")
	}
	return counts, nil
}

func run(ctx context.Context, cfg benchConfig, showProgress bool) ([]Result, error) {
	fmt.Printf("Capacity: %d  Mode: %s  Guest: %v\n\n", cfg.capacity, cfg.mode, cfg.guest)

	results := make([]Result, 0, len(cfg.producers))
	for _, n := range cfg.producers {
		var observe func(int64)
		var bar *progressbar.ProgressBar
		if showProgress {
			total := cfg.expected(n)
			if total == 0 {
				total = -1
			}
			bar = progressbar.Default(total, fmt.Sprintf("%d producers", n))
			observe = func(delivered int64) { _ = bar.Set64(delivered) }
		}

		res, err := runScenario(ctx, cfg, n, observe)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return results, fmt.Errorf("%d producers: %w", n, err)
		}
		results = append(results, res)
		printResult(res)
	}
	return results, nil
}

func printResult(r Result) {
	fmt.Printf("producers=%-3d delivered=%-10d rejected=%-10d elapsed=%-12s %12.0f items/sec",
		r.Producers, r.Delivered, r.Rejected, r.Elapsed, r.Throughput)
	if r.Guest {
		fmt.Printf("  guest count=%d", r.GuestCount)
	}
	fmt.Println()
}
