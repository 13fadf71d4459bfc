package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-tsfn/engine"
	"github.com/wippyai/wasm-tsfn/env"
	"github.com/wippyai/wasm-tsfn/errors"
	"github.com/wippyai/wasm-tsfn/loop"
	"github.com/wippyai/wasm-tsfn/tsfn"
)

// benchConfig is the parsed command line.
type benchConfig struct {
	producers []int
	capacity  int
	mode      tsfn.CallMode
	duration  time.Duration
	iter      int
	guest     bool
	logger    *zap.Logger
}

// Result holds results for one scenario.
type Result struct {
	Producers  int     `json:"producers"`
	Capacity   int     `json:"capacity"`
	Mode       string  `json:"mode"`
	Guest      bool    `json:"guest"`
	Accepted   int64   `json:"accepted"`  // calls that enqueued
	Rejected   int64   `json:"rejected"`  // non-blocking calls refused as full
	Delivered  int64   `json:"delivered"` // items the loop dispatched
	GuestCount int64   `json:"guest_count,omitempty"`
	Elapsed    string  `json:"elapsed"`
	Throughput float64 `json:"throughput_items_sec"`
	Timestamp  int64   `json:"timestamp"`
	GoVersion  string  `json:"go_version"`
}

// expected returns the number of items a scenario will deliver, or 0 when
// it runs for a duration.
func (c benchConfig) expected(producers int) int64 {
	if c.iter <= 0 {
		return 0
	}
	return int64(producers) * int64(c.iter)
}

// runScenario drives one threadsafe function with the given number of
// producers until they finish or the duration elapses. observe, if set,
// is called periodically with the delivered count.
func runScenario(ctx context.Context, cfg benchConfig, producers int, observe func(delivered int64)) (Result, error) {
	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	l := loop.New(loop.WithLogger(log))
	e := env.New(l, env.WithLogger(log))
	defer e.Close()

	var delivered atomic.Int64
	call := func(any, any) { delivered.Add(1) }

	var guest *engine.Guest
	if cfg.guest {
		eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{Logger: log})
		if err != nil {
			return Result{}, fmt.Errorf("create engine: %w", err)
		}
		defer eng.Close(ctx)

		guest, err = eng.LoadGuest(ctx, engine.AccumulatorGuest())
		if err != nil {
			return Result{}, fmt.Errorf("load guest: %w", err)
		}
		sink, err := guest.Sink(engine.AccumulatorOnItem, engine.AccumulatorParams)
		if err != nil {
			return Result{}, fmt.Errorf("bind sink: %w", err)
		}
		deliver := sink.CallFunc(ctx)
		call = func(c any, item any) {
			deliver(c, item)
			delivered.Add(1)
		}
	}

	h, err := e.CreateThreadsafeFunction(env.CreateOptions{
		Name:               fmt.Sprintf("bench-%d", producers),
		Call:               call,
		MaxQueueSize:       cfg.capacity,
		InitialThreadCount: producers,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create threadsafe function: %w", err)
	}

	var accepted, rejected atomic.Int64
	var deadline time.Time
	if cfg.iter <= 0 {
		deadline = time.Now().Add(cfg.duration)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = e.ReleaseThreadsafeFunction(h, tsfn.ReleaseNormal) }()
			produce(e, h, cfg, deadline, &accepted, &rejected)
		}()
	}

	stop := make(chan struct{})
	ticking := make(chan struct{})
	if observe != nil {
		go func() {
			defer close(ticking)
			t := time.NewTicker(50 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-stop:
					return
				case <-t.C:
					observe(delivered.Load())
				}
			}
		}()
	} else {
		close(ticking)
	}

	runErr := l.Run(ctx, loop.RunDefault)
	elapsed := time.Since(start)
	close(stop)
	<-ticking

	if runErr != nil {
		// Unblock producers parked on a full queue before waiting for them.
		_ = e.Close()
		wg.Wait()
		return Result{}, runErr
	}
	wg.Wait()

	if observe != nil {
		observe(delivered.Load())
	}

	res := Result{
		Producers: producers,
		Capacity:  cfg.capacity,
		Mode:      cfg.mode.String(),
		Guest:     cfg.guest,
		Accepted:  accepted.Load(),
		Rejected:  rejected.Load(),
		Delivered: delivered.Load(),
		Elapsed:   elapsed.String(),
		Timestamp: time.Now().Unix(),
		GoVersion: runtime.Version(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		res.Throughput = float64(res.Delivered) / secs
	}
	if guest != nil {
		out, err := guest.Call(ctx, engine.AccumulatorCount)
		if err != nil {
			return res, fmt.Errorf("read guest count: %w", err)
		}
		res.GuestCount = int64(uint32(out[0]))
	}
	return res, nil
}

// produce calls until the item budget or the deadline is spent, or the
// function stops accepting items.
func produce(e *env.Env, h env.Handle, cfg benchConfig, deadline time.Time, accepted, rejected *atomic.Int64) {
	for i := 0; cfg.iter <= 0 || i < cfg.iter; i++ {
		if cfg.iter <= 0 && i%256 == 0 && time.Now().After(deadline) {
			return
		}
		err := e.CallThreadsafeFunction(h, int64(i), cfg.mode)
		switch {
		case err == nil:
			accepted.Add(1)
		case errors.Is(err, errors.ErrQueueFull):
			rejected.Add(1)
			runtime.Gosched()
		default:
			return
		}
	}
}
