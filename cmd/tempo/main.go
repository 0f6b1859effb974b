// Command tempo applies a time-aware operator to the lines read from
// stdin and writes the resulting lines to stdout.
//
//	tail -f app.log | tempo -op debounce -d 500ms
//	tempo -op timeout -d 2s -fallback "(stalled)" < feed
//	tempo -config tempo.yaml -log-level debug
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/baxromumarov/tempo"
	"github.com/baxromumarov/tempo/chanx"
	"github.com/baxromumarov/tempo/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tempo:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("tempo", reg)
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer srv.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src := tempo.FromChan(readLines(ctx, stdin, logger))
	out, err := build(cfg, src,
		tempo.WithLogger(logger),
		tempo.WithMetrics(m),
		tempo.WithName(cfg.Name),
	)
	if err != nil {
		return err
	}

	logger.Info("tempo started",
		zap.String("op", cfg.Op),
		zap.Duration("duration", cfg.Duration),
	)

	w := bufio.NewWriter(stdout)
	err = out.ForEach(ctx, func(line string) error {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		return w.Flush()
	})
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted")
		return nil
	}
	return err
}

// build applies the configured operator to src.
func build(cfg *Config, src *tempo.Stream[string], opts ...tempo.Option) (*tempo.Stream[string], error) {
	switch cfg.Op {
	case "debounce":
		return tempo.DebounceFor(src, cfg.Duration, opts...)
	case "sample":
		return tempo.Sample(src, cfg.Duration, opts...)
	case "timeout":
		var fallback tempo.TimeoutFunc[string]
		if cfg.Fallback != "" {
			fallback = func(ctx context.Context, emit tempo.Emitter[string]) error {
				return emit(cfg.Fallback)
			}
		}
		return tempo.Timeout(src, cfg.Duration, fallback, opts...)
	}
	return nil, fmt.Errorf("unknown operator %q", cfg.Op)
}

// readLines feeds the lines of r into the returned channel, closing it at
// EOF. A blocked read outlives ctx; the goroutine exits with the process.
func readLines(ctx context.Context, r io.Reader, logger *zap.Logger) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)

		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if err := chanx.Send(ctx, lines, sc.Text()); err != nil {
				return
			}
		}
		if err := sc.Err(); err != nil {
			logger.Error("read stdin", zap.Error(err))
		}
	}()
	return lines
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
