package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/ajitpratap0/objpool/internal/bench"
	"github.com/ajitpratap0/objpool/pkg/compression"
	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/json"
	"github.com/ajitpratap0/objpool/pkg/logger"
	"github.com/ajitpratap0/objpool/pkg/metrics"
	"github.com/ajitpratap0/objpool/pkg/observability"
	"github.com/ajitpratap0/objpool/pkg/pool"
)

// maxScrapeConns bounds concurrent connections to the metrics endpoint.
const maxScrapeConns = 8

func newBenchCommand() *cobra.Command {
	var format, out, cpuProfile, memProfile string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark an allocation pattern against a pool",
		Long: `Allocate and release objects in rounds and report throughput, round
latency, memory footprint and pool statistics.

Example:
  objpool bench --object-size 64 --objects 10000 --rounds 100 --pattern random`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stopProfile, err := startCPUProfile(cpuProfile)
			if err != nil {
				return err
			}
			res, err := runBench(ctx, cfg)
			stopProfile()
			if err != nil {
				return err
			}
			if err := writeHeapProfile(memProfile); err != nil {
				return err
			}
			if out == "" {
				return writeResult(cmd.OutOrStdout(), res, format)
			}
			return saveResult(out, res)
		},
	}

	cmd.Flags().String("name", "", "Pool name")
	cmd.Flags().Int("object-size", 0, "Object size in bytes")
	cmd.Flags().Int("chunk-size", 0, "Requested chunk size in bytes")
	cmd.Flags().Int("min-chunk-size", 0, "Minimum chunk size in bytes")
	cmd.Flags().Int("alignment", 0, "Slot alignment, a power of two")
	cmd.Flags().Int("max-chunks", 0, "Chunk limit before falling back (0 = unlimited)")
	cmd.Flags().String("locking", "", "Locking strategy (mutex, none)")
	cmd.Flags().String("source", "", "Chunk source (os, heap)")
	cmd.Flags().Int("objects", 0, "Objects allocated per round")
	cmd.Flags().Int("rounds", 0, "Rounds per worker")
	cmd.Flags().String("pattern", "", "Release pattern (lifo, fifo, random, handoff)")
	cmd.Flags().Int("workers", 0, "Concurrent workers (0 = number of CPUs)")
	cmd.Flags().Int64("seed", 0, "Seed for the random pattern")
	cmd.Flags().Bool("trace", false, "Write spans to stderr")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	cmd.Flags().StringVar(&cpuProfile, "cpu-profile", "", "Write a CPU profile of the run to this file")
	cmd.Flags().StringVar(&memProfile, "mem-profile", "", "Write a heap profile after the run to this file")
	cmd.Flags().StringVar(&out, "out", "", "Write the JSON result to this file, compressed by extension (.gz, .zst, .lz4, .s2, .sz)")
	return cmd
}

func runBench(ctx context.Context, cfg *config.Config) (*bench.Result, error) {
	runID := strconv.FormatInt(time.Now().UnixNano(), 36)
	ctx = context.WithValue(ctx, logger.PoolKey, cfg.Pool.Name)
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	log := logger.WithContext(ctx)
	defer func() { _ = logger.Sync() }()

	opts := bench.Options{
		Pool:   cfg.Pool,
		Bench:  cfg.Bench,
		Logger: log,
	}

	if cfg.Tracing.Enabled {
		tracing, err := observability.NewTracing(cfg.Tracing, os.Stderr)
		if err != nil {
			return nil, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to flush spans", zap.Error(err))
			}
		}()
		opts.Tracing = tracing

		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = provider.Shutdown(context.Background()) }()
		opts.Meter = provider.Meter("github.com/ajitpratap0/objpool")
		opts.OnComplete = func(ctx context.Context, _ pool.Allocator) error {
			return logGauges(ctx, reader, log)
		}
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector := metrics.NewPoolCollector(cfg.Metrics.Namespace)
		reg.MustRegister(collector)
		opts.Collector = collector
		opts.Registerer = reg

		shutdown, err := serveMetrics(cfg.Metrics.Address, reg, log)
		if err != nil {
			return nil, err
		}
		defer shutdown()
	}

	return bench.Run(ctx, opts)
}

// serveMetrics serves reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, maxScrapeConns)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("address", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func logGauges(ctx context.Context, reader *sdkmetric.ManualReader, log *zap.Logger) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			g, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				continue
			}
			for _, dp := range g.DataPoints {
				log.Info("pool gauge", zap.String("metric", m.Name), zap.Int64("value", dp.Value))
			}
		}
	}
	return nil
}

// saveResult writes res as JSON to path.
func saveResult(path string, res *bench.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w, err := compression.NewWriter(f, compression.ForPath(path), compression.Default)
	if err != nil {
		return err
	}
	if err := json.MarshalToWriter(w, res, "  "); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func writeResult(w io.Writer, res *bench.Result, format string) error {
	switch format {
	case "json":
		return json.MarshalToWriter(w, res, "  ")
	case "text":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "pattern\t%s\n", res.Pattern)
	fmt.Fprintf(tw, "workers\t%d\n", res.Workers)
	fmt.Fprintf(tw, "objects x rounds\t%d x %d\n", res.Objects, res.Rounds)
	fmt.Fprintf(tw, "operations\t%d\n", res.Operations)
	fmt.Fprintf(tw, "elapsed\t%s\n", res.Elapsed)
	fmt.Fprintf(tw, "ops/sec\t%.0f\n", res.OpsPerSecond)
	fmt.Fprintf(tw, "round p50 / p99\t%s / %s\n", res.RoundP50, res.RoundP99)
	fmt.Fprintf(tw, "peak rss\t%d\n", res.PeakRSS)
	fmt.Fprintf(tw, "slot / chunk\t%d / %d (%d slots)\n", res.Layout.ObjectSizeOf, res.Layout.ChunkSize, res.Layout.ObjectCounter)
	fmt.Fprintf(tw, "chunks created / evicted\t%d / %d\n", res.Stats.ChunksCreated, res.Stats.ChunksEvicted)
	fmt.Fprintf(tw, "escalations\t%d\n", res.Stats.Escalations)
	fmt.Fprintf(tw, "fallback allocations\t%d\n", res.Stats.FallbackAllocations)
	return tw.Flush()
}
