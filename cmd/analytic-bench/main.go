// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/opentracing/opentracing-go"
	"github.com/pingcap/analytic/config"
	"github.com/pingcap/analytic/executor/analytic"
	"github.com/pingcap/analytic/executor/operator"
	"github.com/pingcap/analytic/metrics"
	"github.com/pingcap/analytic/types"
	"github.com/pingcap/analytic/util/chunk"
	"github.com/pingcap/analytic/util/execdetails"
	"github.com/pingcap/analytic/util/logutil"
	"github.com/pingcap/analytic/util/memory"
	"github.com/pingcap/analytic/util/tracing"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

const (
	flagConfig      = "config"
	flagRows        = "rows"
	flagPartition   = "partition-rows"
	flagLanes       = "lanes"
	flagFunc        = "func"
	flagFrame       = "frame"
	flagNoOrder     = "no-order"
	flagLimit       = "limit"
	flagSeed        = "seed"
	flagPrint       = "print"
	flagTrace       = "trace"
	flagMetricsAddr = "metrics-addr"
)

type benchOptions struct {
	configPath  string
	rows        int
	partition   int
	lanes       int
	seed        uint64
	print       int
	trace       bool
	metricsAddr string
	plan        planOptions
}

func newRootCommand() *cobra.Command {
	opts := &benchOptions{}
	cmd := &cobra.Command{
		Use:          "analytic-bench",
		Short:        "analytic-bench evaluates window functions over generated sorted data.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, flagConfig, "", "config file path")
	flags.IntVar(&opts.rows, flagRows, 100000, "rows per lane")
	flags.IntVar(&opts.partition, flagPartition, 100, "average rows per partition")
	flags.IntVar(&opts.lanes, flagLanes, 0, "number of lanes, 0 uses performance.window-concurrency")
	flags.StringSliceVar(&opts.plan.funcs, flagFunc, []string{"sum"}, "window functions over the value column")
	flags.StringVar(&opts.plan.frame, flagFrame, "none", "frame as unit,start,end, e.g. rows,-1,1 or range,unbounded,current")
	flags.BoolVar(&opts.plan.noOrder, flagNoOrder, false, "omit ORDER BY")
	flags.Int64Var(&opts.plan.limit, flagLimit, -1, "max rows per lane, negative means no limit")
	flags.Uint64Var(&opts.seed, flagSeed, 1, "random seed of the generated data")
	flags.IntVar(&opts.print, flagPrint, 0, "print the first n result rows of lane 0")
	flags.BoolVar(&opts.trace, flagTrace, false, "print a summary of the operator spans")
	flags.StringVar(&opts.metricsAddr, flagMetricsAddr, "", "serve prometheus metrics on this address, overrides status.metrics-addr")
	return cmd
}

// loadConfig stores the file config as the global config and applies the
// flag overrides on top of it. The previous global config is restored when
// the result is invalid.
func loadConfig(opts *benchOptions) (*config.Config, error) {
	cfg := config.NewConfig()
	if opts.configPath != "" {
		if err := cfg.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	prev := config.GetGlobalConfig()
	config.StoreGlobalConfig(cfg)
	config.UpdateGlobal(func(conf *config.Config) {
		if opts.lanes > 0 {
			conf.Performance.WindowConcurrency = opts.lanes
		}
		if opts.metricsAddr != "" {
			conf.Status.MetricsAddr = opts.metricsAddr
		}
	})
	cfg = config.GetGlobalConfig()
	if err := cfg.Valid(); err != nil {
		config.StoreGlobalConfig(prev)
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

func serveMetrics(addr string) *http.Server {
	metrics.RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}

// laneResult collects the output of one lane.
type laneResult struct {
	rows   int64
	chunks int
	sample []*chunk.Chunk
}

func runBench(ctx context.Context, out io.Writer, opts *benchOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err = logutil.InitLogger(cfg.Log.ToLogConfig()); err != nil {
		return err
	}
	if cfg.Status.MetricsAddr != "" {
		srv := serveMetrics(cfg.Status.MetricsAddr)
		defer func() {
			_ = srv.Close()
		}()
	}
	if opts.rows < 0 || opts.partition <= 0 {
		return errors.Errorf("rows and partition rows should be positive")
	}

	plan, err := buildPlan(opts.plan)
	if err != nil {
		return err
	}
	dop := cfg.Performance.WindowConcurrency
	rng := rand.New(rand.NewPCG(opts.seed, uint64(dop)))
	readers := make([]operator.ChunkReader, dop)
	for i := range readers {
		readers[i] = operator.NewSliceReader(generateLane(rng, opts.rows, opts.partition, cfg.Performance.MaxChunkSize))
	}

	var spans *tracing.Collector
	if opts.trace {
		spans = tracing.NewCollector()
		root := tracing.NewRecordedTrace("analytic-bench", spans.Record)
		defer root.Finish()
		ctx = opentracing.ContextWithSpan(ctx, root)
	}

	coll := execdetails.NewRuntimeStatsColl()
	tracker := memory.NewTracker(plan.ID, cfg.Performance.MemQuotaWindow)
	factory := analytic.NewAnalytorFactory(dop, plan,
		analytic.WithRuntimeStatsColl(coll), analytic.WithMemTracker(tracker))
	results := make([]laneResult, dop)
	ctx = logutil.WithCategory(ctx, "analytic-bench")
	logutil.Logger(ctx).Info("window benchmark started",
		zap.String("window", plan.ExplainInfo()),
		zap.Int("lanes", dop),
		zap.Int("rowsPerLane", opts.rows))

	start := time.Now()
	err = operator.Run(ctx, factory, readers, func(_ context.Context, lane int, chk *chunk.Chunk) error {
		r := &results[lane]
		r.rows += int64(chk.NumRows())
		r.chunks++
		if lane == 0 && opts.print > 0 && r.rows-int64(chk.NumRows()) < int64(opts.print) {
			r.sample = append(r.sample, chk)
		}
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	printSummary(out, factory, results, elapsed)
	if opts.print > 0 {
		printSample(out, plan.Schema, results[0].sample, opts.print)
	}
	if spans != nil {
		printSpans(out, spans)
	}
	if coll.ExistsRootStats(plan.ID) {
		_, _ = fmt.Fprintf(out, "stats: %s\n", coll.GetRootStats(plan.ID))
	}
	_, _ = fmt.Fprintf(out, "memory: %s\n", tracker)
	return nil
}

func printSummary(out io.Writer, f *analytic.AnalytorFactory, results []laneResult, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Lane", "Rows", "Chunks", "Partitions", "Peer Groups", "Max Memory"})
	var total, chunks, partitions, peerGroups int64
	for i, r := range results {
		a, err := f.Create(i)
		if err != nil {
			continue
		}
		stats := a.Stats()
		if stats == nil {
			continue
		}
		t.AppendRow(table.Row{i, r.rows, r.chunks, stats.Partitions(), stats.PeerGroups(), memory.FormatBytes(a.MemTracker().MaxConsumed())})
		total += r.rows
		chunks += int64(r.chunks)
		partitions += stats.Partitions()
		peerGroups += stats.PeerGroups()
	}
	t.AppendFooter(table.Row{"Total", total, chunks, partitions, peerGroups, ""})
	t.Render()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(total) / elapsed.Seconds()
	}
	_, _ = fmt.Fprintf(out, "elapsed: %s, %.0f rows/s\n", execdetails.FormatDuration(elapsed), rate)
}

func printSample(out io.Writer, schema []*types.FieldType, chunks []*chunk.Chunk, n int) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	header := table.Row{"p", "o", "v"}
	for i := len(benchSchema); i < len(schema); i++ {
		header = append(header, fmt.Sprintf("f%d", i-len(benchSchema)+1))
	}
	t.AppendHeader(header)
	printed := 0
	for _, chk := range chunks {
		for r := 0; r < chk.NumRows() && printed < n; r++ {
			row := make(table.Row, 0, chk.NumCols())
			for c := range chk.NumCols() {
				d := chk.Column(c).GetDatum(r)
				if d.IsNull() {
					row = append(row, "NULL")
					continue
				}
				row = append(row, d.String())
			}
			t.AppendRow(row)
			printed++
		}
	}
	t.Render()
}

func printSpans(out io.Writer, spans *tracing.Collector) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Operation", "Count", "Total", "Max"})
	for _, s := range spans.Summaries() {
		t.AppendRow(table.Row{s.Operation, s.Count, execdetails.FormatDuration(s.Total), execdetails.FormatDuration(s.Max)})
	}
	t.Render()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-sc
		log.Warn("received signal to exit", zap.Stringer("signal", sig))
		cancel()
	}()

	rootCmd := newRootCommand()
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		log.Error("analytic-bench failed", zap.Error(err))
		os.Exit(1) // nolint:gocritic
	}
}
