package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/henridf/era1/accumulator"
	"github.com/henridf/era1/era"
	"github.com/henridf/era1/ingest"
	"github.com/henridf/era1/mapper"
	"github.com/henridf/era1/source"
)

const (
	success = 0
	failure = 1
)

// Environment variables holding the API token, in order of preference.
var tokenVars = []string{"ERA1_API_TOKEN", "SUBSTREAMS_API_TOKEN"}

func main() {
	os.Exit(run())
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: era1stream [flags] <output_dir> <start_era>:<stop_era>\n\n")
	fmt.Fprintf(os.Stderr, "The API token sent to the endpoint is read from %s.\n\n", strings.Join(tokenVars, " or "))
	pflag.PrintDefaults()
}

func logger(console bool) zerolog.Logger {
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	if !console {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	output.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("%s:", i)
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func apiToken() string {
	for _, name := range tokenVars {
		if token := os.Getenv(name); token != "" {
			return token
		}
	}
	return ""
}

func run() int {

	// Command line parameter initialization.
	var (
		flagAccumulators string
		flagChainID      uint64
		flagConsole      bool
		flagEndpoint     string
		flagInput        string
		flagLevel        string
		flagMetrics      string
		flagNetwork      string
		flagRetries      uint64
	)

	pflag.StringVarP(&flagAccumulators, "accumulators", "a", "", "path to file with one header accumulator root per epoch")
	pflag.Uint64Var(&flagChainID, "chain-id", mapper.DefaultConfig.ChainID, "chain id used to recover legacy signature parity")
	pflag.BoolVarP(&flagConsole, "console", "c", false, "human-readable log output")
	pflag.StringVarP(&flagEndpoint, "endpoint", "e", "http://127.0.0.1:8545", "JSON-RPC endpoint to fetch blocks from")
	pflag.StringVarP(&flagInput, "input", "i", "", "read blocks from a JSON-lines file instead of the endpoint (- for stdin)")
	pflag.StringVarP(&flagLevel, "level", "l", "info", "log output level")
	pflag.StringVarP(&flagMetrics, "metrics", "m", "", "address to serve prometheus metrics on (disabled if empty)")
	pflag.StringVarP(&flagNetwork, "network", "n", "mainnet", "network name used in archive file names")
	pflag.Uint64Var(&flagRetries, "retries", source.DefaultRPCConfig.Retries, "number of retries for failed requests")

	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) != 2 {
		usage()
		return failure
	}
	start, stop, err := parseRange(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		usage()
		return failure
	}

	// Logger initialization.
	log := logger(flagConsole)
	level, err := zerolog.ParseLevel(flagLevel)
	if err != nil {
		log.Error().Str("level", flagLevel).Err(err).Msg("could not parse log level")
		return failure
	}
	log = log.Level(level)

	if flagAccumulators == "" {
		log.Error().Msg("accumulator file (-a, --accumulators) is required")
		return failure
	}
	table, err := accumulator.LoadFile(flagAccumulators)
	if err != nil {
		log.Error().Str("accumulators", flagAccumulators).Err(err).Msg("could not load accumulators")
		return failure
	}
	store, err := ingest.NewDir(args[0], flagNetwork)
	if err != nil {
		log.Error().Str("output", args[0]).Err(err).Msg("could not open output directory")
		return failure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// The stream function feeds the driver from either a dump file or a node.
	var stream func(ctx context.Context, out chan<- source.Response) error
	if flagInput != "" {
		var r io.Reader = os.Stdin
		if flagInput != "-" {
			f, err := os.Open(flagInput)
			if err != nil {
				log.Error().Str("input", flagInput).Err(err).Msg("could not open input file")
				return failure
			}
			defer f.Close()
			r = f
		}
		file := source.NewFile(log, r)
		stream = func(ctx context.Context, out chan<- source.Response) error {
			return file.Stream(ctx, start, stop, out)
		}
	} else {
		options := []func(*source.RPCConfig){source.WithRetries(flagRetries)}
		if token := apiToken(); token != "" {
			options = append(options, source.WithToken(token))
		} else {
			log.Warn().Msg("no API token set, sending unauthenticated requests")
		}
		node, err := source.DialRPC(ctx, log, flagEndpoint, options...)
		if err != nil {
			log.Error().Str("endpoint", flagEndpoint).Err(err).Msg("could not connect to endpoint")
			return failure
		}
		stream = func(ctx context.Context, out chan<- source.Response) error {
			return node.Stream(ctx, start, stop, out)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	builder := era.NewBuilder(io.Discard, mapper.New(mapper.WithChainID(flagChainID)))
	driver := ingest.NewDriver(log, builder, store, table, ingest.WithRegisterer(reg))

	log.Info().
		Uint64("start", start).
		Uint64("stop", stop).
		Str("output", args[0]).
		Msg("starting archive creation")

	responses := make(chan source.Response, 16)
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stream(gctx, responses)
	})
	g.Go(func() error {
		defer close(done)
		return driver.Run(gctx, responses)
	})

	if flagMetrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{
			Addr:              flagMetrics,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("address", flagMetrics).Msg("serving metrics")
			err := server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-gctx.Done():
			}
			return server.Shutdown(context.Background())
		})
	}

	err = g.Wait()
	switch {
	case errors.Is(err, context.Canceled):
		log.Info().Msg("archive creation interrupted")
		return failure
	case err != nil:
		log.Error().Err(err).Msg("archive creation failed")
		return failure
	}

	log.Info().Msg("archive creation complete")
	return success
}
