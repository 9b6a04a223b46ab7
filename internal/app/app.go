// Package app wires configuration into the verifier, discovery engine,
// HTTP server and batch runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shpitdev/mailfinder/internal/batch"
	"github.com/shpitdev/mailfinder/internal/config"
	"github.com/shpitdev/mailfinder/internal/findclient"
	"github.com/shpitdev/mailfinder/internal/finder"
	"github.com/shpitdev/mailfinder/internal/server"
	"github.com/shpitdev/mailfinder/internal/verify"
	localio "github.com/shpitdev/mailfinder/pkg/pipeline/io/local"
)

const shutdownTimeout = 10 * time.Second

// NewEngine builds a discovery engine backed by the MailTester client.
func NewEngine(cfg *config.Config, logger *zap.Logger) *finder.Finder {
	client := verify.NewClient(cfg.MailTester.Key,
		verify.WithBaseURL(cfg.MailTester.BaseURL),
		verify.WithTimeout(cfg.MailTester.Timeout),
		verify.WithLogger(logger),
	)
	return finder.New(client, finder.Options{
		ProbeDelay: cfg.Finder.ProbeDelay,
		Logger:     logger,
	})
}

// Find runs one discovery in process.
func Find(ctx context.Context, cfg *config.Config, p finder.Person, logger *zap.Logger) finder.Result {
	return NewEngine(cfg, logger).Discover(ctx, p)
}

// Serve runs the discovery server on cfg.Server.Port until ctx is done.
func Serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return eris.Wrapf(err, "app: listen on port %d", cfg.Server.Port)
	}
	srv := server.New(NewEngine(cfg, logger), logger)
	return serve(ctx, ln, srv.Routes(), logger)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *zap.Logger) error {
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", ln.Addr().String()))
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "app: serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// BatchDiscoverer returns the discoverer a batch run uses: the in-process
// engine when local is set, otherwise the configured discovery endpoint.
func BatchDiscoverer(cfg *config.Config, local bool, logger *zap.Logger) batch.Discoverer {
	if local {
		return batch.InProcess(NewEngine(cfg, logger))
	}
	return findclient.New(cfg.Batch.Endpoint,
		findclient.WithTimeout(cfg.Batch.RequestTimeout),
		findclient.WithLogger(logger),
	)
}

// RunBatch reads cfg.Batch.Input, discovers every row with d and writes
// cfg.Batch.Output row by row.
func RunBatch(ctx context.Context, cfg *config.Config, d batch.Discoverer, logger *zap.Logger) (batch.Summary, error) {
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	logger = logger.With(zap.String("run", runID))

	inF, err := os.Open(cfg.Batch.Input)
	if err != nil {
		return batch.Summary{}, eris.Wrap(err, "app: open input")
	}
	defer func() {
		_ = inF.Close()
	}()

	recs, err := localio.ReadRecordsCSV(inF, batch.InputContract.Required()...)
	if err != nil {
		return batch.Summary{}, eris.Wrapf(err, "app: read input %s", cfg.Batch.Input)
	}
	people := batch.PeopleFromRecords(recs)
	logger.Info("loaded input", zap.String("path", cfg.Batch.Input), zap.Int("rows", len(people)))

	outF, err := os.Create(cfg.Batch.Output)
	if err != nil {
		return batch.Summary{}, eris.Wrap(err, "app: create output")
	}
	defer func() {
		_ = outF.Close()
	}()

	sink, err := localio.NewCSVSink(outF, batch.Header())
	if err != nil {
		return batch.Summary{}, eris.Wrap(err, "app: init output")
	}

	traced := newTracedDiscoverer(d, logger, cfg.Batch.RequestTimeout)
	_, summary, err := batch.Run(ctx, people, traced, sink, batch.Options{
		Workers:        cfg.Batch.Workers,
		RequestDelay:   cfg.Batch.RequestDelay,
		RequestTimeout: cfg.Batch.RequestTimeout,
		RateLimitRPS:   cfg.Batch.RateLimitRPS,
		MaxRetries:     cfg.Batch.MaxRetries,
		Logger:         logger,
	})
	if err != nil {
		return summary, eris.Wrap(err, "app: batch run")
	}
	if err := outF.Close(); err != nil {
		return summary, eris.Wrap(err, "app: close output")
	}
	logger.Info("wrote output", zap.String("path", cfg.Batch.Output), zap.Int("rows", summary.Rows))
	return summary, nil
}
