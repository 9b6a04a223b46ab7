package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shpitdev/mailfinder/internal/mockverifier"
)

func main() {
	addr := defaultString("MOCK_VERIFIER_ADDR", ":8081")
	fixtures := defaultString("MOCK_VERIFIER_FIXTURES", "")
	key := defaultString("MOCK_VERIFIER_KEY", "")

	fs := flag.NewFlagSet("mock-verifier", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&fixtures, "fixtures", fixtures, "YAML file with scripted verification codes (also supports env: MOCK_VERIFIER_FIXTURES)")
	fs.StringVar(&key, "key", key, "Required API key; overrides the fixture file")
	_ = fs.Parse(os.Args[1:])

	var f mockverifier.Fixtures
	if fixtures != "" {
		loaded, err := mockverifier.LoadFixtures(fixtures)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "load fixtures: %v\n", err)
			os.Exit(1)
		}
		f = loaded
	}
	if key != "" {
		f.Key = key
	}

	if err := run(addr, mockverifier.New(f)); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, srv *mockverifier.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, _ = fmt.Fprintf(os.Stdout, "mock-verifier listening on %s\n", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
