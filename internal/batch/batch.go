// Package batch runs discovery over a table of people with a bounded worker
// pool and appends one output row per person as each completes.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/mailfinder/internal/finder"
	"github.com/shpitdev/mailfinder/pkg/pipeline/core"
	"github.com/shpitdev/mailfinder/pkg/pipeline/redact"
	"github.com/shpitdev/mailfinder/pkg/pipeline/worker"
)

// MissingFieldsError marks rows skipped for lacking first_name or company_website.
const MissingFieldsError = "Missing required fields"

const (
	DefaultWorkers      = 5
	DefaultRequestDelay = 500 * time.Millisecond
)

// Discoverer runs one discovery. Returned errors are recorded on the row.
type Discoverer interface {
	Discover(ctx context.Context, p finder.Person) (finder.Result, error)
}

// DiscoverFunc adapts a function to the Discoverer interface.
type DiscoverFunc func(ctx context.Context, p finder.Person) (finder.Result, error)

func (f DiscoverFunc) Discover(ctx context.Context, p finder.Person) (finder.Result, error) {
	return f(ctx, p)
}

// InProcess adapts an in-process engine, such as *finder.Finder.
func InProcess(engine interface {
	Discover(ctx context.Context, p finder.Person) finder.Result
}) Discoverer {
	return DiscoverFunc(func(ctx context.Context, p finder.Person) (finder.Result, error) {
		return engine.Discover(ctx, p), nil
	})
}

type Options struct {
	// Workers bounds concurrent discoveries. Zero uses DefaultWorkers.
	Workers int
	// RequestDelay is slept by a worker after each discovery, whatever the
	// outcome. Zero uses DefaultRequestDelay; negative disables it.
	RequestDelay time.Duration
	// RequestTimeout bounds one discovery. Zero leaves it to the Discoverer.
	RequestTimeout time.Duration
	// RateLimitRPS caps discoveries per second across all workers. Zero disables it.
	RateLimitRPS float64
	// MaxRetries re-runs discoveries that failed with a transient error.
	MaxRetries int

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.RequestDelay == 0 {
		o.RequestDelay = DefaultRequestDelay
	}
	if o.RequestDelay < 0 {
		o.RequestDelay = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Summary tallies a run.
type Summary struct {
	Rows     int
	Found    int
	NotFound int
	Skipped  int
	Errored  int
	Credits  int
}

func (s *Summary) add(r Row) {
	s.Rows++
	if r.TotalCreditsUsed != nil {
		s.Credits += *r.TotalCreditsUsed
	}
	email := deref(r.EmailFound)
	switch {
	case email == "" && deref(r.Error) == MissingFieldsError:
		s.Skipped++
	case email == "":
		s.Errored++
	case email == finder.NoValidEmail:
		s.NotFound++
	default:
		s.Found++
	}
}

func (s Summary) fields() []zap.Field {
	return []zap.Field{
		zap.Int("rows", s.Rows),
		zap.Int("found", s.Found),
		zap.Int("not_found", s.NotFound),
		zap.Int("skipped", s.Skipped),
		zap.Int("errored", s.Errored),
		zap.Int("credits", s.Credits),
	}
}

type task struct {
	row    int
	person finder.Person
}

// Run discovers an address for every person and appends exactly one row per
// person to sink, in completion order. Rows missing required fields are
// written first and never reach d.
//
// Row failures never stop the run. Only a sink failure or ctx cancellation
// does; the rows appended so far are returned in either case.
func Run(ctx context.Context, people []finder.Person, d Discoverer, sink core.RecordSink, opts Options) ([]Row, Summary, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	var (
		rows    = make([]Row, 0, len(people))
		summary Summary
		tasks   []task
	)

	emit := func(row Row) error {
		if err := sink.Append(row.Record()); err != nil {
			return eris.Wrap(err, "batch: append row")
		}
		rows = append(rows, row)
		summary.add(row)
		return nil
	}

	for i, p := range people {
		p = normalize(p)
		if p.FirstName == "" || p.CompanyWebsite == "" {
			log.Warn("skipping row with missing fields", zap.Int("row", i+1))
			row := personRow(p)
			row.Error = ptr(MissingFieldsError)
			if err := emit(row); err != nil {
				return rows, summary, err
			}
			continue
		}
		tasks = append(tasks, task{row: i + 1, person: p})
	}

	log.Info("batch started",
		zap.Int("rows", len(people)),
		zap.Int("queued", len(tasks)),
		zap.Int("workers", opts.Workers),
		zap.Duration("request_delay", opts.RequestDelay),
	)
	start := time.Now()

	process := core.ProcessFunc[task, finder.Result](func(ctx context.Context, t task) (finder.Result, error) {
		return d.Discover(ctx, t.person)
	})
	onResult := func(res worker.Result[task, finder.Result]) error {
		row := toRow(res)
		if res.Err != nil {
			var pe *worker.PanicError
			if errors.As(res.Err, &pe) {
				log.Error("row fault", zap.Int("row", res.Input.row), zap.Any("panic", pe.Value), zap.ByteString("stack", pe.Stack))
			} else {
				log.Warn("discovery failed", zap.Int("row", res.Input.row), zap.String("error", deref(row.Error)))
			}
		} else {
			log.Info("row complete",
				zap.Int("row", res.Input.row),
				zap.String("email_found", deref(row.EmailFound)),
				zap.Int("credits", res.Output.TotalCreditsUsed),
			)
		}
		return emit(row)
	}

	_, err := worker.ProcessAllWithCallback(ctx, tasks, process.Process, onResult, worker.Options{
		Workers:        opts.Workers,
		MaxRetries:     opts.MaxRetries,
		RequestTimeout: opts.RequestTimeout,
		TaskDelay:      opts.RequestDelay,
		RateLimitRPS:   opts.RateLimitRPS,
	})

	log.Info("batch finished", append(summary.fields(), zap.Duration("duration", time.Since(start)))...)
	return rows, summary, err
}

func toRow(res worker.Result[task, finder.Result]) Row {
	if res.Err == nil {
		return resultRow(res.Input.person, res.Output)
	}
	var pe *worker.PanicError
	if errors.As(res.Err, &pe) {
		return Row{Error: ptr("unhandled row fault: " + redact.Secrets(pe.Error()))}
	}
	row := personRow(res.Input.person)
	row.Error = ptr(redact.Secrets(res.Err.Error()))
	return row
}
