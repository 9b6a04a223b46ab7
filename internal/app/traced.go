package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/mailfinder/internal/batch"
	"github.com/shpitdev/mailfinder/internal/finder"
	"github.com/shpitdev/mailfinder/pkg/pipeline/redact"
)

// tracedDiscoverer logs every discovery call of a batch run. Retries of a row
// show up as repeated request/response pairs for the same domain.
type tracedDiscoverer struct {
	next    batch.Discoverer
	logger  *zap.Logger
	timeout time.Duration
}

func newTracedDiscoverer(next batch.Discoverer, logger *zap.Logger, timeout time.Duration) *tracedDiscoverer {
	return &tracedDiscoverer{next: next, logger: logger, timeout: timeout}
}

func (t *tracedDiscoverer) Discover(ctx context.Context, p finder.Person) (finder.Result, error) {
	domain := finder.ExtractRootDomain(p.CompanyWebsite)

	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.logger.Debug("discovery request",
		zap.String("first_name", p.FirstName),
		zap.String("domain", domain),
		zap.Duration("timeout", t.timeout),
		zap.String("deadline_in", deadlineIn),
	)

	start := time.Now()
	out, err := t.next.Discover(ctx, p)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		t.logger.Debug("discovery response",
			zap.String("domain", domain),
			zap.Duration("duration", elapsed),
			zap.String("status", "error"),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return out, err
	}

	fields := []zap.Field{
		zap.String("domain", domain),
		zap.Duration("duration", elapsed),
		zap.String("status", "ok"),
		zap.String("email_found", out.EmailFound),
		zap.Int("credits", out.TotalCreditsUsed),
	}
	if out.StatusCode != nil {
		fields = append(fields, zap.String("status_code", *out.StatusCode))
	}
	t.logger.Debug("discovery response", fields...)
	return out, nil
}
