package finder

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultProbeDelay keeps consecutive probes for one person under the
// verification service's per-key rate limit.
const DefaultProbeDelay = 900 * time.Millisecond

// SleepFunc suspends the caller for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	// ProbeDelay is the pause between two probes for the same person.
	// Zero uses DefaultProbeDelay; negative disables the pause.
	ProbeDelay time.Duration

	// Sleep overrides how the pause is taken. Tests use it to record the
	// schedule without waiting.
	Sleep SleepFunc

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ProbeDelay == 0 {
		o.ProbeDelay = DefaultProbeDelay
	}
	if o.ProbeDelay < 0 {
		o.ProbeDelay = 0
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Finder runs the probe-and-stop discovery loop. It is safe for concurrent
// use; each Discover call probes its own candidates strictly in order.
type Finder struct {
	verifier Verifier
	opts     Options
}

func New(v Verifier, opts Options) *Finder {
	return &Finder{verifier: v, opts: opts.withDefaults()}
}

// Discover probes the person's candidates in priority order and returns the
// first deliverable one.
//
// Every probe costs one credit, valid or not. When no candidate is accepted
// the result carries the status, details and error of the last probe.
// Cancelling ctx stops the loop at the next pause.
func (f *Finder) Discover(ctx context.Context, p Person) Result {
	first := NormalizeName(p.FirstName)
	last := NormalizeName(p.LastName)
	domain := ExtractRootDomain(p.CompanyWebsite)
	candidates := GenerateCandidates(first, last, domain)

	log := f.opts.Logger.With(zap.String("domain", domain))
	if len(candidates) == 0 {
		log.Debug("no candidates generated")
		return Result{
			EmailFound: NoValidEmail,
			Error:      optional(NoCandidatesError),
		}
	}

	var lastProbe ProbeResult
	credits := 0
	for i, email := range candidates {
		if i > 0 && f.opts.ProbeDelay > 0 {
			if err := f.opts.Sleep(ctx, f.opts.ProbeDelay); err != nil {
				log.Info("discovery interrupted",
					zap.Int("credits", credits),
					zap.Int("candidates", len(candidates)),
					zap.Error(err),
				)
				res := exhausted(lastProbe, credits)
				res.Error = optional(eris.Wrap(err, "discovery interrupted").Error())
				return res
			}
		}

		lastProbe = f.verifier.Verify(ctx, email)
		credits++
		log.Debug("probe",
			zap.String("email", email),
			zap.String("status", lastProbe.StatusCode),
			zap.Bool("valid", lastProbe.IsValid),
			zap.Int("credits", credits),
		)

		if lastProbe.IsValid {
			return Result{
				EmailFound:       email,
				StatusCode:       optional(lastProbe.StatusCode),
				ValidationResult: lastProbe.Details,
				TotalCreditsUsed: credits,
			}
		}
	}

	log.Debug("candidates exhausted", zap.Int("credits", credits))
	return exhausted(lastProbe, credits)
}

func exhausted(last ProbeResult, credits int) Result {
	return Result{
		EmailFound:       NoValidEmail,
		StatusCode:       optional(last.StatusCode),
		ValidationResult: last.Details,
		TotalCreditsUsed: credits,
		Error:            optional(last.Error),
	}
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
