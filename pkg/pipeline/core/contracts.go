package core

import "context"

// ProcessFunc transforms one input item into one output item. Its Process
// method value is what worker pools are handed.
type ProcessFunc[In any, Out any] func(ctx context.Context, in In) (Out, error)

func (f ProcessFunc[In, Out]) Process(ctx context.Context, in In) (Out, error) {
	return f(ctx, in)
}

// RecordSink receives output records one at a time, in completion order.
// Implementations must make each appended record durable before returning.
type RecordSink interface {
	Append(record []string) error
}

// TransientError marks an error as retryable by worker implementations.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
