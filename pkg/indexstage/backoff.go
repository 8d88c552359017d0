package indexstage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
)

// retryAttempts is 5 total tries: the first attempt plus 4 retries.
const retryAttempts = 5

// retry wraps op in exponential backoff with jitter: initial delay 1s,
// factor 2, ceiling 60s, 5 attempts total. op must return a classified
// error (see classify) so permanent failures abort immediately instead of
// exhausting the retry budget.
func retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, retryAttempts-1), ctx)
	return backoff.Retry(op, policy)
}

// classify turns a VectorService error into either a retriable error
// (returned as-is, so retry keeps going) or a backoff.PermanentError
// (so retry stops on the first attempt). Rate-limit and 5xx responses are
// expected to come back as ingesterr.TransientBackend from the adapter;
// everything else is permanent: 4xx responses other than rate-limit are
// not retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if ingesterr.KindOf(err) == ingesterr.TransientBackend {
		return err
	}
	return backoff.Permanent(err)
}
