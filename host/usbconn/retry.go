package usbconn

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds a retried operation: a fixed number of attempts
// with a constant delay between them. The same value object drives
// transfer retries (3 attempts) and the connect loop (10 attempts).
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// TransferRetry is the per-transfer policy: a failed bulk transfer is
// retried after a close/reopen cycle, up to 3 attempts total.
var TransferRetry = RetryPolicy{Attempts: 3, Delay: 50 * time.Millisecond}

// ConnectRetry is the device-open policy used by the controller's
// connect loop.
var ConnectRetry = RetryPolicy{Attempts: 10, Delay: 500 * time.Millisecond}

// Run executes op under the policy. Wrap an error in
// backoff.Permanent to stop retrying early.
func (p RetryPolicy) Run(op func() error) error {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.Attempts-1))
	return backoff.Retry(op, b)
}

// reconnector is the transport-specific recovery hook used by the
// shared transfer loop.
type reconnector interface {
	transferOnce(index int, frame []byte, read bool) ([]byte, error)
	reopen(index int) error
}

// transfer runs one bulk transfer under the per-transfer retry policy:
// on failure the device is closed and reopened before the next attempt,
// and a failed reopen only costs the inter-attempt delay. When the
// policy is exhausted the last error surfaces as a transport failure.
func transfer(c reconnector, log zerolog.Logger, policy RetryPolicy, index int, frame []byte, read bool) ([]byte, error) {
	var out []byte
	err := policy.Run(func() error {
		data, err := c.transferOnce(index, frame, read)
		if err == nil {
			out = data
			return nil
		}
		log.Warn().Int("device", index).Err(err).Msg("transfer failed, cycling connection")
		if rerr := c.reopen(index); rerr != nil {
			log.Warn().Int("device", index).Err(rerr).Msg("reopen failed, will retry")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	return out, nil
}
