package core

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/smarty/jarsmith/contracts"
)

// Backoff doubles the wait after every failed attempt, up to a ceiling.
type Backoff struct {
	maxAttempts int
	initial     time.Duration
	ceiling     time.Duration
	sleep       func(duration time.Duration)
}

func NewBackoff(config contracts.RetryConfig, sleep func(duration time.Duration)) Backoff {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	return Backoff{maxAttempts: config.MaxAttempts, initial: config.InitialBackoff, ceiling: config.MaxBackoff, sleep: sleep}
}

func (this Backoff) MaxAttempts() int { return this.maxAttempts }

func (this Backoff) Delay(attempt int) time.Duration {
	delay := this.initial
	for x := 1; x < attempt && delay < this.ceiling; x++ {
		delay *= 2
	}
	if delay > this.ceiling {
		delay = this.ceiling
	}
	return delay
}

// Wait sleeps before the attempt following the given one, unless ctx is
// already done.
func (this Backoff) Wait(ctx context.Context, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	this.sleep(this.Delay(attempt))
	return ctx.Err()
}

type RetryClient struct {
	inner   contracts.Fetcher
	backoff Backoff
	logger  *log.Logger
}

func NewRetryClient(inner contracts.Fetcher, backoff Backoff) *RetryClient {
	return &RetryClient{inner: inner, backoff: backoff, logger: log.Default()}
}

func (this *RetryClient) Fetch(ctx context.Context, request contracts.FetchRequest) (response *contracts.FetchResponse, err error) {
	for attempt := 1; attempt <= this.backoff.MaxAttempts(); attempt++ {
		response, err = this.inner.Fetch(ctx, request)
		if err == nil {
			return response, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		if attempt < this.backoff.MaxAttempts() {
			this.logger.Printf("[WARN] %s %s failed (attempt %d of %d), retry imminent: %s",
				request.Method, request.URL, attempt, this.backoff.MaxAttempts(), err)
			if waitErr := this.backoff.Wait(ctx, attempt); waitErr != nil {
				return nil, contracts.NewError(contracts.CanceledError, "fetch", request.URL, waitErr)
			}
		}
	}
	return nil, err
}

func isRetryable(err error) bool {
	var typed *contracts.Error
	return errors.As(err, &typed) && typed.Retryable()
}
