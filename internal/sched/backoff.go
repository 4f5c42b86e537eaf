package sched

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryDelay returns the pause before re-enqueueing a job that failed with
// retryCount (post-increment) retries so far: nominally 2^retryCount
// seconds, jittered. The exponential-backoff library only supplies the
// delay curve and its randomization; the retry-vs-dead-letter decision
// itself is made by Scheduler.handleFailure, never by this function.
func retryDelay(retryCount int) time.Duration {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Second
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.3
	eb.MaxInterval = 10 * time.Minute
	eb.MaxElapsedTime = 0
	eb.Reset() // restart the curve at InitialInterval rather than the library default

	if retryCount < 0 {
		retryCount = 0
	}
	var delay time.Duration
	for i := 0; i <= retryCount; i++ {
		delay = eb.NextBackOff()
	}
	return delay
}
