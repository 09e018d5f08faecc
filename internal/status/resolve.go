// Package status decides the next state of a job after a send attempt.
package status

import "github.com/notifyhub/hermes-dispatch/internal/domain"

// Resolve returns the status and retry count a job moves to after one send
// attempt. It never mutates its inputs and must not be called with an
// absorbing status.
//
//	never + sent                 -> succeed
//	never + !sent, no retry      -> failed
//	never + !sent, retry         -> retry, count = 0
//	retry + sent                 -> succeed, count+1
//	retry + !sent, count+1 < max -> retry,   count+1
//	retry + !sent, otherwise     -> failed,  count+1
func Resolve(current domain.Status, retryCount int, policy domain.RetryPolicy, sent bool) (domain.Status, int) {
	retry, ok := policy.(domain.WithRetry)
	if !ok || retry.Limit <= 0 {
		if sent {
			return domain.StatusSucceed, retryCount
		}
		return domain.StatusFailed, retryCount
	}

	if current == domain.StatusNever {
		if sent {
			return domain.StatusSucceed, retryCount
		}
		return domain.StatusRetry, 0
	}

	// A retry attempt always counts, whatever its outcome.
	next := retryCount + 1
	if sent {
		return domain.StatusSucceed, next
	}
	if next < retry.Limit {
		return domain.StatusRetry, next
	}
	return domain.StatusFailed, next
}
