// Package retry provides exponential backoff and retry logic for
// transient failures in network operations.
//
// Features:
//   - Exponential and constant backoff strategies
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Retry predicates wired to the service error taxonomy
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return client.Refresh()
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		RetryIf:     retry.DefaultRetryIf,
//		Logger:      logger.GetLogger(),
//	}
//	page, err := retry.DoWithResult(fetchPage, cfg)
//
// Auth, parsing and not-found errors are never retried; network, rate
// limit and server errors are.
package retry
