// Package ratelimit paces requests against the remote service.
//
// Two concerns live here:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Caps the total request rate of a run
//
// Jitter Delay:
//   - Uniformly random pause between consecutive page fetches
//   - Keeps request timing from looking mechanical
//
// Usage:
//
//	// 60 requests per minute
//	limiter := ratelimit.NewTokenBucket(60, time.Minute)
//
//	if !limiter.Allow() {
//	    limiter.Wait()
//	}
//
//	// 1-3 second pause between pages
//	delay := ratelimit.NewJitterDelay(time.Second, 3*time.Second)
//	if err := delay.Delay(ctx); err != nil {
//	    return err
//	}
package ratelimit
