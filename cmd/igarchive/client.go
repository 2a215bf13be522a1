package main

import (
	"context"

	"igarchive/internal/downloader"
	"igarchive/pkg/instagram"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/ratelimit"
	"igarchive/pkg/retry"
	"igarchive/pkg/storage"
)

// retryingFeedClient layers rate limiting and retry on top of the raw
// client. The collection loop itself never retries; this wrapper is
// where transient failures get their second chance.
type retryingFeedClient struct {
	inner       instagram.FeedClient
	limiter     ratelimit.Limiter
	maxAttempts int
	log         logger.Logger
}

func (c *retryingFeedClient) FetchTimelinePage(ctx context.Context, cursor string) (*instagram.TimelinePage, error) {
	return retry.DoWithResult(func() (*instagram.TimelinePage, error) {
		if !c.limiter.Allow() {
			c.limiter.Wait()
		}
		return c.inner.FetchTimelinePage(ctx, cursor)
	}, &retry.Config{
		MaxAttempts: c.maxAttempts,
		Backoff:     retry.DefaultExponentialBackoff(),
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.log,
	})
}

// FetchComments is not retried: a comment thread that fails is dropped
// rather than slowing the whole run down.
func (c *retryingFeedClient) FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	if !c.limiter.Allow() {
		c.limiter.Wait()
	}
	return c.inner.FetchComments(ctx, postID, limit)
}

func newMediaStore(dir string) (downloader.MediaStorage, error) {
	return storage.NewManager(dir)
}
