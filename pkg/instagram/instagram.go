// Package instagram wraps the upstream API client. All raw wrapper
// types stay inside this package; the rest of the archiver sees only
// normalized posts and comments.
package instagram

import (
	"context"

	"igarchive/pkg/models"
)

// TimelinePage is one page of the home timeline
type TimelinePage struct {
	// Posts holds the normalized entries of this page, in feed order.
	// May contain duplicates across pages; deduplication is the
	// pagination engine's job.
	Posts []models.Post
	// NextCursor is the opaque resume token for the following page.
	// Empty means the service reports no further pages.
	NextCursor string
	// MoreAvailable reports whether the service claims more content
	// exists beyond this page
	MoreAvailable bool
}

// FeedClient fetches timeline pages and per-post comments
type FeedClient interface {
	// FetchTimelinePage fetches one page of the home timeline. An empty
	// cursor fetches the first page.
	FetchTimelinePage(ctx context.Context, cursor string) (*TimelinePage, error)
	// FetchComments fetches up to limit comments for a post previously
	// returned by FetchTimelinePage
	FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error)
}
