// Package feed implements timeline collection: pagination, cross-page
// deduplication and the stop conditions that bound a run.
package feed

import (
	"context"
	"fmt"

	"igarchive/pkg/instagram"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/ratelimit"
)

// StopReason records why collection ended. Every reason is a normal
// outcome, not an error; a run that stops early still produced a
// usable archive.
type StopReason string

const (
	// StopTargetReached means the requested number of posts was collected
	StopTargetReached StopReason = "target_reached"
	// StopFeedExhausted means the service returned an empty page
	StopFeedExhausted StopReason = "feed_exhausted"
	// StopStalled means a page contained no posts we had not already seen
	StopStalled StopReason = "stalled"
	// StopCursorEnd means the service stopped offering a next page
	StopCursorEnd StopReason = "cursor_end"
	// StopBudgetExhausted means the page fetch budget ran out
	StopBudgetExhausted StopReason = "budget_exhausted"
	// StopFetchError means a page fetch failed; the result holds
	// whatever was collected before the failure
	StopFetchError StopReason = "fetch_error"
)

// Options configures one collection run
type Options struct {
	// TargetCount is how many posts to collect. Must be positive.
	TargetCount int
	// PageBudget bounds the number of page fetches. Must be positive.
	PageBudget int
	// StartCursor resumes from an earlier run's cursor. Empty starts
	// from the top of the feed.
	StartCursor string
	// SkipSponsored drops posts flagged as paid content
	SkipSponsored bool
	// KnownIDs are posts already archived by earlier runs; they are
	// dropped without counting toward the target
	KnownIDs map[string]bool
	// Delay paces consecutive page fetches. Nil means no pacing.
	Delay ratelimit.Delayer
	// Logger for progress reporting
	Logger logger.Logger
}

// Result is the outcome of a collection run
type Result struct {
	// Posts in feed order, pairwise distinct, at most TargetCount
	Posts []models.Post
	// PagesFetched counts page requests actually made
	PagesFetched int
	// NextCursor is where a later run could resume. Empty when the
	// feed offered no continuation.
	NextCursor string
	// Reason why collection stopped
	Reason StopReason

	// DuplicatesSkipped counts posts dropped because their ID was
	// already seen this run
	DuplicatesSkipped int
	// SponsoredSkipped counts posts dropped as paid content
	SponsoredSkipped int
	// KnownSkipped counts posts dropped because an earlier run
	// archived them
	KnownSkipped int
}

// Collect pages through the timeline until it has Options.TargetCount
// distinct posts or a stop condition fires. Collect itself never
// retries a failed fetch; on error it returns the partial result
// alongside the error so the caller can keep what was gathered.
func Collect(ctx context.Context, client instagram.FeedClient, opts Options) (*Result, error) {
	if opts.TargetCount <= 0 {
		return nil, fmt.Errorf("target count must be positive, got %d", opts.TargetCount)
	}
	if opts.PageBudget <= 0 {
		return nil, fmt.Errorf("page budget must be positive, got %d", opts.PageBudget)
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	res := &Result{}
	seen := make(map[string]struct{}, opts.TargetCount)
	cursor := opts.StartCursor

	for {
		if len(res.Posts) >= opts.TargetCount {
			res.Reason = StopTargetReached
			break
		}
		if res.PagesFetched >= opts.PageBudget {
			res.Reason = StopBudgetExhausted
			log.WarnWithFields("page budget exhausted before reaching target", map[string]interface{}{
				"collected": len(res.Posts),
				"target":    opts.TargetCount,
				"budget":    opts.PageBudget,
			})
			break
		}

		if res.PagesFetched > 0 && opts.Delay != nil {
			if err := opts.Delay.Delay(ctx); err != nil {
				res.Reason = StopFetchError
				return res, err
			}
		}

		page, err := client.FetchTimelinePage(ctx, cursor)
		res.PagesFetched++
		if err != nil {
			res.Reason = StopFetchError
			log.ErrorWithFields("page fetch failed, keeping partial results", map[string]interface{}{
				"page":      res.PagesFetched,
				"collected": len(res.Posts),
				"error":     err.Error(),
			})
			return res, err
		}

		if len(page.Posts) == 0 {
			res.Reason = StopFeedExhausted
			break
		}

		newSeen := 0
		for _, post := range page.Posts {
			key := post.Key()
			if _, dup := seen[key]; dup {
				res.DuplicatesSkipped++
				continue
			}
			seen[key] = struct{}{}
			newSeen++

			if opts.SkipSponsored && post.IsSponsored {
				res.SponsoredSkipped++
				continue
			}
			if opts.KnownIDs[key] {
				res.KnownSkipped++
				continue
			}

			res.Posts = append(res.Posts, post)
		}

		log.DebugWithFields("page processed", map[string]interface{}{
			"page":       res.PagesFetched,
			"page_posts": len(page.Posts),
			"new":        newSeen,
			"collected":  len(res.Posts),
		})

		if newSeen == 0 {
			res.Reason = StopStalled
			log.Warn("page contained no unseen posts, stopping")
			break
		}

		res.NextCursor = page.NextCursor
		cursor = page.NextCursor

		if cursor == "" || !page.MoreAvailable {
			if len(res.Posts) >= opts.TargetCount {
				res.Reason = StopTargetReached
			} else {
				res.Reason = StopCursorEnd
			}
			break
		}
	}

	if len(res.Posts) > opts.TargetCount {
		res.Posts = res.Posts[:opts.TargetCount]
	}

	log.InfoWithFields("collection finished", map[string]interface{}{
		"posts":  len(res.Posts),
		"pages":  res.PagesFetched,
		"reason": string(res.Reason),
	})

	return res, nil
}
