package feed

import (
	"context"

	"igarchive/pkg/instagram"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/ratelimit"
)

// AttachComments fetches up to limit comments for each post and
// attaches them in place. A failed fetch leaves that post without
// comments and moves on; one broken thread never aborts the run.
// Returns the number of posts whose comments were fetched.
func AttachComments(ctx context.Context, client instagram.FeedClient, posts []models.Post, limit int, delay ratelimit.Delayer, log logger.Logger) (int, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	fetched := 0
	for i := range posts {
		if err := ctx.Err(); err != nil {
			return fetched, err
		}

		if posts[i].CommentsCount == 0 {
			continue
		}

		if fetched > 0 && delay != nil {
			if err := delay.Delay(ctx); err != nil {
				return fetched, err
			}
		}

		comments, err := client.FetchComments(ctx, posts[i].ID, limit)
		if err != nil {
			log.WarnWithFields("comment fetch failed, continuing without", map[string]interface{}{
				"post_id": posts[i].ID,
				"error":   err.Error(),
			})
			continue
		}

		posts[i].Comments = comments
		fetched++
	}

	log.InfoWithFields("comments attached", map[string]interface{}{
		"posts":   len(posts),
		"fetched": fetched,
	})

	return fetched, nil
}
