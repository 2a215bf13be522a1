package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/instagram"
	"igarchive/pkg/models"
)

// fakeCommentFeed serves scripted comment threads by post ID
type fakeCommentFeed struct {
	comments map[string][]models.Comment
	failFor  map[string]bool
	calls    []string
	limits   []int
}

func (f *fakeCommentFeed) FetchTimelinePage(ctx context.Context, cursor string) (*instagram.TimelinePage, error) {
	return &instagram.TimelinePage{}, nil
}

func (f *fakeCommentFeed) FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	f.calls = append(f.calls, postID)
	f.limits = append(f.limits, limit)
	if f.failFor[postID] {
		return nil, errs.New(errs.ErrorTypeServerError, "comment endpoint unavailable")
	}
	return f.comments[postID], nil
}

func TestAttachCommentsFillsEachPost(t *testing.T) {
	client := &fakeCommentFeed{
		comments: map[string][]models.Comment{
			"a": {{User: "u1", Text: "nice"}},
			"b": {{User: "u2", Text: "wow"}, {User: "u3", Text: "great"}},
		},
	}
	posts := []models.Post{
		{ID: "a", CommentsCount: 1},
		{ID: "b", CommentsCount: 2},
	}

	fetched, err := AttachComments(context.Background(), client, posts, 50, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, fetched)
	assert.Len(t, posts[0].Comments, 1)
	assert.Len(t, posts[1].Comments, 2)
	assert.Equal(t, []int{50, 50}, client.limits)
}

func TestAttachCommentsSkipsPostsWithoutComments(t *testing.T) {
	client := &fakeCommentFeed{}
	posts := []models.Post{
		{ID: "a", CommentsCount: 0},
		{ID: "b", CommentsCount: 0},
	}

	fetched, err := AttachComments(context.Background(), client, posts, 50, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, fetched)
	assert.Empty(t, client.calls, "no fetch for posts reporting zero comments")
}

func TestAttachCommentsIsolatesFailures(t *testing.T) {
	client := &fakeCommentFeed{
		comments: map[string][]models.Comment{
			"a": {{User: "u1", Text: "first"}},
			"c": {{User: "u2", Text: "third"}},
		},
		failFor: map[string]bool{"b": true},
	}
	posts := []models.Post{
		{ID: "a", CommentsCount: 1},
		{ID: "b", CommentsCount: 5},
		{ID: "c", CommentsCount: 1},
	}

	fetched, err := AttachComments(context.Background(), client, posts, 50, nil, nil)

	require.NoError(t, err, "one broken thread never aborts the run")
	assert.Equal(t, 2, fetched)
	assert.Len(t, posts[0].Comments, 1)
	assert.Nil(t, posts[1].Comments, "the failed post keeps no comments")
	assert.Len(t, posts[2].Comments, 1)
	assert.Equal(t, []string{"a", "b", "c"}, client.calls, "later posts still get their fetch")
}

func TestAttachCommentsStopsOnCancelledContext(t *testing.T) {
	client := &fakeCommentFeed{}
	posts := []models.Post{{ID: "a", CommentsCount: 1}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AttachComments(ctx, client, posts, 50, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.calls)
}
