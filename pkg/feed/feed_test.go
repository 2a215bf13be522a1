package feed

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/instagram"
	"igarchive/pkg/models"
)

// fakeFeed serves scripted timeline pages in order
type fakeFeed struct {
	pages       []*instagram.TimelinePage
	fetches     int
	fetchErr    error
	errAtFetch  int
	lastCursors []string
}

func (f *fakeFeed) FetchTimelinePage(ctx context.Context, cursor string) (*instagram.TimelinePage, error) {
	f.fetches++
	f.lastCursors = append(f.lastCursors, cursor)

	if f.fetchErr != nil && f.fetches == f.errAtFetch {
		return nil, f.fetchErr
	}

	if f.fetches > len(f.pages) {
		return &instagram.TimelinePage{}, nil
	}
	return f.pages[f.fetches-1], nil
}

func (f *fakeFeed) FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	return nil, errs.New(errs.ErrorTypeNotFound, "not implemented")
}

func makePosts(start, count int) []models.Post {
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		id := start + i
		posts = append(posts, models.Post{
			ID:   fmt.Sprintf("%d_100", id),
			User: "someone",
		})
	}
	return posts
}

func page(posts []models.Post, next string) *instagram.TimelinePage {
	return &instagram.TimelinePage{
		Posts:         posts,
		NextCursor:    next,
		MoreAvailable: next != "",
	}
}

func TestCollectStopsAtTargetWithoutExtraFetch(t *testing.T) {
	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(makePosts(1, 10), "c1"),
		page(makePosts(11, 10), "c2"),
		page(makePosts(21, 5), "c3"),
	}}

	res, err := Collect(context.Background(), client, Options{
		TargetCount: 20,
		PageBudget:  10,
	})

	require.NoError(t, err)
	assert.Len(t, res.Posts, 20)
	assert.Equal(t, StopTargetReached, res.Reason)
	assert.Equal(t, 2, client.fetches, "no fetch once the target is met")
	assert.Equal(t, 2, res.PagesFetched)
}

func TestCollectTruncatesOvershootingPage(t *testing.T) {
	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(makePosts(1, 12), "c1"),
	}}

	res, err := Collect(context.Background(), client, Options{
		TargetCount: 7,
		PageBudget:  5,
	})

	require.NoError(t, err)
	assert.Len(t, res.Posts, 7)
	assert.Equal(t, "1_100", res.Posts[0].ID)
	assert.Equal(t, "7_100", res.Posts[6].ID)
	assert.Equal(t, StopTargetReached, res.Reason)
}

func TestCollectStopsOnEmptyPage(t *testing.T) {
	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(makePosts(1, 8), "c1"),
		page(nil, ""),
	}}

	res, err := Collect(context.Background(), client, Options{
		TargetCount: 20,
		PageBudget:  10,
	})

	require.NoError(t, err)
	assert.Len(t, res.Posts, 8, "a short feed yields what it has")
	assert.Equal(t, StopFeedExhausted, res.Reason)
	assert.Equal(t, 2, client.fetches)
}

func TestCollectStopsWhenFeedStalls(t *testing.T) {
	same := makePosts(1, 10)
	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(same, "c1"),
		page(same, "c2"),
		page(same, "c3"),
	}}

	res, err := Collect(context.Background(), client, Options{
		TargetCount: 50,
		PageBudget:  10,
	})

	require.NoError(t, err)
	assert.Len(t, res.Posts, 10, "a stalled feed yields the first page only")
	assert.Equal(t, StopStalled, res.Reason)
	assert.Equal(t, 2, client.fetches)
	assert.Equal(t, 10, res.DuplicatesSkipped)
}

func TestCollectDeduplicatesAcrossOverlappingPages(t *testing.T) {
	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(makePosts(1, 10), "c1"),
		// pages overlap by 5 posts
		page(makePosts(6, 10), "c2"),
		page(makePosts(11, 10), ""),
	}}

	res, err := Collect(context.Background(), client, Options{
		TargetCount: 50,
		PageBudget:  10,
	})

	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, p := range res.Posts {
		assert.False(t, seen[p.ID], "post %s appears twice", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, res.Posts, 20)
	assert.Equal(t, 10, res.DuplicatesSkipped)
	assert.Equal(t, StopCursorEnd, res.Reason)
}

func TestCollectHonorsPageBudget(t *testing.T) {
	pages := make([]*instagram.TimelinePage, 0, 10)
	for i := 0; i < 10; i++ {
		pages = append(pages, page(makePosts(i*2+1, 2), fmt.Sprintf("c%d", i+1)))
	}
	client := &fakeFeed{pages: pages}

	res, err := Collect(context.Background(), client, Options{
		TargetCount: 100,
		PageBudget:  3,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, client.fetches)
	assert.Len(t, res.Posts, 6)
	assert.Equal(t, StopBudgetExhausted, res.Reason)
}

func TestCollectReturnsPartialResultsOnFetchError(t *testing.T) {
	client := &fakeFeed{
		pages: []*instagram.TimelinePage{
			page(makePosts(1, 10), "c1"),
		},
		fetchErr:   errs.New(errs.ErrorTypeNetwork, "connection reset"),
		errAtFetch: 2,
	}

	res, err := Collect(context.Background(), client, Options{
		TargetCount: 30,
		PageBudget:  10,
	})

	require.Error(t, err)
	require.NotNil(t, res, "partial results survive the failure")
	assert.Len(t, res.Posts, 10)
	assert.Equal(t, StopFetchError, res.Reason)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeNetwork, apiErr.Type)
}

func TestCollectSkipsSponsoredWithoutCountingThem(t *testing.T) {
	posts := makePosts(1, 10)
	posts[2].IsSponsored = true
	posts[7].IsSponsored = true

	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(posts, ""),
	}}

	res, err := Collect(context.Background(), client, Options{
		TargetCount:   20,
		PageBudget:    5,
		SkipSponsored: true,
	})

	require.NoError(t, err)
	assert.Len(t, res.Posts, 8)
	assert.Equal(t, 2, res.SponsoredSkipped)
	for _, p := range res.Posts {
		assert.False(t, p.IsSponsored)
	}
}

func TestCollectSkipsPreviouslyArchivedPosts(t *testing.T) {
	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(makePosts(1, 10), ""),
	}}

	res, err := Collect(context.Background(), client, Options{
		TargetCount: 20,
		PageBudget:  5,
		KnownIDs: map[string]bool{
			"1_100": true,
			"4_100": true,
		},
	})

	require.NoError(t, err)
	assert.Len(t, res.Posts, 8)
	assert.Equal(t, 2, res.KnownSkipped)
}

func TestCollectPassesCursorThrough(t *testing.T) {
	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(makePosts(1, 5), "cursor-a"),
		page(makePosts(6, 5), "cursor-b"),
		page(makePosts(11, 5), ""),
	}}

	_, err := Collect(context.Background(), client, Options{
		TargetCount: 50,
		PageBudget:  10,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"", "cursor-a", "cursor-b"}, client.lastCursors,
		"each fetch resumes from the cursor the previous page returned")
}

func TestCollectResumesFromStartCursor(t *testing.T) {
	client := &fakeFeed{pages: []*instagram.TimelinePage{
		page(makePosts(1, 5), ""),
	}}

	_, err := Collect(context.Background(), client, Options{
		TargetCount: 5,
		PageBudget:  5,
		StartCursor: "resume-here",
	})

	require.NoError(t, err)
	assert.Equal(t, "resume-here", client.lastCursors[0])
}

func TestCollectRejectsNonPositiveTarget(t *testing.T) {
	client := &fakeFeed{}

	_, err := Collect(context.Background(), client, Options{TargetCount: 0, PageBudget: 5})
	assert.Error(t, err)

	_, err = Collect(context.Background(), client, Options{TargetCount: -3, PageBudget: 5})
	assert.Error(t, err)

	assert.Equal(t, 0, client.fetches)
}
