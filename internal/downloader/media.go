package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/ratelimit"
	"igarchive/pkg/storage"
)

// HTTPFetcher downloads media over plain HTTP
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the media bytes at url
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to build request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errs.New(errs.ErrorTypeRateLimit, "rate limited while downloading media")
	case resp.StatusCode == http.StatusNotFound:
		return nil, errs.New(errs.ErrorTypeNotFound, "media no longer available")
	case resp.StatusCode >= 500:
		return nil, errs.New(errs.ErrorTypeServerError, fmt.Sprintf("server returned %d", resp.StatusCode))
	default:
		return nil, errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "failed to read media body", err)
	}
	return data, nil
}

// Summary counts what a download pass did
type Summary struct {
	Attempted  int
	Downloaded int
	Skipped    int
	Failed     int
}

// DownloadAll downloads every media URL of every post through a worker
// pool and records the resulting filenames on the posts, keeping album
// order. Failures are counted, logged and otherwise ignored.
func DownloadAll(
	ctx context.Context,
	posts []models.Post,
	workers int,
	fetcher MediaFetcher,
	store MediaStorage,
	limiter ratelimit.Limiter,
	log logger.Logger,
) Summary {
	if log == nil {
		log = logger.GetLogger()
	}

	type slot struct{ post, idx int }

	var jobs []MediaJob
	slots := make(map[string]slot)
	files := make([][]string, len(posts))

	for i := range posts {
		urls := posts[i].MediaURLs
		files[i] = make([]string, len(urls))
		for j, mediaURL := range urls {
			index := 0
			if posts[i].MediaType == models.MediaTypeAlbum {
				index = j + 1
			}
			filename := storage.MediaFilename(posts[i].User, posts[i].ID, index, extFromURL(mediaURL))
			// The filename is unique per post and album position, so
			// it doubles as the result key.
			slots[filename] = slot{post: i, idx: j}
			jobs = append(jobs, MediaJob{
				URL:      mediaURL,
				Filename: filename,
				PostID:   posts[i].ID,
			})
		}
	}

	summary := Summary{Attempted: len(jobs)}
	if len(jobs) == 0 {
		return summary
	}

	pool := NewWorkerPool(workers, fetcher, store, limiter, log)
	pool.Start()

	go func() {
		for _, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			if err := pool.Submit(job); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	for result := range pool.Results() {
		switch {
		case result.Skipped:
			summary.Skipped++
		case result.Success:
			summary.Downloaded++
		default:
			summary.Failed++
		}

		if result.Success {
			if s, ok := slots[result.Job.Filename]; ok {
				files[s.post][s.idx] = result.Job.Filename
			}
		}
	}

	for i := range posts {
		for _, f := range files[i] {
			if f != "" {
				posts[i].DownloadedFiles = append(posts[i].DownloadedFiles, f)
			}
		}
	}

	log.InfoWithFields("media download finished", map[string]interface{}{
		"attempted":  summary.Attempted,
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	})

	return summary
}

// extFromURL guesses a file extension from the media URL path
func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic", ".mp4", ".mov":
		return ext
	default:
		return ".jpg"
	}
}
