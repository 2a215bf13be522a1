// Package archive writes the run's output document and reads back the
// post IDs of earlier archives.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
)

const (
	filePrefix      = "feed"
	fileTimeLayout  = "20060102_150405"
	chronoSuffix    = "_chrono"
	noSponsorSuffix = "_no_ads"
)

// Document is the JSON archive produced by one run
type Document struct {
	GeneratedAt       string        `json:"generated_at"`
	Account           string        `json:"account"`
	TotalPosts        int           `json:"total_posts"`
	PagesFetched      int           `json:"pages_fetched"`
	StopReason        string        `json:"stop_reason"`
	Chronological     bool          `json:"chronological"`
	SponsoredExcluded bool          `json:"sponsored_excluded"`
	Partial           bool          `json:"partial,omitempty"`
	Posts             []models.Post `json:"posts"`
}

// Writer produces archive documents in a base directory
type Writer struct {
	dir string
	log logger.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewWriter creates a writer rooted at dir
func NewWriter(dir string, log logger.Logger) *Writer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{
		dir: dir,
		log: log,
		now: time.Now,
	}
}

// Write persists the document and returns its path. The file appears
// atomically: it is written to a temp name first and renamed into
// place, so a crashed run never leaves a half-written archive behind.
func (w *Writer) Write(doc *Document) (string, error) {
	if doc.GeneratedAt == "" {
		doc.GeneratedAt = w.now().Format(time.RFC3339)
	}
	doc.TotalPosts = len(doc.Posts)

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	path := filepath.Join(w.dir, w.filename(doc))

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	w.log.InfoWithFields("archive written", map[string]interface{}{
		"path":  path,
		"posts": doc.TotalPosts,
	})

	return path, nil
}

func (w *Writer) filename(doc *Document) string {
	name := filePrefix + "_" + w.now().Format(fileTimeLayout)
	if doc.Chronological {
		name += chronoSuffix
	}
	if doc.SponsoredExcluded {
		name += noSponsorSuffix
	}
	return name + ".json"
}

// LoadExistingIDs scans earlier archive files in dir and returns the
// set of post IDs they contain. A file that does not parse is skipped;
// losing one old index entry only risks re-archiving a post.
func LoadExistingIDs(dir string, log logger.Logger) (map[string]bool, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"_*.json"))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to scan archive directory", err)
	}

	ids := make(map[string]bool)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping unreadable archive")
			continue
		}

		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			log.WithError(err).WithField("path", path).Warn("skipping malformed archive")
			continue
		}

		for _, post := range doc.Posts {
			if post.ID != "" {
				ids[post.ID] = true
			}
		}
	}

	if len(ids) > 0 {
		log.InfoWithFields("loaded previously archived posts", map[string]interface{}{
			"files": len(matches),
			"posts": len(ids),
		})
	}

	return ids, nil
}

// SortChronological orders posts newest first by capture time. The
// engine always returns feed order; this runs only when the operator
// asks for it.
func SortChronological(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Timestamp > posts[j].Timestamp
	})
}
