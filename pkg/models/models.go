package models

import "time"

// Media type codes as reported by the remote service
const (
	MediaTypePhoto = 1
	MediaTypeVideo = 2
	MediaTypeAlbum = 8
)

// MediaTypeName converts a media type code to its archive name
func MediaTypeName(mediaType int) string {
	switch mediaType {
	case MediaTypePhoto:
		return "photo"
	case MediaTypeVideo:
		return "video"
	case MediaTypeAlbum:
		return "album"
	default:
		return "unknown"
	}
}

// Post is one archived timeline entry. It is the normalized record the
// pagination engine and the JSON document operate on; raw wrapper shapes
// never leave the client boundary. Written once per run, never mutated
// afterwards.
type Post struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code,omitempty"`
	URL                string    `json:"url,omitempty"`
	User               string    `json:"user"`
	UserID             string    `json:"user_id,omitempty"`
	UserFullName       string    `json:"user_full_name,omitempty"`
	IsVerified         bool      `json:"is_verified"`
	Caption            string    `json:"caption,omitempty"`
	Likes              int       `json:"likes"`
	CommentsCount      int       `json:"comments_count"`
	Timestamp          int64     `json:"timestamp,omitempty"`
	TimestampHuman     string    `json:"timestamp_human,omitempty"`
	MediaType          int       `json:"media_type"`
	MediaTypeName      string    `json:"media_type_name"`
	ThumbnailURL       string    `json:"thumbnail_url,omitempty"`
	VideoURL           string    `json:"video_url,omitempty"`
	CarouselMediaCount int       `json:"carousel_media_count,omitempty"`
	Location           string    `json:"location,omitempty"`
	IsPaidPartnership  bool      `json:"is_paid_partnership"`
	IsSponsored        bool      `json:"is_sponsored"`
	MediaURLs          []string  `json:"media_urls,omitempty"`
	DownloadedFiles    []string  `json:"downloaded_files,omitempty"`
	Comments           []Comment `json:"comments,omitempty"`
}

// Key returns the deduplication key for the post
func (p *Post) Key() string {
	return p.ID
}

// TakenAt returns the capture timestamp as a time.Time
func (p *Post) TakenAt() time.Time {
	return time.Unix(p.Timestamp, 0)
}

// Comment is attached to a Post; it has no independent identity in the
// archive.
type Comment struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Likes     int    `json:"likes"`
	CreatedAt string `json:"created_at,omitempty"`
}
