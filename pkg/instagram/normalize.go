package instagram

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Davincible/goinsta/v3"

	"igarchive/pkg/models"
)

const postURLFormat = "https://www.instagram.com/p/%s/"

// normalizeItem converts one raw timeline entry to the archive record.
// This is the only place wrapper field names appear.
func normalizeItem(item *goinsta.Item) models.Post {
	post := models.Post{
		ID:                item.GetID(),
		Code:              item.Code,
		User:              item.User.Username,
		UserID:            strconv.FormatInt(item.User.ID, 10),
		UserFullName:      item.User.FullName,
		IsVerified:        item.User.IsVerified,
		Caption:           item.Caption.Text,
		Likes:             item.Likes,
		CommentsCount:     item.CommentCount,
		Timestamp:         item.TakenAt,
		MediaType:         item.MediaType,
		MediaTypeName:     models.MediaTypeName(item.MediaType),
		Location:          item.Location.Name,
		IsPaidPartnership: item.IsPaidPartnership,
		// Feed-injected ads carry an ad_action instead of the paid
		// partnership flag.
		IsSponsored: item.IsPaidPartnership || item.AdAction != "",
	}

	if post.Code != "" {
		post.URL = fmt.Sprintf(postURLFormat, post.Code)
	}
	if post.Timestamp > 0 {
		post.TimestampHuman = time.Unix(post.Timestamp, 0).Format("2006-01-02 15:04:05")
	}

	post.ThumbnailURL = bestImageURL(item)
	if len(item.Videos) > 0 {
		post.VideoURL = item.Videos[0].URL
	}

	switch item.MediaType {
	case models.MediaTypeAlbum:
		post.CarouselMediaCount = len(item.CarouselMedia)
		for i := range item.CarouselMedia {
			if u := downloadURL(&item.CarouselMedia[i]); u != "" {
				post.MediaURLs = append(post.MediaURLs, u)
			}
		}
	default:
		if u := downloadURL(item); u != "" {
			post.MediaURLs = append(post.MediaURLs, u)
		}
	}

	return post
}

// downloadURL picks the media URL worth archiving for a single item:
// the video stream when there is one, the largest image otherwise.
func downloadURL(item *goinsta.Item) string {
	if len(item.Videos) > 0 {
		return item.Videos[0].URL
	}
	return bestImageURL(item)
}

func bestImageURL(item *goinsta.Item) string {
	if len(item.Images.Versions) == 0 {
		return ""
	}
	return item.Images.Versions[0].URL
}

func normalizeComment(raw goinsta.Comment) models.Comment {
	c := models.Comment{
		User:  raw.User.Username,
		Text:  raw.Text,
		Likes: int(raw.CommentLikeCount),
	}
	if raw.CreatedAt > 0 {
		c.CreatedAt = time.Unix(raw.CreatedAt, 0).Format("2006-01-02 15:04:05")
	}
	return c
}
