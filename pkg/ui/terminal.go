package ui

import (
	"fmt"
	"strings"

	"igarchive/pkg/models"
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints a labelled value in color
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Yellow(msg))
	}
}

// PrintPost prints one collected post as a compact block
func PrintPost(index int, post *models.Post) {
	fmt.Printf("%s %s %s\n",
		Dim(fmt.Sprintf("[%d]", index)),
		Cyan("@"+post.User),
		Dim(post.TimestampHuman))

	caption := post.Caption
	if len(caption) > 80 {
		caption = caption[:77] + "..."
	}
	if caption != "" {
		fmt.Printf("    %s\n", caption)
	}

	details := fmt.Sprintf("%s | %d likes | %d comments", post.MediaTypeName, post.Likes, post.CommentsCount)
	if post.CarouselMediaCount > 0 {
		details += fmt.Sprintf(" | %d items", post.CarouselMediaCount)
	}
	if post.IsSponsored {
		details += " | sponsored"
	}
	fmt.Printf("    %s\n", Dim(details))
}

// RunSummary aggregates what a run produced
type RunSummary struct {
	Posts             int
	Pages             int
	StopReason        string
	Photos            int
	Videos            int
	Albums            int
	SponsoredSkipped  int
	DuplicatesSkipped int
	KnownSkipped      int
	CommentsFetched   int
	MediaDownloaded   int
	MediaFailed       int
	ArchivePath       string
}

// CountMediaTypes fills the per-type counters from the collected posts
func (s *RunSummary) CountMediaTypes(posts []models.Post) {
	for _, post := range posts {
		switch post.MediaType {
		case models.MediaTypePhoto:
			s.Photos++
		case models.MediaTypeVideo:
			s.Videos++
		case models.MediaTypeAlbum:
			s.Albums++
		}
	}
}

// PrintSummary prints the end-of-run report
func PrintSummary(s *RunSummary) {
	fmt.Println()
	fmt.Println(Magenta(strings.Repeat("=", 48)))
	PrintInfo("Posts archived", fmt.Sprintf("%d", s.Posts))
	PrintInfo("Pages fetched", fmt.Sprintf("%d", s.Pages))
	PrintInfo("Stopped because", s.StopReason)
	PrintInfo("Breakdown", fmt.Sprintf("%d photos, %d videos, %d albums", s.Photos, s.Videos, s.Albums))

	if s.DuplicatesSkipped > 0 {
		PrintInfo("Duplicates skipped", fmt.Sprintf("%d", s.DuplicatesSkipped))
	}
	if s.SponsoredSkipped > 0 {
		PrintInfo("Sponsored skipped", fmt.Sprintf("%d", s.SponsoredSkipped))
	}
	if s.KnownSkipped > 0 {
		PrintInfo("Already archived", fmt.Sprintf("%d", s.KnownSkipped))
	}
	if s.CommentsFetched > 0 {
		PrintInfo("Comment threads", fmt.Sprintf("%d", s.CommentsFetched))
	}
	if s.MediaDownloaded > 0 || s.MediaFailed > 0 {
		PrintInfo("Media downloaded", fmt.Sprintf("%d (%d failed)", s.MediaDownloaded, s.MediaFailed))
	}

	if s.ArchivePath != "" {
		PrintSuccess("Archive written to " + s.ArchivePath)
	}
	fmt.Println(Magenta(strings.Repeat("=", 48)))
}
