package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igarchive/internal/downloader"
	"igarchive/pkg/archive"
	"igarchive/pkg/auth"
	"igarchive/pkg/checkpoint"
	"igarchive/pkg/config"
	"igarchive/pkg/feed"
	"igarchive/pkg/instagram"
	"igarchive/pkg/logger"
	"igarchive/pkg/ratelimit"
	"igarchive/pkg/session"
	"igarchive/pkg/ui"
)

var (
	archiveUsername      string
	archiveCount         int
	archivePages         int
	archiveComments      bool
	archiveCommentLimit  int
	archiveDownload      bool
	archiveChronological bool
	archiveNoSponsored   bool
	archiveAll           bool
	archiveOutput        string
	archiveResume        bool
	archiveQuiet         bool
)

var archiveCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect timeline posts and write a JSON archive",
	Long: `Collect posts from the home timeline of the configured account and
write them to a timestamped JSON archive.

The run reuses the stored session when it still validates and falls
back to interactive login otherwise. Collection stops when the target
count is reached, the feed runs out, the feed stalls, or the page
budget is spent.`,
	Example: `  # Archive the latest 20 posts
  igarchive run --username myaccount

  # 50 posts, with comments and media
  igarchive run --username myaccount -n 50 --comments --download

  # Resume an interrupted run
  igarchive run --username myaccount --resume`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().StringVarP(&archiveUsername, "username", "u", "", "account to log in as")
	archiveCmd.Flags().IntVarP(&archiveCount, "count", "n", 0, "number of posts to collect")
	archiveCmd.Flags().IntVar(&archivePages, "pages", 0, "maximum page fetches")
	archiveCmd.Flags().BoolVar(&archiveComments, "comments", false, "fetch comments for each post")
	archiveCmd.Flags().IntVar(&archiveCommentLimit, "comment-limit", 0, "maximum comments per post")
	archiveCmd.Flags().BoolVar(&archiveDownload, "download", false, "download media files")
	archiveCmd.Flags().BoolVar(&archiveChronological, "chronological", false, "sort archived posts newest first")
	archiveCmd.Flags().BoolVar(&archiveNoSponsored, "no-sponsored", false, "skip sponsored posts")
	archiveCmd.Flags().BoolVar(&archiveAll, "all", false, "include posts archived by earlier runs")
	archiveCmd.Flags().StringVarP(&archiveOutput, "output", "o", "", "archive output directory")
	archiveCmd.Flags().BoolVar(&archiveResume, "resume", false, "resume from the last checkpoint")
	archiveCmd.Flags().BoolVarP(&archiveQuiet, "quiet", "q", false, "suppress per-post output")
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.GetLogger()

	username := cfg.Instagram.Username
	if username == "" {
		return fmt.Errorf("no username configured; pass --username or set IGARCHIVE_USERNAME")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stored credentials let headless runs skip the password prompt.
	var password string
	if manager, err := auth.NewManager(); err == nil {
		if account, err := manager.Retrieve(username); err == nil {
			password = account.Password
		}
	}

	client := instagram.NewClient(username, cfg.Instagram.SessionFile, log)

	policy := &session.Policy{
		Store:    client,
		Validate: client,
		Auth:     client,
		Prompt:   terminalPrompter{},
		Username: username,
		Password: password,
		Log:      log,
	}

	state, err := policy.Ensure(ctx)
	if err != nil {
		ui.PrintError("Login failed", err.Error())
		return err
	}
	ui.PrintInfo("Session", state.String())

	var knownIDs map[string]bool
	if cfg.Feed.SkipArchived {
		knownIDs, err = archive.LoadExistingIDs(cfg.Output.BaseDirectory, log)
		if err != nil {
			log.WithError(err).Warn("could not index earlier archives")
		}
	}

	cpManager, cpErr := checkpoint.NewManager(username)
	if cpErr != nil {
		log.WithError(cpErr).Warn("checkpoints unavailable for this run")
	}

	startCursor := ""
	if archiveResume && cpManager != nil {
		if cp, err := cpManager.Load(); err == nil && cp != nil {
			startCursor = cp.Cursor
			// The feed may replay from the top on a fresh process, so
			// the posts the interrupted run already collected are
			// skipped by ID rather than trusted to the cursor.
			if knownIDs == nil {
				knownIDs = make(map[string]bool)
			}
			for _, id := range cp.CollectedIDs {
				knownIDs[id] = true
			}
			ui.PrintInfo("Resuming", fmt.Sprintf("cursor %s, %d posts already collected", cp.Cursor, len(cp.CollectedIDs)))
		}
	}

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	delayer := ratelimit.NewJitterDelay(cfg.RateLimit.PageDelayMin, cfg.RateLimit.PageDelayMax)

	feedClient := &retryingFeedClient{
		inner:       client,
		limiter:     limiter,
		maxAttempts: cfg.RateLimit.MaxRetries,
		log:         log,
	}

	result, collectErr := feed.Collect(ctx, feedClient, feed.Options{
		TargetCount:   cfg.Feed.TargetCount,
		PageBudget:    cfg.Feed.PageBudget,
		StartCursor:   startCursor,
		SkipSponsored: cfg.Feed.SkipSponsored,
		KnownIDs:      knownIDs,
		Delay:         delayer,
		Logger:        log,
	})
	if result == nil {
		return collectErr
	}

	if collectErr != nil {
		ui.PrintWarning("Collection interrupted, archiving partial results", collectErr.Error())
		if cpManager != nil && result.NextCursor != "" {
			saveCheckpoint(cpManager, username, result, cfg.Feed.TargetCount, log)
		}
	} else if cpManager != nil {
		if err := cpManager.Delete(); err != nil {
			log.WithError(err).Warn("failed to clear checkpoint")
		}
	}

	summary := &ui.RunSummary{
		Posts:             len(result.Posts),
		Pages:             result.PagesFetched,
		StopReason:        string(result.Reason),
		DuplicatesSkipped: result.DuplicatesSkipped,
		SponsoredSkipped:  result.SponsoredSkipped,
		KnownSkipped:      result.KnownSkipped,
	}
	summary.CountMediaTypes(result.Posts)

	if cfg.Feed.FetchComments && len(result.Posts) > 0 {
		fetched, err := feed.AttachComments(ctx, feedClient, result.Posts, cfg.Feed.CommentLimit, delayer, log)
		summary.CommentsFetched = fetched
		if err != nil {
			ui.PrintWarning("Comment capture interrupted", err.Error())
		}
	}

	if cfg.Feed.DownloadMedia && len(result.Posts) > 0 {
		mediaDir := filepath.Join(cfg.Output.BaseDirectory, cfg.Output.MediaDirectory)
		store, err := newMediaStore(mediaDir)
		if err != nil {
			ui.PrintWarning("Media download skipped", err.Error())
		} else {
			fetcher := downloader.NewHTTPFetcher(cfg.Download.DownloadTimeout)
			dl := downloader.DownloadAll(ctx, result.Posts, cfg.Download.ConcurrentDownloads, fetcher, store, limiter, log)
			summary.MediaDownloaded = dl.Downloaded
			summary.MediaFailed = dl.Failed
		}
	}

	if cfg.Feed.SortByTakenAt {
		archive.SortChronological(result.Posts)
	}

	if !archiveQuiet {
		for i := range result.Posts {
			ui.PrintPost(i+1, &result.Posts[i])
		}
	}

	writer := archive.NewWriter(cfg.Output.BaseDirectory, log)
	path, err := writer.Write(&archive.Document{
		Account:           username,
		PagesFetched:      result.PagesFetched,
		StopReason:        string(result.Reason),
		Chronological:     cfg.Feed.SortByTakenAt,
		SponsoredExcluded: cfg.Feed.SkipSponsored,
		Partial:           collectErr != nil,
		Posts:             result.Posts,
	})
	if err != nil {
		ui.PrintError("Failed to write archive", err.Error())
		return err
	}
	summary.ArchivePath = path

	ui.PrintSummary(summary)

	return collectErr
}

// loadRunConfig merges config file, environment and flags
func loadRunConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if archiveUsername != "" {
		cfg.Instagram.Username = archiveUsername
	}
	if archiveCount > 0 {
		cfg.Feed.TargetCount = archiveCount
	}
	if archivePages > 0 {
		cfg.Feed.PageBudget = archivePages
	}
	if archiveComments {
		cfg.Feed.FetchComments = true
	}
	if archiveCommentLimit > 0 {
		cfg.Feed.CommentLimit = archiveCommentLimit
	}
	if archiveDownload {
		cfg.Feed.DownloadMedia = true
	}
	if archiveChronological {
		cfg.Feed.SortByTakenAt = true
	}
	if archiveNoSponsored {
		cfg.Feed.SkipSponsored = true
	}
	if archiveAll {
		cfg.Feed.SkipArchived = false
	}
	if archiveOutput != "" {
		cfg.Output.BaseDirectory = archiveOutput
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func saveCheckpoint(m *checkpoint.Manager, username string, result *feed.Result, target int, log logger.Logger) {
	ids := make([]string, 0, len(result.Posts))
	for _, p := range result.Posts {
		ids = append(ids, p.ID)
	}

	err := m.Save(&checkpoint.Checkpoint{
		Account:      username,
		Cursor:       result.NextCursor,
		PagesFetched: result.PagesFetched,
		CollectedIDs: ids,
		TargetCount:  target,
	})
	if err != nil {
		log.WithError(err).Warn("failed to save checkpoint")
	}
}
