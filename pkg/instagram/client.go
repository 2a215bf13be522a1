package instagram

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Davincible/goinsta/v3"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/session"
)

// Client is the goinsta-backed implementation of FeedClient. It also
// implements session.TokenStore, session.Validator and
// session.Authenticator so the session policy can drive it directly.
type Client struct {
	mu    sync.Mutex
	insta *goinsta.Instagram

	username    string
	sessionPath string
	log         logger.Logger

	timeline *goinsta.Timeline

	// items remembers raw timeline entries by post ID so comment
	// fetches can go back to the wrapper object.
	items map[string]*goinsta.Item
}

// NewClient creates a client for the given account. No network traffic
// happens until the session policy asks for it.
func NewClient(username, sessionPath string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		username:    username,
		sessionPath: sessionPath,
		log:         log.WithField("username", username),
		items:       make(map[string]*goinsta.Item),
	}
}

// Exists reports whether a stored session file is present
func (c *Client) Exists() bool {
	_, err := os.Stat(c.sessionPath)
	return err == nil
}

// Load restores the session from disk
func (c *Client) Load() error {
	insta, err := goinsta.Import(c.sessionPath)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, "failed to import session", err)
	}

	c.mu.Lock()
	c.insta = insta
	c.mu.Unlock()
	return nil
}

// Save persists the current session, overwriting any previous file
func (c *Client) Save() error {
	c.mu.Lock()
	insta := c.insta
	c.mu.Unlock()

	if insta == nil {
		return errs.New(errs.ErrorTypeUnknown, "no active session to save")
	}

	if err := os.MkdirAll(filepath.Dir(c.sessionPath), 0700); err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, "failed to create session directory", err)
	}

	if err := insta.Export(c.sessionPath); err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, "failed to export session", err)
	}
	return nil
}

// Validate probes the loaded session with a cheap account sync. The
// result distinguishes a rejected session from not being able to ask.
func (c *Client) Validate(ctx context.Context) session.Validity {
	c.mu.Lock()
	insta := c.insta
	c.mu.Unlock()

	if insta == nil {
		return session.ValidityInvalid
	}

	done := make(chan error, 1)
	go func() {
		done <- insta.Account.Sync()
	}()

	select {
	case err := <-done:
		if err == nil {
			return session.ValidityValid
		}
		if isTransportError(err) {
			c.log.WithError(err).Debug("session probe failed before reaching the service")
			return session.ValidityTransportError
		}
		return session.ValidityInvalid
	case <-ctx.Done():
		return session.ValidityTransportError
	}
}

// Login performs a fresh credential login, replacing any loaded session
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	insta := goinsta.New(username, password)

	if err := insta.Login(); err != nil {
		if errors.Is(err, goinsta.Err2FARequired) {
			c.mu.Lock()
			c.insta = insta
			c.mu.Unlock()
			return errs.Wrap(errs.ErrorTypeTwoFactor, "two-factor verification required", err)
		}
		return classifyError("login failed", err)
	}

	c.mu.Lock()
	c.insta = insta
	c.mu.Unlock()
	return nil
}

// LoginTwoFactor completes a pending two-factor challenge with the
// given code
func (c *Client) LoginTwoFactor(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	insta := c.insta
	c.mu.Unlock()

	if insta == nil || insta.TwoFactorInfo == nil {
		return errs.New(errs.ErrorTypeTwoFactor, "no pending two-factor challenge")
	}

	if err := insta.TwoFactorInfo.Login2FA(code); err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, "two-factor code rejected", err)
	}
	return nil
}

// FetchTimelinePage fetches one page of the home timeline. The cursor
// is the opaque token returned on the previous page; passing a cursor
// from an older run resumes where that run stopped.
func (c *Client) FetchTimelinePage(ctx context.Context, cursor string) (*TimelinePage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	insta := c.insta
	c.mu.Unlock()

	if insta == nil {
		return nil, errs.New(errs.ErrorTypeAuth, "not logged in")
	}

	c.mu.Lock()
	if c.timeline == nil {
		c.timeline = insta.Timeline
	}
	tl := c.timeline
	c.mu.Unlock()

	if cursor != "" {
		// Best effort: the wrapper honors the cursor only once a request
		// has been made on this session, so a fresh process starts from
		// the top of the feed regardless. Resumed runs rely on skipping
		// already-collected post IDs instead.
		tl.NextID = cursor
		tl.MoreAvailable = true
	}

	// Next appends to the wrapper's item list without clearing it, so
	// drop the previous page first or every page would re-deliver all
	// items fetched so far.
	tl.ClearPosts()

	more := tl.Next()
	if err := tl.Error(); err != nil && !errors.Is(err, goinsta.ErrNoMore) {
		return nil, classifyError("timeline fetch failed", err)
	}

	page := &TimelinePage{
		NextCursor:    tl.NextID,
		MoreAvailable: more,
	}

	c.mu.Lock()
	for _, item := range tl.Items {
		if item == nil {
			continue
		}
		post := normalizeItem(item)
		if post.ID == "" {
			continue
		}
		c.items[post.ID] = item
		page.Posts = append(page.Posts, post)
	}
	c.mu.Unlock()

	return page, nil
}

// FetchComments fetches up to limit comments for a post seen earlier
// in this run
func (c *Client) FetchComments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	item, ok := c.items[postID]
	c.mu.Unlock()

	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, "post not seen in this run")
	}

	comments := item.Comments
	if comments == nil {
		return nil, errs.New(errs.ErrorTypeNotFound, "post has no comment feed")
	}

	// Sync only points the thread at its endpoint; Next performs the
	// request and fills Items.
	comments.Sync()
	if !comments.Next() {
		if err := comments.Error(); err != nil && !errors.Is(err, goinsta.ErrNoMore) {
			return nil, classifyError("comment fetch failed", err)
		}
	}

	out := make([]models.Comment, 0, len(comments.Items))
	for _, raw := range comments.Items {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, normalizeComment(raw))
	}
	return out, nil
}

// classifyError maps wrapper errors onto the archiver's error taxonomy
func classifyError(message string, err error) error {
	if err == nil {
		return nil
	}

	if isTransportError(err) {
		return errs.Wrap(errs.ErrorTypeNetwork, message, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "please wait a few minutes") ||
		strings.Contains(msg, "429"):
		return errs.Wrap(errs.ErrorTypeRateLimit, message, err)
	case strings.Contains(msg, "login_required") ||
		strings.Contains(msg, "login required") ||
		strings.Contains(msg, "challenge") ||
		strings.Contains(msg, "password"):
		return errs.Wrap(errs.ErrorTypeAuth, message, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
		return errs.Wrap(errs.ErrorTypeNotFound, message, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503"):
		return errs.Wrap(errs.ErrorTypeServerError, message, err)
	default:
		return errs.Wrap(errs.ErrorTypeUnknown, message, err)
	}
}

func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
