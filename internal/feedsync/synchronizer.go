// Package feedsync decides when the feed is fetched again and when a local
// patch is enough, and owns page navigation for posts and for each post's
// comments.
package feedsync

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/feed"
	"github.com/volunteerhub/feed-bff/internal/logger"
	"github.com/volunteerhub/feed-bff/internal/pagewindow"
	"github.com/volunteerhub/feed-bff/internal/tracing"
)

type State string

const (
	Idle    State = "idle"
	Loading State = "loading"
	Ready   State = "ready"
	Error   State = "error"
)

// Fetcher is the read side of the backend.
type Fetcher interface {
	FetchFeedPage(ctx context.Context, eventID string, page int) (domain.FeedPage, error)
	FetchCommentPage(ctx context.Context, postID string, page int) (domain.CommentPage, error)
}

// machine tracks one paginated slice. epoch changes on every fetch started,
// so only the newest fetch may land.
type machine struct {
	state  State
	epoch  uint64
	target int
	err    error
}

type Synchronizer struct {
	mu      sync.Locker
	store   *feed.Store
	fetcher Fetcher

	eventID  string
	posts    machine
	comments map[string]*machine
}

func New(mu sync.Locker, store *feed.Store, fetcher Fetcher) *Synchronizer {
	return &Synchronizer{
		mu:       mu,
		store:    store,
		fetcher:  fetcher,
		eventID:  store.EventID(),
		posts:    machine{state: Idle},
		comments: make(map[string]*machine),
	}
}

// Load fetches page 0 of eventID, resetting the store first when it holds
// another event.
func (s *Synchronizer) Load(ctx context.Context, eventID string) error {
	s.mu.Lock()
	if eventID != s.eventID || eventID != s.store.EventID() {
		s.store.Reset(eventID)
		s.eventID = eventID
		// The epoch survives so a fetch started for an earlier visit to
		// eventID still reads as stale.
		s.posts = machine{state: Idle, epoch: s.posts.epoch}
		s.comments = make(map[string]*machine)
	}
	s.mu.Unlock()
	return s.fetchPosts(ctx, 0)
}

// ChangePostPage fetches page when it exists. Any other request is ignored.
func (s *Synchronizer) ChangePostPage(ctx context.Context, page int) error {
	s.mu.Lock()
	ok := s.posts.state != Idle && pagewindow.InBounds(s.store.Window(), page)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.fetchPosts(ctx, page)
}

// Retry repeats the fetch that failed. It does nothing unless the feed is in
// the Error state.
func (s *Synchronizer) Retry(ctx context.Context) error {
	s.mu.Lock()
	failed, page := s.posts.state == Error, s.posts.target
	s.mu.Unlock()
	if !failed {
		return nil
	}
	return s.fetchPosts(ctx, page)
}

// Refresh fetches the current page again.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	idle, page := s.posts.state == Idle, s.store.Window().Page
	s.mu.Unlock()
	if idle {
		return nil
	}
	return s.fetchPosts(ctx, page)
}

func (s *Synchronizer) fetchPosts(ctx context.Context, page int) error {
	s.mu.Lock()
	s.posts.epoch++
	epoch, eventID := s.posts.epoch, s.eventID
	s.posts.state, s.posts.target = Loading, page
	s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "feed.fetch_posts",
		attribute.String("event_id", eventID),
		attribute.Int("page", page),
	)
	fp, err := s.fetcher.FetchFeedPage(ctx, eventID, page)
	tracing.EndSpan(span, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.Ctx(ctx).With().Str("event_id", eventID).Int("page", page).Logger()
	if epoch != s.posts.epoch || eventID != s.eventID {
		staleTotal.WithLabelValues("posts").Inc()
		log.Debug().Msg("stale_response_dropped")
		return nil
	}
	if err != nil {
		fetchesTotal.WithLabelValues("posts", "error").Inc()
		s.posts.state, s.posts.err = Error, err
		log.Warn().Err(err).Msg("feed_page_failed")
		return err
	}

	fetchesTotal.WithLabelValues("posts", "ok").Inc()
	s.store.SetEvent(fp.Event)
	s.store.ReplaceAll(fp.Posts, fp.Window)
	s.comments = make(map[string]*machine)
	s.posts.state, s.posts.err = Ready, nil
	log.Debug().Int("posts", len(fp.Posts)).Int("total", fp.Window.TotalElements).Msg("feed_page_loaded")
	return nil
}

// ChangeCommentPage fetches page of postID's comments when it exists. Other
// posts' comment pages are not touched.
func (s *Synchronizer) ChangeCommentPage(ctx context.Context, postID string, page int) error {
	s.mu.Lock()
	post, found := s.store.Post(postID)
	ok := found && !post.Pending && pagewindow.InBounds(post.CommentWindow, page)
	s.mu.Unlock()
	if !found {
		return feed.ErrPostNotFound
	}
	if !ok {
		return nil
	}
	return s.fetchComments(ctx, postID, page)
}

func (s *Synchronizer) RetryComments(ctx context.Context, postID string) error {
	s.mu.Lock()
	m := s.comments[postID]
	failed := m != nil && m.state == Error
	page := 0
	if failed {
		page = m.target
	}
	s.mu.Unlock()
	if !failed {
		return nil
	}
	return s.fetchComments(ctx, postID, page)
}

// RefreshComments fetches postID's current comment page again.
func (s *Synchronizer) RefreshComments(ctx context.Context, postID string) error {
	s.mu.Lock()
	post, found := s.store.Post(postID)
	s.mu.Unlock()
	if !found {
		return feed.ErrPostNotFound
	}
	if post.Pending {
		return nil
	}
	return s.fetchComments(ctx, postID, post.CommentWindow.Page)
}

func (s *Synchronizer) fetchComments(ctx context.Context, postID string, page int) error {
	s.mu.Lock()
	m := s.commentMachine(postID)
	m.epoch++
	epoch := m.epoch
	m.state, m.target = Loading, page
	s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "feed.fetch_comments",
		attribute.String("post_id", postID),
		attribute.Int("page", page),
	)
	cp, err := s.fetcher.FetchCommentPage(ctx, postID, page)
	tracing.EndSpan(span, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.Ctx(ctx).With().Str("post_id", postID).Int("page", page).Logger()
	// A feed load since the fetch started replaced every comment machine.
	if s.comments[postID] != m || m.epoch != epoch {
		staleTotal.WithLabelValues("comments").Inc()
		log.Debug().Msg("stale_response_dropped")
		return nil
	}
	if err != nil {
		fetchesTotal.WithLabelValues("comments", "error").Inc()
		m.state, m.err = Error, err
		log.Warn().Err(err).Msg("comment_page_failed")
		return err
	}
	if err := s.store.ReplacePostComments(postID, cp.Comments, cp.Window); errors.Is(err, feed.ErrPostNotFound) {
		// Deleted locally while the page was in flight.
		delete(s.comments, postID)
		return nil
	}
	fetchesTotal.WithLabelValues("comments", "ok").Inc()
	m.state, m.err = Ready, nil
	return nil
}

// commentMachine must be called with the lock held. Posts arriving with a
// feed page already hold their first comment page, so machines start Ready.
func (s *Synchronizer) commentMachine(postID string) *machine {
	m, ok := s.comments[postID]
	if !ok {
		m = &machine{state: Ready}
		s.comments[postID] = m
	}
	return m
}

// The accessors below must be called with the lock held.

func (s *Synchronizer) EventID() string { return s.eventID }

func (s *Synchronizer) State() State { return s.posts.state }

func (s *Synchronizer) Err() error { return s.posts.err }

// CommentState reports Idle for posts that are not loaded.
func (s *Synchronizer) CommentState(postID string) State {
	if m, ok := s.comments[postID]; ok {
		return m.state
	}
	if _, ok := s.store.Post(postID); ok {
		return Ready
	}
	return Idle
}

func (s *Synchronizer) CommentErr(postID string) error {
	if m, ok := s.comments[postID]; ok {
		return m.err
	}
	return nil
}
