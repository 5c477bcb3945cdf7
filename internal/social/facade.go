// Package social is the entry point presentation code uses for one event's
// feed. Reads go through the synchronizer, every write is one optimistic
// mutation.
package social

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/feed"
	"github.com/volunteerhub/feed-bff/internal/feedsync"
	"github.com/volunteerhub/feed-bff/internal/logger"
	"github.com/volunteerhub/feed-bff/internal/optimistic"
	"github.com/volunteerhub/feed-bff/internal/pagewindow"
)

var (
	ErrContentRequired = errors.New("content is required")
	ErrContentTooLong  = errors.New("content must be at most 5000 characters")
	ErrAuthRequired    = errors.New("sign in to do this")
	ErrNotAllowed      = errors.New("you are not allowed to do this")
	ErrPendingSync     = errors.New("still being saved, try again in a moment")
	ErrFeedNotLoaded   = errors.New("feed is not loaded")
	ErrTargetType      = errors.New("targetType must be EVENT, POST or COMMENT")
)

// Writer is the write side of the backend.
type Writer interface {
	CreatePost(ctx context.Context, eventID, content string) (domain.ModerationResult, error)
	EditPost(ctx context.Context, postID, content string) (domain.ModerationResult, error)
	DeletePost(ctx context.Context, postID string) (domain.ModerationResult, error)
	CreateComment(ctx context.Context, postID, content string) (domain.ModerationResult, error)
	EditComment(ctx context.Context, commentID, content string) (domain.ModerationResult, error)
	DeleteComment(ctx context.Context, commentID string) (domain.ModerationResult, error)
	ToggleLike(ctx context.Context, target domain.TargetType, targetID string) (domain.ModerationResult, error)
	Register(ctx context.Context, eventID string) (domain.ModerationResult, error)
	Unregister(ctx context.Context, eventID string) (domain.ModerationResult, error)
}

type Config struct {
	PostPageSize    int
	CommentPageSize int
}

type contentInput struct {
	Content string `validate:"required,max=5000"`
}

var validate = validator.New()

// Facade serialises all feed state behind one mutex. Backend calls never hold it.
type Facade struct {
	mu     sync.Mutex
	store  *feed.Store
	sync   *feedsync.Synchronizer
	coord  *optimistic.Coordinator
	reader feedsync.Fetcher
	writer Writer
	viewer domain.Viewer
	cfg    Config

	now    func() time.Time
	lastID int64
}

func New(eventID string, viewer domain.Viewer, reader feedsync.Fetcher, writer Writer, cfg Config) *Facade {
	f := &Facade{
		store:  feed.NewStore(eventID, cfg.PostPageSize),
		reader: reader,
		writer: writer,
		viewer: viewer,
		cfg:    cfg,
		now:    time.Now,
	}
	f.sync = feedsync.New(&f.mu, f.store, reader)
	f.coord = optimistic.NewCoordinator(&f.mu, f.store)
	return f
}

func (f *Facade) Viewer() domain.Viewer { return f.viewer }

func (f *Facade) EventID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.EventID()
}

// LoadFeed fetches page 0 of eventID.
func (f *Facade) LoadFeed(ctx context.Context, eventID string) error {
	return f.sync.Load(ctx, eventID)
}

// EnsureLoaded loads the feed unless it was loaded or is loading.
func (f *Facade) EnsureLoaded(ctx context.Context) error {
	f.mu.Lock()
	idle, eventID := f.sync.State() == feedsync.Idle, f.store.EventID()
	f.mu.Unlock()
	if !idle {
		return nil
	}
	return f.sync.Load(ctx, eventID)
}

func (f *Facade) ChangePostPage(ctx context.Context, page int) error {
	return f.sync.ChangePostPage(ctx, page)
}

func (f *Facade) ChangeCommentPage(ctx context.Context, postID string, page int) error {
	return f.sync.ChangeCommentPage(ctx, postID, page)
}

func (f *Facade) Retry(ctx context.Context) error {
	return f.sync.Retry(ctx)
}

func (f *Facade) RetryComments(ctx context.Context, postID string) error {
	return f.sync.RetryComments(ctx, postID)
}

func (f *Facade) Refresh(ctx context.Context) error {
	return f.sync.Refresh(ctx)
}

func (f *Facade) CreatePost(ctx context.Context, content string) optimistic.Outcome {
	content, err := checkContent(content)
	if err != nil {
		return optimistic.Failed(optimistic.KindValidation, err)
	}
	eventID, out, ok := f.writable()
	if !ok {
		return out
	}

	now := f.now()
	tmpID := f.temporaryID(now)
	post := domain.Post{
		ID:                tmpID,
		Content:           content,
		AuthorID:          f.viewer.UserID,
		AuthorDisplayName: f.viewer.Name(),
		CreatedAt:         now,
		UpdatedAt:         now,
		Pending:           true,
		Comments:          []domain.Comment{},
		CommentWindow:     pagewindow.Empty(f.cfg.CommentPageSize),
	}

	return f.coord.Perform(ctx, optimistic.Mutation{
		Name:    "create_post",
		Capture: func() (feed.Snapshot, error) { return f.store.CapturePostInsert(tmpID), nil },
		Apply: func() error {
			f.store.InsertPostIfRoomElsePatchWindow(post, pagewindow.RecomputeAfterInsert(f.store.Window(), 0))
			return nil
		},
		Remote: func(ctx context.Context) (domain.ModerationResult, error) {
			return f.writer.CreatePost(ctx, eventID, content)
		},
		Reconcile: func(res domain.ModerationResult) {
			if res.TargetID != "" {
				_ = f.store.ReplacePostID(tmpID, res.TargetID)
			}
		},
		OnSuccess: func(ctx context.Context, out optimistic.Outcome) {
			// Without an id the post cannot be addressed; take the backend's page.
			if out.TargetID == "" {
				f.refresh(ctx)
			}
		},
	})
}

func (f *Facade) EditPost(ctx context.Context, postID, content string) optimistic.Outcome {
	content, err := checkContent(content)
	if err != nil {
		return optimistic.Failed(optimistic.KindValidation, err)
	}
	if out, ok := f.allowedOnPost(postID, func(p domain.ActionPolicy) bool { return p.CanEdit }); !ok {
		return out
	}

	return f.coord.Perform(ctx, optimistic.Mutation{
		Name:    "edit_post",
		Capture: func() (feed.Snapshot, error) { return f.store.CaptureContent(postID, "") },
		Apply:   func() error { return f.store.UpdatePostContent(postID, content) },
		Remote: func(ctx context.Context) (domain.ModerationResult, error) {
			return f.writer.EditPost(ctx, postID, content)
		},
	})
}

func (f *Facade) DeletePost(ctx context.Context, postID string) optimistic.Outcome {
	if out, ok := f.allowedOnPost(postID, func(p domain.ActionPolicy) bool { return p.CanDelete }); !ok {
		return out
	}

	clamped := false
	return f.coord.Perform(ctx, optimistic.Mutation{
		Name:    "delete_post",
		Capture: func() (feed.Snapshot, error) { return f.store.CapturePostRemoval(postID) },
		Apply: func() error {
			prev := f.store.Window()
			if err := f.store.RemovePost(postID); err != nil {
				return err
			}
			next := pagewindow.RecomputeAfterDelete(prev)
			f.store.SetWindow(next)
			clamped = next.Page != prev.Page
			return nil
		},
		Remote: func(ctx context.Context) (domain.ModerationResult, error) {
			return f.writer.DeletePost(ctx, postID)
		},
		OnSuccess: func(ctx context.Context, _ optimistic.Outcome) {
			// The page the viewer was on is gone; show the one it was clamped to.
			if clamped {
				f.refresh(ctx)
			}
		},
	})
}

func (f *Facade) CreateComment(ctx context.Context, postID, content string) optimistic.Outcome {
	content, err := checkContent(content)
	if err != nil {
		return optimistic.Failed(optimistic.KindValidation, err)
	}
	if out, ok := f.allowedOnPost(postID, func(p domain.ActionPolicy) bool { return p.CanComment }); !ok {
		return out
	}

	now := f.now()
	tmpID := f.temporaryID(now)
	comment := domain.Comment{
		ID:                tmpID,
		PostID:            postID,
		Content:           content,
		AuthorID:          f.viewer.UserID,
		AuthorDisplayName: f.viewer.Name(),
		CreatedAt:         now,
		UpdatedAt:         now,
		Pending:           true,
	}

	return f.coord.Perform(ctx, optimistic.Mutation{
		Name:    "create_comment",
		Capture: func() (feed.Snapshot, error) { return f.store.CaptureCommentInsert(postID, tmpID) },
		Apply: func() error {
			post, ok := f.store.Post(postID)
			if !ok {
				return feed.ErrPostNotFound
			}
			_, err := f.store.InsertCommentIfRoomElsePatchWindow(postID, comment, pagewindow.RecomputeAfterInsert(post.CommentWindow, 0))
			return err
		},
		Remote: func(ctx context.Context) (domain.ModerationResult, error) {
			return f.writer.CreateComment(ctx, postID, content)
		},
		Reconcile: func(res domain.ModerationResult) {
			if res.TargetID != "" {
				_ = f.store.ReplaceCommentID(postID, tmpID, res.TargetID)
			}
		},
		OnSuccess: func(ctx context.Context, out optimistic.Outcome) {
			if out.TargetID == "" {
				f.refreshComments(ctx, postID)
			}
		},
	})
}

func (f *Facade) EditComment(ctx context.Context, commentID, content string) optimistic.Outcome {
	content, err := checkContent(content)
	if err != nil {
		return optimistic.Failed(optimistic.KindValidation, err)
	}
	postID, out, ok := f.allowedOnComment(commentID, func(p domain.ActionPolicy) bool { return p.CanEdit })
	if !ok {
		return out
	}

	return f.coord.Perform(ctx, optimistic.Mutation{
		Name:    "edit_comment",
		Capture: func() (feed.Snapshot, error) { return f.store.CaptureContent(postID, commentID) },
		Apply:   func() error { return f.store.UpdateCommentContent(postID, commentID, content) },
		Remote: func(ctx context.Context) (domain.ModerationResult, error) {
			return f.writer.EditComment(ctx, commentID, content)
		},
	})
}

// DeleteComment removes commentID from postID's loaded page. postID may be
// empty, in which case the owning post is looked up.
func (f *Facade) DeleteComment(ctx context.Context, postID, commentID string) optimistic.Outcome {
	owner, out, ok := f.allowedOnComment(commentID, func(p domain.ActionPolicy) bool { return p.CanDelete })
	if owner != "" && postID != "" && postID != owner {
		return optimistic.Failed(optimistic.KindNotFound, feed.ErrCommentNotFound)
	}
	if !ok {
		return out
	}
	postID = owner

	clamped := false
	return f.coord.Perform(ctx, optimistic.Mutation{
		Name:    "delete_comment",
		Capture: func() (feed.Snapshot, error) { return f.store.CaptureCommentRemoval(postID, commentID) },
		Apply: func() error {
			post, ok := f.store.Post(postID)
			if !ok {
				return feed.ErrPostNotFound
			}
			if err := f.store.RemoveComment(postID, commentID); err != nil {
				return err
			}
			next := pagewindow.RecomputeAfterDelete(post.CommentWindow)
			clamped = next.Page != post.CommentWindow.Page
			return f.store.SetCommentWindow(postID, next)
		},
		Remote: func(ctx context.Context) (domain.ModerationResult, error) {
			return f.writer.DeleteComment(ctx, commentID)
		},
		OnSuccess: func(ctx context.Context, _ optimistic.Outcome) {
			if clamped {
				f.refreshComments(ctx, postID)
			}
		},
	})
}

// ToggleLike flips the viewer's like on an event, post or comment. An empty
// targetID with EVENT means the loaded event.
func (f *Facade) ToggleLike(ctx context.Context, targetID string, target domain.TargetType) optimistic.Outcome {
	if !target.Valid() {
		return optimistic.Failed(optimistic.KindValidation, ErrTargetType)
	}

	var postID, commentID string
	switch target {
	case domain.TargetEvent:
		eventID, out, ok := f.writable()
		if !ok {
			return out
		}
		if targetID == "" {
			targetID = eventID
		}
		if targetID != eventID {
			return optimistic.Failed(optimistic.KindNotFound, errors.New("event not loaded"))
		}
	case domain.TargetPost:
		postID = targetID
		if out, ok := f.allowedOnPost(postID, func(p domain.ActionPolicy) bool { return p.CanLike }); !ok {
			return out
		}
	case domain.TargetComment:
		commentID = targetID
		owner, out, ok := f.allowedOnComment(commentID, func(p domain.ActionPolicy) bool { return p.CanLike })
		if !ok {
			return out
		}
		postID = owner
	}

	return f.coord.Perform(ctx, optimistic.Mutation{
		Name:    "toggle_like",
		Capture: func() (feed.Snapshot, error) { return f.store.CaptureLike(target, postID, commentID) },
		Apply:   func() error { return f.flipLike(target, postID, commentID) },
		Remote: func(ctx context.Context) (domain.ModerationResult, error) {
			return f.writer.ToggleLike(ctx, target, targetID)
		},
	})
}

// flipLike runs under the lock and reads the like state it flips at that moment.
func (f *Facade) flipLike(target domain.TargetType, postID, commentID string) error {
	delta := func(liked bool) int {
		if liked {
			return 1
		}
		return -1
	}
	switch target {
	case domain.TargetEvent:
		liked := !f.store.Event().IsLiked
		f.store.SetEventLike(liked, delta(liked))
		return nil
	case domain.TargetPost:
		post, ok := f.store.Post(postID)
		if !ok {
			return feed.ErrPostNotFound
		}
		liked := !post.IsLiked
		return f.store.SetPostLike(postID, liked, delta(liked))
	default:
		c, ok := f.store.Comment(postID, commentID)
		if !ok {
			return feed.ErrCommentNotFound
		}
		liked := !c.IsLiked
		return f.store.SetCommentLike(postID, commentID, liked, delta(liked))
	}
}

// Register signs the viewer up for the event and reloads the feed once the
// backend agrees.
func (f *Facade) Register(ctx context.Context) optimistic.Outcome {
	return f.membership(ctx, "register", 1, f.writer.Register)
}

func (f *Facade) Unregister(ctx context.Context) optimistic.Outcome {
	return f.membership(ctx, "unregister", -1, f.writer.Unregister)
}

func (f *Facade) membership(ctx context.Context, name string, delta int, remote func(context.Context, string) (domain.ModerationResult, error)) optimistic.Outcome {
	eventID, out, ok := f.writable()
	if !ok {
		return out
	}
	return f.coord.Perform(ctx, optimistic.Mutation{
		Name:    name,
		Capture: func() (feed.Snapshot, error) { return f.store.CaptureMembership(), nil },
		Apply: func() error {
			f.store.AdjustMemberCount(delta)
			return nil
		},
		Remote: func(ctx context.Context) (domain.ModerationResult, error) {
			return remote(ctx, eventID)
		},
		OnSuccess: func(ctx context.Context, _ optimistic.Outcome) { f.refresh(ctx) },
	})
}

// writable checks that a viewer is signed in and the feed has been loaded.
func (f *Facade) writable() (string, optimistic.Outcome, bool) {
	if !f.viewer.Authenticated() {
		return "", optimistic.Failed(optimistic.KindForbidden, ErrAuthRequired), false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sync.State() == feedsync.Idle {
		return "", optimistic.Failed(optimistic.KindValidation, ErrFeedNotLoaded), false
	}
	return f.store.EventID(), optimistic.Outcome{}, true
}

func (f *Facade) allowedOnPost(postID string, allowed func(domain.ActionPolicy) bool) (optimistic.Outcome, bool) {
	f.mu.Lock()
	post, found := f.store.Post(postID)
	f.mu.Unlock()
	if !found {
		return optimistic.Failed(optimistic.KindNotFound, feed.ErrPostNotFound), false
	}
	return checkPolicy(domain.CalculatePostPolicy(post, f.viewer), allowed)
}

func (f *Facade) allowedOnComment(commentID string, allowed func(domain.ActionPolicy) bool) (string, optimistic.Outcome, bool) {
	f.mu.Lock()
	postID, found := f.store.CommentOwner(commentID)
	c, _ := f.store.Comment(postID, commentID)
	f.mu.Unlock()
	if !found {
		return "", optimistic.Failed(optimistic.KindNotFound, feed.ErrCommentNotFound), false
	}
	out, ok := checkPolicy(domain.CalculateCommentPolicy(c, f.viewer), allowed)
	return postID, out, ok
}

func checkPolicy(p domain.ActionPolicy, allowed func(domain.ActionPolicy) bool) (optimistic.Outcome, bool) {
	switch {
	case p.Reason == "auth_required":
		return optimistic.Failed(optimistic.KindForbidden, ErrAuthRequired), false
	case p.Reason == "pending_sync":
		return optimistic.Failed(optimistic.KindPending, ErrPendingSync), false
	case !allowed(p):
		return optimistic.Failed(optimistic.KindForbidden, ErrNotAllowed), false
	}
	return optimistic.Outcome{}, true
}

func checkContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if err := validate.Struct(contentInput{Content: content}); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 && ve[0].Tag() == "max" {
			return "", ErrContentTooLong
		}
		return "", ErrContentRequired
	}
	return content, nil
}

// temporaryID is a millisecond timestamp, bumped so two ids never collide.
func (f *Facade) temporaryID(now time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := now.UnixMilli()
	if id <= f.lastID {
		id = f.lastID + 1
	}
	f.lastID = id
	return "tmp-" + strconv.FormatInt(id, 10)
}

func (f *Facade) refresh(ctx context.Context) {
	if err := f.sync.Refresh(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("feed_refresh_failed")
	}
}

func (f *Facade) refreshComments(ctx context.Context, postID string) {
	if err := f.sync.RefreshComments(ctx, postID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("post_id", postID).Msg("comment_refresh_failed")
	}
}
