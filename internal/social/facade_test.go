package social

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/downstream"
	"github.com/volunteerhub/feed-bff/internal/feedsync"
	"github.com/volunteerhub/feed-bff/internal/optimistic"
	"github.com/volunteerhub/feed-bff/internal/pagewindow"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) FetchFeedPage(ctx context.Context, eventID string, page int) (domain.FeedPage, error) {
	args := m.Called(ctx, eventID, page)
	return args.Get(0).(domain.FeedPage), args.Error(1)
}

func (m *mockReader) FetchCommentPage(ctx context.Context, postID string, page int) (domain.CommentPage, error) {
	args := m.Called(ctx, postID, page)
	return args.Get(0).(domain.CommentPage), args.Error(1)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) result(args mock.Arguments) (domain.ModerationResult, error) {
	return args.Get(0).(domain.ModerationResult), args.Error(1)
}

func (m *mockWriter) CreatePost(ctx context.Context, eventID, content string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, eventID, content))
}

func (m *mockWriter) EditPost(ctx context.Context, postID, content string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, postID, content))
}

func (m *mockWriter) DeletePost(ctx context.Context, postID string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, postID))
}

func (m *mockWriter) CreateComment(ctx context.Context, postID, content string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, postID, content))
}

func (m *mockWriter) EditComment(ctx context.Context, commentID, content string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, commentID, content))
}

func (m *mockWriter) DeleteComment(ctx context.Context, commentID string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, commentID))
}

func (m *mockWriter) ToggleLike(ctx context.Context, target domain.TargetType, targetID string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, target, targetID))
}

func (m *mockWriter) Register(ctx context.Context, eventID string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, eventID))
}

func (m *mockWriter) Unregister(ctx context.Context, eventID string) (domain.ModerationResult, error) {
	return m.result(m.Called(ctx, eventID))
}

var (
	viewer  = domain.Viewer{UserID: "7", DisplayName: "Ana"}
	success = domain.ModerationResult{Result: "SUCCESS"}
)

func makePosts(from, n int, authorID string) []domain.Post {
	posts := make([]domain.Post, n)
	for i := range posts {
		id := fmt.Sprintf("%d", from+i)
		posts[i] = domain.Post{
			ID:            id,
			Content:       "post " + id,
			AuthorID:      authorID,
			Comments:      []domain.Comment{},
			CommentWindow: pagewindow.Empty(10),
		}
	}
	return posts
}

func newFacade(t *testing.T, v domain.Viewer, page domain.FeedPage) (*Facade, *mockReader, *mockWriter) {
	t.Helper()
	r, w := &mockReader{}, &mockWriter{}
	r.On("FetchFeedPage", mock.Anything, "42", page.Window.Page).Return(page, nil).Once()

	f := New("42", v, r, w, Config{PostPageSize: 5, CommentPageSize: 10})
	f.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	require.NoError(t, f.LoadFeed(context.Background(), "42"))
	return f, r, w
}

func TestScenario_CreatePostOnFullPage(t *testing.T) {
	f, _, w := newFacade(t, viewer, domain.FeedPage{
		Event:  domain.Event{ID: "42"},
		Posts:  makePosts(1, 5, "1"),
		Window: pagewindow.New(0, 5, 5),
	})
	w.On("CreatePost", mock.Anything, "42", "hello").Return(domain.ModerationResult{Result: "SUCCESS", TargetID: "999"}, nil).Once()

	out := f.CreatePost(context.Background(), "hello")

	require.True(t, out.OK)
	assert.Equal(t, "999", out.TargetID)
	view := f.Snapshot()
	assert.Len(t, view.Posts, 5)
	assert.Equal(t, pagewindow.Window{Page: 0, Size: 5, TotalElements: 6, TotalPages: 2, HasNext: true, HasPrevious: false}, view.Window)
	w.AssertExpectations(t)
}

func TestScenario_LikeFailureRevertsExactly(t *testing.T) {
	posts := makePosts(1, 1, "1")
	posts[0].LikeCount = 3
	f, _, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 1)})
	w.On("ToggleLike", mock.Anything, domain.TargetPost, "1").Return(domain.ModerationResult{}, downstream.ErrUnavailable).Once()

	out := f.ToggleLike(context.Background(), "1", domain.TargetPost)

	assert.False(t, out.OK)
	assert.Equal(t, optimistic.KindTransport, out.Kind)
	post, _ := f.Snapshot().Post("1")
	assert.Equal(t, 3, post.LikeCount)
	assert.False(t, post.IsLiked)
}

func TestScenario_DeleteLastCommentOnPageClamps(t *testing.T) {
	posts := makePosts(1, 1, "1")
	posts[0].Comments = []domain.Comment{{ID: "c11", PostID: "1", AuthorID: "7"}}
	posts[0].CommentWindow = pagewindow.New(1, 10, 11)
	f, r, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 1)})

	w.On("DeleteComment", mock.Anything, "c11").Return(success, nil).Once()
	refetched := domain.CommentPage{PostID: "1", Window: pagewindow.New(0, 10, 10), Comments: make([]domain.Comment, 10)}
	r.On("FetchCommentPage", mock.Anything, "1", 0).Return(refetched, nil).Once()

	out := f.DeleteComment(context.Background(), "1", "c11")

	require.True(t, out.OK)
	post, _ := f.Snapshot().Post("1")
	assert.Equal(t, 10, post.CommentWindow.TotalElements)
	assert.Equal(t, 1, post.CommentWindow.TotalPages)
	assert.Equal(t, 0, post.CommentWindow.Page)
	assert.False(t, post.CommentWindow.HasPrevious)
	assert.Len(t, post.Comments, 10, "the clamped page is fetched after the delete succeeds")
	r.AssertExpectations(t)
}

func TestDeleteCommentRollback(t *testing.T) {
	posts := makePosts(1, 1, "1")
	posts[0].Comments = []domain.Comment{{ID: "c11", PostID: "1", AuthorID: "7"}}
	posts[0].CommentWindow = pagewindow.New(1, 10, 11)
	f, r, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 1)})
	before := f.Snapshot()

	w.On("DeleteComment", mock.Anything, "c11").
		Return(domain.ModerationResult{Result: "FAILED", ReasonCode: "LOCKED", Message: "thread locked"}, nil).Once()

	out := f.DeleteComment(context.Background(), "", "c11")

	assert.Equal(t, optimistic.KindRejected, out.Kind)
	assert.Equal(t, "[LOCKED] thread locked", out.Message)
	assert.Equal(t, before, f.Snapshot())
	r.AssertNotCalled(t, "FetchCommentPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePost_RoomLeftAndReconciled(t *testing.T) {
	f, _, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(1, 2, "1"), Window: pagewindow.New(0, 5, 2)})

	var pendingSeen bool
	w.On("CreatePost", mock.Anything, "42", "hello").
		Run(func(mock.Arguments) {
			p, ok := f.Snapshot().Post("tmp-1700000000000")
			pendingSeen = ok && p.Pending && p.AuthorDisplayName == "Ana"
		}).
		Return(domain.ModerationResult{Result: "SUCCESS", TargetID: "999"}, nil).Once()

	out := f.CreatePost(context.Background(), "  hello  ")

	require.True(t, out.OK)
	assert.True(t, pendingSeen)
	view := f.Snapshot()
	require.Len(t, view.Posts, 3)
	assert.Equal(t, "999", view.Posts[2].ID)
	assert.False(t, view.Posts[2].Pending)
	assert.True(t, view.Posts[2].Actions.CanEdit)
	assert.Equal(t, 3, view.Window.TotalElements)
}

func TestCreatePost_RejectedRollsBack(t *testing.T) {
	f, _, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(1, 2, "1"), Window: pagewindow.New(0, 5, 2)})
	before := f.Snapshot()
	w.On("CreatePost", mock.Anything, "42", "buy now").
		Return(domain.ModerationResult{Result: "REJECTED", ReasonCode: "SPAM", Message: "blocked"}, nil).Once()

	out := f.CreatePost(context.Background(), "buy now")

	assert.Equal(t, optimistic.KindRejected, out.Kind)
	assert.Equal(t, before, f.Snapshot())
}

func TestCreatePost_WithoutTargetIDRefetches(t *testing.T) {
	f, r, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(1, 1, "1"), Window: pagewindow.New(0, 5, 1)})
	w.On("CreatePost", mock.Anything, "42", "hello").Return(domain.ModerationResult{}, nil).Once()
	r.On("FetchFeedPage", mock.Anything, "42", 0).
		Return(domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(1, 2, "1"), Window: pagewindow.New(0, 5, 2)}, nil).Once()

	require.True(t, f.CreatePost(context.Background(), "hello").OK)

	view := f.Snapshot()
	require.Len(t, view.Posts, 2)
	assert.Equal(t, "2", view.Posts[1].ID)
	r.AssertExpectations(t)
}

func TestValidation(t *testing.T) {
	f, _, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(1, 1, "7"), Window: pagewindow.New(0, 5, 1)})
	before := f.Snapshot()

	for name, out := range map[string]optimistic.Outcome{
		"empty post":        f.CreatePost(context.Background(), "   "),
		"long post":         f.CreatePost(context.Background(), strings.Repeat("a", 5001)),
		"empty comment":     f.CreateComment(context.Background(), "1", ""),
		"empty post edit":   f.EditPost(context.Background(), "1", "\n"),
		"bad target type":   f.ToggleLike(context.Background(), "1", domain.TargetType("USER")),
		"empty comment edit": f.EditComment(context.Background(), "c1", " "),
	} {
		assert.Equal(t, optimistic.KindValidation, out.Kind, name)
		assert.False(t, out.OK, name)
	}

	assert.Equal(t, before, f.Snapshot())
	w.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything, mock.Anything)
	w.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything, mock.Anything)

	long := strings.Repeat("é", 5000)
	w.On("CreatePost", mock.Anything, "42", long).Return(success, nil).Once()
	assert.True(t, f.CreatePost(context.Background(), long).OK, "the limit counts characters, not bytes")
}

func TestPermissions(t *testing.T) {
	posts := makePosts(1, 1, "8")
	posts[0].Comments = []domain.Comment{{ID: "c1", PostID: "1", AuthorID: "8"}}
	posts[0].CommentWindow = pagewindow.New(0, 10, 1)

	t.Run("Not Owner", func(t *testing.T) {
		f, _, _ := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 1)})
		assert.Equal(t, optimistic.KindForbidden, f.EditPost(context.Background(), "1", "x").Kind)
		assert.Equal(t, optimistic.KindForbidden, f.DeletePost(context.Background(), "1").Kind)
		assert.Equal(t, optimistic.KindForbidden, f.EditComment(context.Background(), "c1", "x").Kind)
		assert.Equal(t, optimistic.KindForbidden, f.DeleteComment(context.Background(), "1", "c1").Kind)
	})

	t.Run("Admin Only Deletes Own Content", func(t *testing.T) {
		admin := domain.Viewer{UserID: "1", Role: domain.RoleAdmin}
		f, _, w := newFacade(t, admin, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 1)})
		assert.Equal(t, optimistic.KindForbidden, f.DeletePost(context.Background(), "1").Kind)
		assert.Equal(t, optimistic.KindForbidden, f.DeleteComment(context.Background(), "", "c1").Kind)
		assert.Len(t, f.Snapshot().Posts, 1)
		w.AssertNotCalled(t, "DeletePost", mock.Anything, mock.Anything)
	})

	t.Run("Anonymous", func(t *testing.T) {
		f, _, _ := newFacade(t, domain.Viewer{}, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 1)})
		assert.Equal(t, optimistic.KindForbidden, f.CreatePost(context.Background(), "hi").Kind)
		assert.Equal(t, optimistic.KindForbidden, f.ToggleLike(context.Background(), "1", domain.TargetPost).Kind)
		assert.Equal(t, optimistic.KindForbidden, f.Register(context.Background()).Kind)
	})

	t.Run("Unknown Targets", func(t *testing.T) {
		f, _, _ := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 1)})
		assert.Equal(t, optimistic.KindNotFound, f.DeletePost(context.Background(), "nope").Kind)
		assert.Equal(t, optimistic.KindNotFound, f.ToggleLike(context.Background(), "nope", domain.TargetComment).Kind)
		assert.Equal(t, optimistic.KindNotFound, f.ToggleLike(context.Background(), "41", domain.TargetEvent).Kind)
		assert.Equal(t, optimistic.KindNotFound, f.DeleteComment(context.Background(), "2", "c1").Kind)
	})
}

func TestPendingPostCannotBeTouched(t *testing.T) {
	f, _, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(1, 1, "1"), Window: pagewindow.New(0, 5, 1)})

	release := make(chan struct{})
	w.On("CreatePost", mock.Anything, "42", "hello").
		Run(func(mock.Arguments) { <-release }).
		Return(domain.ModerationResult{Result: "SUCCESS", TargetID: "999"}, nil).Once()

	done := make(chan optimistic.Outcome)
	go func() { done <- f.CreatePost(context.Background(), "hello") }()

	tmpID := "tmp-1700000000000"
	require.Eventually(t, func() bool { _, ok := f.Snapshot().Post(tmpID); return ok }, time.Second, time.Millisecond)

	assert.Equal(t, optimistic.KindPending, f.ToggleLike(context.Background(), tmpID, domain.TargetPost).Kind)
	assert.Equal(t, optimistic.KindPending, f.CreateComment(context.Background(), tmpID, "first").Kind)

	close(release)
	require.True(t, (<-done).OK)
	_, ok := f.Snapshot().Post("999")
	assert.True(t, ok)
}

func TestToggleLikeTwiceReturnsToOriginal(t *testing.T) {
	posts := makePosts(1, 1, "1")
	posts[0].Comments = []domain.Comment{{ID: "c1", PostID: "1", LikeCount: 2}}
	f, _, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42", LikeCount: 5}, Posts: posts, Window: pagewindow.New(0, 5, 1)})
	w.On("ToggleLike", mock.Anything, mock.Anything, mock.Anything).Return(success, nil)
	before := f.Snapshot()

	require.True(t, f.ToggleLike(context.Background(), "c1", domain.TargetComment).OK)
	c := f.Snapshot().Posts[0].Comments[0]
	assert.True(t, c.IsLiked)
	assert.Equal(t, 3, c.LikeCount)

	require.True(t, f.ToggleLike(context.Background(), "", domain.TargetEvent).OK)
	assert.Equal(t, 6, f.Snapshot().Event.LikeCount)

	require.True(t, f.ToggleLike(context.Background(), "c1", domain.TargetComment).OK)
	require.True(t, f.ToggleLike(context.Background(), "42", domain.TargetEvent).OK)
	assert.Equal(t, before, f.Snapshot())
	w.AssertCalled(t, "ToggleLike", mock.Anything, domain.TargetEvent, "42")
}

func TestEditCommentFindsOwningPost(t *testing.T) {
	posts := makePosts(1, 2, "1")
	posts[1].Comments = []domain.Comment{{ID: "c9", PostID: "2", AuthorID: "7", Content: "old"}}
	f, _, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 2)})
	w.On("EditComment", mock.Anything, "c9", "new").Return(success, nil).Once()

	require.True(t, f.EditComment(context.Background(), "c9", "new").OK)
	post, _ := f.Snapshot().Post("2")
	assert.Equal(t, "new", post.Comments[0].Content)
}

func TestDeletePostClampedPageRefetches(t *testing.T) {
	r, w := &mockReader{}, &mockWriter{}
	page1 := domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(6, 1, "7"), Window: pagewindow.New(1, 5, 6)}
	r.On("FetchFeedPage", mock.Anything, "42", 0).Return(domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(1, 5, "1"), Window: pagewindow.New(0, 5, 6)}, nil).Once()
	r.On("FetchFeedPage", mock.Anything, "42", 1).Return(page1, nil).Once()
	f := New("42", viewer, r, w, Config{PostPageSize: 5, CommentPageSize: 10})
	require.NoError(t, f.LoadFeed(context.Background(), "42"))
	require.NoError(t, f.ChangePostPage(context.Background(), 1))

	w.On("DeletePost", mock.Anything, "6").Return(success, nil).Once()
	r.On("FetchFeedPage", mock.Anything, "42", 0).Return(domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: makePosts(1, 5, "1"), Window: pagewindow.New(0, 5, 5)}, nil).Once()

	require.True(t, f.DeletePost(context.Background(), "6").OK)

	view := f.Snapshot()
	assert.Equal(t, 0, view.Window.Page)
	assert.Len(t, view.Posts, 5)
	assert.Equal(t, feedsync.Ready, view.State)
	r.AssertExpectations(t)
}

func TestRegisterRefreshesFeed(t *testing.T) {
	f, r, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42", MemberCount: 3}, Posts: makePosts(1, 1, "1"), Window: pagewindow.New(0, 5, 1)})
	w.On("Register", mock.Anything, "42").Return(success, nil).Once()
	r.On("FetchFeedPage", mock.Anything, "42", 0).
		Return(domain.FeedPage{Event: domain.Event{ID: "42", MemberCount: 4}, Posts: makePosts(1, 1, "1"), Window: pagewindow.New(0, 5, 1)}, nil).Once()

	require.True(t, f.Register(context.Background()).OK)
	assert.Equal(t, 4, f.Snapshot().Event.MemberCount)

	w.On("Unregister", mock.Anything, "42").Return(domain.ModerationResult{}, &downstream.StatusError{StatusCode: 409, ReasonCode: "NOT_REGISTERED", Message: "not registered"}).Once()
	out := f.Unregister(context.Background())
	assert.Equal(t, optimistic.KindTransport, out.Kind)
	assert.Equal(t, "[NOT_REGISTERED] not registered (HTTP 409)", out.Message)
	assert.Equal(t, 4, f.Snapshot().Event.MemberCount)
}

func TestWritesNeedLoadedFeed(t *testing.T) {
	f := New("42", viewer, &mockReader{}, &mockWriter{}, Config{PostPageSize: 5, CommentPageSize: 10})
	out := f.CreatePost(context.Background(), "hello")
	assert.Equal(t, optimistic.KindValidation, out.Kind)
	assert.ErrorIs(t, out.Err, ErrFeedNotLoaded)
	assert.Equal(t, feedsync.Idle, f.Snapshot().State)
}

func viewIDs(v View) []string {
	ids := []string{}
	for _, p := range v.Posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestConcurrentWrites_FailedCreateKeepsAcceptedDelete(t *testing.T) {
	f, _, w := newFacade(t, viewer, domain.FeedPage{
		Event:  domain.Event{ID: "42"},
		Posts:  makePosts(1, 3, "7"),
		Window: pagewindow.New(0, 5, 3),
	})
	started, release := make(chan struct{}), make(chan struct{})
	w.On("CreatePost", mock.Anything, "42", "hello").
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(domain.ModerationResult{}, downstream.ErrUnavailable).Once()
	w.On("DeletePost", mock.Anything, "2").Return(success, nil).Once()

	done := make(chan optimistic.Outcome)
	go func() { done <- f.CreatePost(context.Background(), "hello") }()
	<-started

	require.True(t, f.DeletePost(context.Background(), "2").OK)
	close(release)
	require.False(t, (<-done).OK)

	view := f.Snapshot()
	assert.Equal(t, []string{"1", "3"}, viewIDs(view))
	assert.Equal(t, pagewindow.New(0, 5, 2), view.Window)
	w.AssertExpectations(t)
}

func TestConcurrentWrites_FailedDeleteKeepsAcceptedCreate(t *testing.T) {
	f, _, w := newFacade(t, viewer, domain.FeedPage{
		Event:  domain.Event{ID: "42"},
		Posts:  makePosts(1, 3, "7"),
		Window: pagewindow.New(0, 5, 3),
	})
	started, release := make(chan struct{}), make(chan struct{})
	w.On("DeletePost", mock.Anything, "2").
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(domain.ModerationResult{}, downstream.ErrUnavailable).Once()
	w.On("CreatePost", mock.Anything, "42", "hello").Return(domain.ModerationResult{Result: "SUCCESS", TargetID: "999"}, nil).Once()

	done := make(chan optimistic.Outcome)
	go func() { done <- f.DeletePost(context.Background(), "2") }()
	<-started

	created := f.CreatePost(context.Background(), "hello")
	require.True(t, created.OK)
	require.Equal(t, "999", created.TargetID)
	close(release)
	require.False(t, (<-done).OK)

	view := f.Snapshot()
	assert.Equal(t, []string{"1", "2", "3", "999"}, viewIDs(view))
	assert.Equal(t, pagewindow.New(0, 5, 4), view.Window)
	post, ok := view.Post("999")
	require.True(t, ok)
	assert.False(t, post.Pending)
	w.AssertExpectations(t)
}

func TestConcurrentWrites_CommentsOnOnePost(t *testing.T) {
	posts := makePosts(1, 1, "1")
	posts[0].Comments = []domain.Comment{
		{ID: "c1", PostID: "1", AuthorID: "7"},
		{ID: "c2", PostID: "1", AuthorID: "7"},
	}
	posts[0].CommentWindow = pagewindow.New(0, 10, 2)
	f, _, w := newFacade(t, viewer, domain.FeedPage{Event: domain.Event{ID: "42"}, Posts: posts, Window: pagewindow.New(0, 5, 1)})

	started, release := make(chan struct{}), make(chan struct{})
	w.On("DeleteComment", mock.Anything, "c1").
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(domain.ModerationResult{}, downstream.ErrUnavailable).Once()
	w.On("CreateComment", mock.Anything, "1", "hi").Return(domain.ModerationResult{Result: "SUCCESS", TargetID: "c9"}, nil).Once()

	done := make(chan optimistic.Outcome)
	go func() { done <- f.DeleteComment(context.Background(), "1", "c1") }()
	<-started

	require.True(t, f.CreateComment(context.Background(), "1", "hi").OK)
	close(release)
	require.False(t, (<-done).OK)

	post, _ := f.Snapshot().Post("1")
	ids := []string{}
	for _, c := range post.Comments {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"c1", "c2", "c9"}, ids)
	assert.Equal(t, pagewindow.New(0, 10, 3), post.CommentWindow)
	w.AssertExpectations(t)
}
