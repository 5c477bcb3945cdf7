package social

import (
	"context"

	"github.com/samber/lo"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/feed"
	"github.com/volunteerhub/feed-bff/internal/feedsync"
	"github.com/volunteerhub/feed-bff/internal/pagewindow"
)

// View is an immutable copy of the feed for rendering.
type View struct {
	Event  domain.Event      `json:"event"`
	Posts  []PostView        `json:"posts"`
	Window pagewindow.Window `json:"postWindow"`
	State  feedsync.State    `json:"state"`
	Error  string            `json:"error,omitempty"`
	Viewer domain.Viewer     `json:"viewer"`
}

type PostView struct {
	domain.Post
	Comments     []CommentView       `json:"comments"`
	Actions      domain.ActionPolicy `json:"actions"`
	CommentState feedsync.State      `json:"commentState"`
	CommentError string              `json:"commentError,omitempty"`
}

type CommentView struct {
	domain.Comment
	Actions domain.ActionPolicy `json:"actions"`
}

// Snapshot copies the current feed state.
func (f *Facade) Snapshot() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		Event:  f.store.Event(),
		Window: f.store.Window(),
		State:  f.sync.State(),
		Viewer: f.viewer,
		Posts:  []PostView{},
	}
	if err := f.sync.Err(); err != nil {
		v.Error = err.Error()
	}

	for _, p := range f.store.Posts() {
		v.Posts = append(v.Posts, f.postView(p, f.sync.CommentState(p.ID), f.sync.CommentErr(p.ID)))
	}
	return v
}

func (f *Facade) postView(p domain.Post, state feedsync.State, err error) PostView {
	pv := PostView{
		Post:         p,
		Actions:      domain.CalculatePostPolicy(p, f.viewer),
		CommentState: state,
	}
	if err != nil {
		pv.CommentError = err.Error()
	}
	pv.Comments = f.commentViews(p.Comments)
	return pv
}

func (f *Facade) commentViews(comments []domain.Comment) []CommentView {
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentView{
			Comment: c,
			Actions: domain.CalculateCommentPolicy(c, f.viewer),
		})
	}
	return out
}

// PeekPostPage renders page of the feed without moving the facade to it, so
// screens sharing one facade cannot navigate each other. Pages outside the
// loaded window render the current page.
func (f *Facade) PeekPostPage(ctx context.Context, page int) (View, error) {
	f.mu.Lock()
	eventID, window := f.store.EventID(), f.store.Window()
	fetch := f.sync.State() != feedsync.Idle && page != window.Page && pagewindow.InBounds(window, page)
	f.mu.Unlock()

	v := f.Snapshot()
	if !fetch {
		return v, nil
	}
	fp, err := f.reader.FetchFeedPage(ctx, eventID, page)
	if err != nil {
		return v, err
	}
	v.Event, v.Window = fp.Event, fp.Window
	v.Posts = make([]PostView, 0, len(fp.Posts))
	for _, p := range fp.Posts {
		v.Posts = append(v.Posts, f.postView(p, feedsync.Ready, nil))
	}
	return v, nil
}

// PeekCommentPage is PeekPostPage for one loaded post's comments.
func (f *Facade) PeekCommentPage(ctx context.Context, postID string, page int) (View, error) {
	f.mu.Lock()
	post, found := f.store.Post(postID)
	f.mu.Unlock()
	if !found {
		return f.Snapshot(), feed.ErrPostNotFound
	}

	v := f.Snapshot()
	if post.Pending || !pagewindow.InBounds(post.CommentWindow, page) {
		return v, nil
	}
	cp, err := f.reader.FetchCommentPage(ctx, postID, page)
	if err != nil {
		return v, err
	}
	for i := range v.Posts {
		if v.Posts[i].ID == postID {
			v.Posts[i].CommentWindow = cp.Window
			v.Posts[i].Post.Comments = cp.Comments
			v.Posts[i].Comments = f.commentViews(cp.Comments)
		}
	}
	return v, nil
}

// Post returns the view of one loaded post.
func (v View) Post(postID string) (PostView, bool) {
	return lo.Find(v.Posts, func(p PostView) bool { return p.ID == postID })
}
