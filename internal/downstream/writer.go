package downstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/volunteerhub/feed-bff/internal/domain"
)

// FeedWriter issues the feed's REST writes. It returns the moderation
// envelope untouched; deciding success is left to the caller.
type FeedWriter struct {
	rest *RESTClient
}

func NewFeedWriter(rest *RESTClient) *FeedWriter {
	return &FeedWriter{rest: rest}
}

type createPostRequest struct {
	EventID ID     `json:"eventId"`
	Content string `json:"content"`
}

type editPostRequest struct {
	PostID  ID     `json:"postId"`
	Content string `json:"content"`
}

type createCommentRequest struct {
	PostID  ID     `json:"postId"`
	Content string `json:"content"`
}

type editCommentRequest struct {
	CommentID ID     `json:"commentId"`
	Content   string `json:"content"`
}

type likeRequest struct {
	TargetType domain.TargetType `json:"targetType"`
	TargetID   ID                `json:"targetId"`
}

func (w *FeedWriter) CreatePost(ctx context.Context, eventID, content string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodPost, "/posts", createPostRequest{EventID: ID(eventID), Content: content})
}

func (w *FeedWriter) EditPost(ctx context.Context, postID, content string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodPut, "/posts", editPostRequest{PostID: ID(postID), Content: content})
}

func (w *FeedWriter) DeletePost(ctx context.Context, postID string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodDelete, "/posts/"+url.PathEscape(postID), nil)
}

func (w *FeedWriter) CreateComment(ctx context.Context, postID, content string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodPost, "/comments", createCommentRequest{PostID: ID(postID), Content: content})
}

func (w *FeedWriter) EditComment(ctx context.Context, commentID, content string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodPut, "/comments", editCommentRequest{CommentID: ID(commentID), Content: content})
}

func (w *FeedWriter) DeleteComment(ctx context.Context, commentID string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodDelete, "/comments/"+url.PathEscape(commentID), nil)
}

// ToggleLike flips the viewer's like on the target; the backend keeps the
// actual like state.
func (w *FeedWriter) ToggleLike(ctx context.Context, target domain.TargetType, targetID string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodPost, "/likes", likeRequest{TargetType: target, TargetID: ID(targetID)})
}

func (w *FeedWriter) Register(ctx context.Context, eventID string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodPost, "/events/"+url.PathEscape(eventID)+"/registrations", nil)
}

func (w *FeedWriter) Unregister(ctx context.Context, eventID string) (domain.ModerationResult, error) {
	return w.rest.Call(ctx, http.MethodDelete, "/events/"+url.PathEscape(eventID)+"/registrations", nil)
}
