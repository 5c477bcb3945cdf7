package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/optimistic"
	"github.com/volunteerhub/feed-bff/internal/social"
	"github.com/volunteerhub/feed-bff/middleware"
)

// Sessions hands out the facade a viewer works with on one event.
type Sessions interface {
	Get(eventID string, viewer domain.Viewer, clientID string) *social.Facade
}

type FeedHandler struct {
	sessions Sessions
}

func NewFeedHandler(sessions Sessions) *FeedHandler {
	return &FeedHandler{sessions: sessions}
}

type contentRequest struct {
	Content string `json:"content"`
}

type likeRequest struct {
	TargetType domain.TargetType `json:"targetType"`
	TargetID   string            `json:"targetId"`
}

// OutcomeBody is the wire form of a write outcome.
type OutcomeBody struct {
	OK       bool            `json:"ok"`
	Kind     optimistic.Kind `json:"kind"`
	Message  string          `json:"message,omitempty"`
	TargetID string          `json:"targetId,omitempty"`
}

type MutationResponse struct {
	Outcome OutcomeBody `json:"outcome"`
	Feed    social.View `json:"feed"`
}

func (h *FeedHandler) facade(r *http.Request) *social.Facade {
	return h.sessions.Get(chi.URLParam(r, "eventID"), middleware.GetViewer(r.Context()), clientID(r))
}

// clientID accepts only UUIDs so a client cannot pick another screen's key.
func clientID(r *http.Request) string {
	id, err := uuid.Parse(r.Header.Get(middleware.HeaderFeedSession))
	if err != nil {
		return ""
	}
	return id.String()
}

// shared reports whether the request lands on the facade every anonymous
// viewer of the event uses. Page reads must not move that facade.
func shared(r *http.Request) bool {
	return !middleware.GetViewer(r.Context()).Authenticated() && clientID(r) == ""
}

// loaded returns the viewer's facade with its first page fetched, or answers
// the request itself and returns nil.
func (h *FeedHandler) loaded(w http.ResponseWriter, r *http.Request) *social.Facade {
	f := h.facade(r)
	if err := f.EnsureLoaded(r.Context()); err != nil {
		handleDownstreamError(w, r, err, f.Snapshot())
		return nil
	}
	return f
}

func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	if f := h.loaded(w, r); f != nil {
		respond(w, r, http.StatusOK, f.Snapshot())
	}
}

func (h *FeedHandler) Reload(w http.ResponseWriter, r *http.Request) {
	f := h.facade(r)
	h.read(w, r, f, f.LoadFeed(r.Context(), f.EventID()))
}

func (h *FeedHandler) Retry(w http.ResponseWriter, r *http.Request) {
	f := h.facade(r)
	h.read(w, r, f, f.Retry(r.Context()))
}

func (h *FeedHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	f := h.loaded(w, r)
	if f == nil {
		return
	}
	if shared(r) {
		v, err := f.PeekPostPage(r.Context(), page)
		h.render(w, r, v, err)
		return
	}
	h.read(w, r, f, f.ChangePostPage(r.Context(), page))
}

func (h *FeedHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	f := h.loaded(w, r)
	if f == nil {
		return
	}
	postID := chi.URLParam(r, "postID")
	if shared(r) {
		v, err := f.PeekCommentPage(r.Context(), postID, page)
		h.render(w, r, v, err)
		return
	}
	h.read(w, r, f, f.ChangeCommentPage(r.Context(), postID, page))
}

func (h *FeedHandler) RetryComments(w http.ResponseWriter, r *http.Request) {
	f := h.loaded(w, r)
	if f == nil {
		return
	}
	h.read(w, r, f, f.RetryComments(r.Context(), chi.URLParam(r, "postID")))
}

func (h *FeedHandler) read(w http.ResponseWriter, r *http.Request, f *social.Facade, err error) {
	h.render(w, r, f.Snapshot(), err)
}

func (h *FeedHandler) render(w http.ResponseWriter, r *http.Request, v social.View, err error) {
	if err != nil {
		handleDownstreamError(w, r, err, v)
		return
	}
	respond(w, r, http.StatusOK, v)
}

func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decode(w, r, &req) {
		return
	}
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.CreatePost(ctx, req.Content)
	})
}

func (h *FeedHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decode(w, r, &req) {
		return
	}
	postID := chi.URLParam(r, "postID")
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.EditPost(ctx, postID, req.Content)
	})
}

func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.DeletePost(ctx, postID)
	})
}

func (h *FeedHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decode(w, r, &req) {
		return
	}
	postID := chi.URLParam(r, "postID")
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.CreateComment(ctx, postID, req.Content)
	})
}

func (h *FeedHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decode(w, r, &req) {
		return
	}
	commentID := chi.URLParam(r, "commentID")
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.EditComment(ctx, commentID, req.Content)
	})
}

func (h *FeedHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	postID, commentID := chi.URLParam(r, "postID"), chi.URLParam(r, "commentID")
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.DeleteComment(ctx, postID, commentID)
	})
}

func (h *FeedHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if !decode(w, r, &req) {
		return
	}
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.ToggleLike(ctx, req.TargetID, req.TargetType)
	})
}

func (h *FeedHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.Register(ctx)
	})
}

func (h *FeedHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, func(ctx context.Context, f *social.Facade) optimistic.Outcome {
		return f.Unregister(ctx)
	})
}

func (h *FeedHandler) write(w http.ResponseWriter, r *http.Request, do func(context.Context, *social.Facade) optimistic.Outcome) {
	f := h.loaded(w, r)
	if f == nil {
		return
	}
	out := do(r.Context(), f)

	resp := MutationResponse{
		Outcome: OutcomeBody{OK: out.OK, Kind: out.Kind, Message: out.Message, TargetID: out.TargetID},
		Feed:    f.Snapshot(),
	}
	status, code := outcomeStatus(out.Kind)
	if out.OK {
		respond(w, r, status, resp)
		return
	}
	sendErrorWithData(w, r, code, out.Message, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		sendError(w, r, "validation_failed", "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func pageParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 0 {
		sendError(w, r, "validation_failed", "page must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return page, true
}
