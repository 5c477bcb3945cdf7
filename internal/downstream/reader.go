package downstream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/pagewindow"
)

var ErrNotFound = errors.New("resource_not_found")

const pageInfoFields = `pageInfo { page size totalElements totalPages hasNext hasPrevious }`

const authorFields = `createBy { userId username fullName avatarId }`

const commentFields = `commentId content createdAt updatedAt likeCount ` + authorFields

const getEventQuery = `query GetEvent($eventId: ID!, $postPage: Int!, $postSize: Int!, $commentSize: Int!) {
  getEvent(eventId: $eventId) {
    eventId eventName eventDescription eventLocation createdAt updatedAt likeCount
    ` + authorFields + `
    listPost(page: $postPage, size: $postSize) {
      ` + pageInfoFields + `
      content {
        postId content createdAt updatedAt likeCount
        ` + authorFields + `
        listComment(page: 0, size: $commentSize) {
          ` + pageInfoFields + `
          content { ` + commentFields + ` }
        }
      }
    }
  }
}`

const getPostCommentsQuery = `query GetPostComments($postId: ID!, $page: Int!, $size: Int!) {
  getPost(postId: $postId) {
    postId
    listComment(page: $page, size: $size) {
      ` + pageInfoFields + `
      content { ` + commentFields + ` }
    }
  }
}`

type wireAuthor struct {
	UserID   ID     `json:"userId"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	AvatarID ID     `json:"avatarId"`
}

type wireComment struct {
	CommentID ID          `json:"commentId"`
	Content   string      `json:"content"`
	CreatedAt string      `json:"createdAt"`
	UpdatedAt string      `json:"updatedAt"`
	LikeCount int         `json:"likeCount"`
	CreateBy  *wireAuthor `json:"createBy"`
}

type wireCommentList struct {
	PageInfo pagewindow.Window `json:"pageInfo"`
	Content  []wireComment     `json:"content"`
}

type wirePost struct {
	PostID      ID               `json:"postId"`
	Content     string           `json:"content"`
	CreatedAt   string           `json:"createdAt"`
	UpdatedAt   string           `json:"updatedAt"`
	LikeCount   int              `json:"likeCount"`
	CreateBy    *wireAuthor      `json:"createBy"`
	ListComment *wireCommentList `json:"listComment"`
}

type wirePostList struct {
	PageInfo pagewindow.Window `json:"pageInfo"`
	Content  []wirePost        `json:"content"`
}

// Optional fields are read when the backend sends them; the query does not
// ask for them.
type wireEvent struct {
	EventID          ID            `json:"eventId"`
	EventName        string        `json:"eventName"`
	EventDescription string        `json:"eventDescription"`
	EventLocation    string        `json:"eventLocation"`
	CreatedAt        string        `json:"createdAt"`
	LikeCount        int           `json:"likeCount"`
	MemberCount      int           `json:"memberCount"`
	PostCount        int           `json:"postCount"`
	Categories       []string      `json:"categories"`
	EventState       string        `json:"eventState"`
	CreateBy         *wireAuthor   `json:"createBy"`
	ListPost         *wirePostList `json:"listPost"`
}

// FeedReader loads feed pages through GraphQL and maps them to domain values.
// The read API carries no viewer-relative like state, so IsLiked is always
// false on anything it returns.
type FeedReader struct {
	gql         *GraphQLClient
	postSize    int
	commentSize int
}

func NewFeedReader(gql *GraphQLClient, postSize, commentSize int) *FeedReader {
	return &FeedReader{gql: gql, postSize: postSize, commentSize: commentSize}
}

func (r *FeedReader) PostPageSize() int    { return r.postSize }
func (r *FeedReader) CommentPageSize() int { return r.commentSize }

// FetchFeedPage loads the event and page `page` of its posts. Every post comes
// with the first page of its comments.
func (r *FeedReader) FetchFeedPage(ctx context.Context, eventID string, page int) (domain.FeedPage, error) {
	var data struct {
		GetEvent *wireEvent `json:"getEvent"`
	}
	vars := map[string]any{
		"eventId":     ID(eventID),
		"postPage":    page,
		"postSize":    r.postSize,
		"commentSize": r.commentSize,
	}
	if err := r.gql.Query(ctx, getEventQuery, vars, &data); err != nil {
		return domain.FeedPage{}, err
	}
	if data.GetEvent == nil {
		return domain.FeedPage{}, ErrNotFound
	}

	we := data.GetEvent
	out := domain.FeedPage{
		Event: domain.Event{
			ID:          string(we.EventID),
			Name:        we.EventName,
			Description: we.EventDescription,
			Location:    we.EventLocation,
			CreatedAt:   parseTime(we.CreatedAt),
			LikeCount:   we.LikeCount,
			MemberCount: we.MemberCount,
			PostCount:   we.PostCount,
			Categories:  we.Categories,
			State:       domain.EventState(strings.ToUpper(we.EventState)),
		},
		Window: pagewindow.New(page, r.postSize, 0),
		Posts:  []domain.Post{},
	}
	if out.Event.ID == "" {
		out.Event.ID = eventID
	}
	if we.CreateBy != nil {
		out.Event.CreatorID = string(we.CreateBy.UserID)
	}

	if we.ListPost != nil {
		out.Window = pagewindow.FromWire(we.ListPost.PageInfo, r.postSize)
		for _, wp := range we.ListPost.Content {
			out.Posts = append(out.Posts, r.mapPost(wp))
		}
	}
	if out.Event.PostCount == 0 {
		out.Event.PostCount = out.Window.TotalElements
	}
	return out, nil
}

// FetchCommentPage loads one page of a post's comments.
func (r *FeedReader) FetchCommentPage(ctx context.Context, postID string, page int) (domain.CommentPage, error) {
	var data struct {
		GetPost *struct {
			PostID      ID               `json:"postId"`
			ListComment *wireCommentList `json:"listComment"`
		} `json:"getPost"`
	}
	vars := map[string]any{"postId": ID(postID), "page": page, "size": r.commentSize}
	if err := r.gql.Query(ctx, getPostCommentsQuery, vars, &data); err != nil {
		return domain.CommentPage{}, err
	}
	if data.GetPost == nil {
		return domain.CommentPage{}, ErrNotFound
	}

	out := domain.CommentPage{
		PostID:   postID,
		Comments: []domain.Comment{},
		Window:   pagewindow.New(page, r.commentSize, 0),
	}
	if lc := data.GetPost.ListComment; lc != nil {
		out.Window = pagewindow.FromWire(lc.PageInfo, r.commentSize)
		for _, wc := range lc.Content {
			out.Comments = append(out.Comments, mapComment(postID, wc))
		}
	}
	return out, nil
}

func (r *FeedReader) mapPost(wp wirePost) domain.Post {
	p := domain.Post{
		ID:            string(wp.PostID),
		Content:       wp.Content,
		CreatedAt:     parseTime(wp.CreatedAt),
		UpdatedAt:     parseTime(wp.UpdatedAt),
		LikeCount:     wp.LikeCount,
		Comments:      []domain.Comment{},
		CommentWindow: pagewindow.Empty(r.commentSize),
	}
	p.AuthorID, p.AuthorDisplayName = mapAuthor(wp.CreateBy)
	if lc := wp.ListComment; lc != nil {
		p.CommentWindow = pagewindow.FromWire(lc.PageInfo, r.commentSize)
		for _, wc := range lc.Content {
			p.Comments = append(p.Comments, mapComment(p.ID, wc))
		}
	}
	return p
}

func mapComment(postID string, wc wireComment) domain.Comment {
	c := domain.Comment{
		ID:        string(wc.CommentID),
		PostID:    postID,
		Content:   wc.Content,
		CreatedAt: parseTime(wc.CreatedAt),
		UpdatedAt: parseTime(wc.UpdatedAt),
		LikeCount: wc.LikeCount,
	}
	c.AuthorID, c.AuthorDisplayName = mapAuthor(wc.CreateBy)
	return c
}

func mapAuthor(a *wireAuthor) (string, string) {
	if a == nil {
		return "", domain.Author{}.DisplayName()
	}
	author := domain.Author{
		UserID:   string(a.UserID),
		Username: a.Username,
		FullName: a.FullName,
		AvatarID: string(a.AvatarID),
	}
	return author.UserID, author.DisplayName()
}

// The backend serialises LocalDateTime without a zone.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
