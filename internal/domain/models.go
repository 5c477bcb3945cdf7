package domain

import (
	"time"

	"github.com/volunteerhub/feed-bff/internal/pagewindow"
)

// TargetType discriminates what a like applies to.
type TargetType string

const (
	TargetEvent   TargetType = "EVENT"
	TargetPost    TargetType = "POST"
	TargetComment TargetType = "COMMENT"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetEvent, TargetPost, TargetComment:
		return true
	}
	return false
}

type EventState string

const (
	EventPending   EventState = "PENDING"
	EventAccepted  EventState = "ACCEPTED"
	EventRejected  EventState = "REJECTED"
	EventCancelled EventState = "CANCELLED"
	EventFinished  EventState = "FINISHED"
)

type Role string

const (
	RoleVolunteer    Role = "VOLUNTEER"
	RoleEventManager Role = "EVENT_MANAGER"
	RoleAdmin        Role = "ADMIN"
)

type Event struct {
	ID          string     `json:"eventId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	CreatedAt   time.Time  `json:"createdAt"`
	CreatorID   string     `json:"creatorId,omitempty"`
	LikeCount   int        `json:"likeCount"`
	MemberCount int        `json:"memberCount"`
	PostCount   int        `json:"postCount"`
	Categories  []string   `json:"categories,omitempty"`
	State       EventState `json:"state,omitempty"`
	IsLiked     bool       `json:"isLiked"`
}

type Post struct {
	ID                string            `json:"postId"`
	Content           string            `json:"content"`
	AuthorID          string            `json:"authorId"`
	AuthorDisplayName string            `json:"authorDisplayName"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	LikeCount         int               `json:"likeCount"`
	IsLiked           bool              `json:"isLiked"`
	Pending           bool              `json:"pending,omitempty"`
	Comments          []Comment         `json:"comments"`
	CommentWindow     pagewindow.Window `json:"commentWindow"`
}

// Clone returns a copy that shares no slices with p.
func (p Post) Clone() Post {
	c := p
	if p.Comments != nil {
		c.Comments = make([]Comment, len(p.Comments))
		copy(c.Comments, p.Comments)
	}
	return c
}

type Comment struct {
	ID                string    `json:"commentId"`
	PostID            string    `json:"postId"`
	Content           string    `json:"content"`
	AuthorID          string    `json:"authorId"`
	AuthorDisplayName string    `json:"authorDisplayName"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	LikeCount         int       `json:"likeCount"`
	IsLiked           bool      `json:"isLiked"`
	Pending           bool      `json:"pending,omitempty"`
}

// Author is the createBy object of the read API.
type Author struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	AvatarID string `json:"avatarId,omitempty"`
}

func (a Author) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	if a.Username != "" {
		return a.Username
	}
	return "Anonymous"
}

// Viewer is the user the feed is rendered for.
type Viewer struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role,omitempty"`
}

func (v Viewer) Authenticated() bool { return v.UserID != "" }

func (v Viewer) Name() string {
	if v.DisplayName != "" {
		return v.DisplayName
	}
	return "You"
}

// FeedPage is one fetched page of an event feed.
type FeedPage struct {
	Event  Event
	Posts  []Post
	Window pagewindow.Window
}

// CommentPage is one fetched page of a post's comments.
type CommentPage struct {
	PostID   string
	Comments []Comment
	Window   pagewindow.Window
}

const ResultSuccess = "SUCCESS"

// ModerationResult is the envelope every REST write answers with.
type ModerationResult struct {
	Result     string `json:"result,omitempty"`
	Message    string `json:"message,omitempty"`
	ReasonCode string `json:"reasonCode,omitempty"`
	TargetID   string `json:"targetId,omitempty"`
}

// Succeeded treats a missing result as success.
func (m ModerationResult) Succeeded() bool {
	return m.Result == "" || m.Result == ResultSuccess
}
