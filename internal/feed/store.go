// Package feed holds the loaded state of one event's social feed.
//
// A Store keeps only the current post page and, for every loaded post, its
// current comment page. It performs no I/O and takes no locks; the owner
// serialises access.
package feed

import (
	"errors"
	"slices"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/pagewindow"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
)

type Store struct {
	eventID string
	event   domain.Event
	posts   []domain.Post
	window  pagewindow.Window

	// generation changes whenever the post page is rebuilt from a fetch.
	generation uint64
	commentGen map[string]uint64
}

func NewStore(eventID string, postPageSize int) *Store {
	return &Store{
		eventID:    eventID,
		event:      domain.Event{ID: eventID},
		window:     pagewindow.Empty(postPageSize),
		commentGen: make(map[string]uint64),
	}
}

func (s *Store) EventID() string { return s.eventID }

// Reset empties the store so it can hold another event's feed.
func (s *Store) Reset(eventID string) {
	s.eventID = eventID
	s.event = domain.Event{ID: eventID}
	s.posts = nil
	s.window = pagewindow.Empty(s.window.Size)
	s.generation++
	clear(s.commentGen)
}

func (s *Store) Event() domain.Event {
	e := s.event
	e.Categories = slices.Clone(s.event.Categories)
	return e
}

func (s *Store) SetEvent(event domain.Event) {
	event.Categories = slices.Clone(event.Categories)
	s.event = event
}

func (s *Store) SetEventLike(liked bool, delta int) {
	s.event.IsLiked = liked
	s.event.LikeCount = floorZero(s.event.LikeCount + delta)
}

func (s *Store) AdjustMemberCount(delta int) {
	s.event.MemberCount = floorZero(s.event.MemberCount + delta)
}

func (s *Store) Window() pagewindow.Window { return s.window }

func (s *Store) SetWindow(w pagewindow.Window) { s.window = w }

func (s *Store) Generation() uint64 { return s.generation }

// Posts returns a deep copy of the loaded post page.
func (s *Store) Posts() []domain.Post {
	out := make([]domain.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out
}

func (s *Store) Post(postID string) (domain.Post, bool) {
	i := s.postIndex(postID)
	if i < 0 {
		return domain.Post{}, false
	}
	return s.posts[i].Clone(), true
}

func (s *Store) Comment(postID, commentID string) (domain.Comment, bool) {
	p, c := s.commentIndex(postID, commentID)
	if c < 0 {
		return domain.Comment{}, false
	}
	return s.posts[p].Comments[c], true
}

// CommentOwner finds the loaded post holding commentID.
func (s *Store) CommentOwner(commentID string) (string, bool) {
	for _, p := range s.posts {
		for _, c := range p.Comments {
			if c.ID == commentID {
				return p.ID, true
			}
		}
	}
	return "", false
}

// ReplaceAll resets the post page after a fetch.
func (s *Store) ReplaceAll(posts []domain.Post, window pagewindow.Window) {
	s.posts = make([]domain.Post, len(posts))
	for i, p := range posts {
		s.posts[i] = p.Clone()
	}
	s.window = window
	s.generation++
	clear(s.commentGen)
}

// InsertPostIfRoomElsePatchWindow appends post when the loaded page still has
// room for it and always adopts window. It reports whether post was appended.
func (s *Store) InsertPostIfRoomElsePatchWindow(post domain.Post, window pagewindow.Window) bool {
	s.window = window
	if len(s.posts) >= window.Size {
		return false
	}
	s.posts = append(s.posts, post.Clone())
	return true
}

func (s *Store) RemovePost(postID string) error {
	i := s.postIndex(postID)
	if i < 0 {
		return ErrPostNotFound
	}
	s.posts = slices.Delete(s.posts, i, i+1)
	delete(s.commentGen, postID)
	return nil
}

func (s *Store) SetPostLike(postID string, liked bool, delta int) error {
	i := s.postIndex(postID)
	if i < 0 {
		return ErrPostNotFound
	}
	s.posts[i].IsLiked = liked
	s.posts[i].LikeCount = floorZero(s.posts[i].LikeCount + delta)
	return nil
}

func (s *Store) UpdatePostContent(postID, content string) error {
	i := s.postIndex(postID)
	if i < 0 {
		return ErrPostNotFound
	}
	s.posts[i].Content = content
	return nil
}

// ReplacePostID swaps a temporary id for the id the backend assigned.
func (s *Store) ReplacePostID(tmpID, id string) error {
	i := s.postIndex(tmpID)
	if i < 0 {
		return ErrPostNotFound
	}
	s.posts[i].ID = id
	s.posts[i].Pending = false
	for j := range s.posts[i].Comments {
		s.posts[i].Comments[j].PostID = id
	}
	if g, ok := s.commentGen[tmpID]; ok {
		s.commentGen[id] = g
		delete(s.commentGen, tmpID)
	}
	return nil
}

func (s *Store) ReplacePostComments(postID string, comments []domain.Comment, window pagewindow.Window) error {
	i := s.postIndex(postID)
	if i < 0 {
		return ErrPostNotFound
	}
	s.posts[i].Comments = slices.Clone(comments)
	s.posts[i].CommentWindow = window
	s.commentGen[postID]++
	return nil
}

func (s *Store) SetCommentWindow(postID string, window pagewindow.Window) error {
	i := s.postIndex(postID)
	if i < 0 {
		return ErrPostNotFound
	}
	s.posts[i].CommentWindow = window
	return nil
}

// InsertCommentIfRoomElsePatchWindow applies the post room check to one
// post's comment page.
func (s *Store) InsertCommentIfRoomElsePatchWindow(postID string, comment domain.Comment, window pagewindow.Window) (bool, error) {
	i := s.postIndex(postID)
	if i < 0 {
		return false, ErrPostNotFound
	}
	p := &s.posts[i]
	p.CommentWindow = window
	if len(p.Comments) >= window.Size {
		return false, nil
	}
	comment.PostID = postID
	p.Comments = append(p.Comments, comment)
	return true, nil
}

func (s *Store) RemoveComment(postID, commentID string) error {
	p, c := s.commentIndex(postID, commentID)
	if p < 0 {
		return ErrPostNotFound
	}
	if c < 0 {
		return ErrCommentNotFound
	}
	s.posts[p].Comments = slices.Delete(s.posts[p].Comments, c, c+1)
	return nil
}

func (s *Store) SetCommentLike(postID, commentID string, liked bool, delta int) error {
	p, c := s.commentIndex(postID, commentID)
	if p < 0 {
		return ErrPostNotFound
	}
	if c < 0 {
		return ErrCommentNotFound
	}
	cm := &s.posts[p].Comments[c]
	cm.IsLiked = liked
	cm.LikeCount = floorZero(cm.LikeCount + delta)
	return nil
}

func (s *Store) UpdateCommentContent(postID, commentID, content string) error {
	p, c := s.commentIndex(postID, commentID)
	if p < 0 {
		return ErrPostNotFound
	}
	if c < 0 {
		return ErrCommentNotFound
	}
	s.posts[p].Comments[c].Content = content
	return nil
}

func (s *Store) ReplaceCommentID(postID, tmpID, id string) error {
	p, c := s.commentIndex(postID, tmpID)
	if p < 0 {
		return ErrPostNotFound
	}
	if c < 0 {
		return ErrCommentNotFound
	}
	s.posts[p].Comments[c].ID = id
	s.posts[p].Comments[c].Pending = false
	return nil
}

func (s *Store) postIndex(postID string) int {
	return slices.IndexFunc(s.posts, func(p domain.Post) bool { return p.ID == postID })
}

func (s *Store) commentIndex(postID, commentID string) (int, int) {
	p := s.postIndex(postID)
	if p < 0 {
		return -1, -1
	}
	c := slices.IndexFunc(s.posts[p].Comments, func(c domain.Comment) bool { return c.ID == commentID })
	return p, c
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
