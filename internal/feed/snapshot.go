package feed

import (
	"slices"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/pagewindow"
)

// Snapshot is a value copy of the slice of a Store that one optimistic change
// touches. Restore writes it back and reports whether it did; a snapshot taken
// before the page was rebuilt by a fetch restores nothing.
type Snapshot interface {
	Restore(s *Store) bool
}

type likeSnapshot struct {
	generation uint64
	target     domain.TargetType
	postID     string
	commentID  string
	liked      bool
	count      int
}

// CaptureLike records the like state of an event, post or comment.
func (s *Store) CaptureLike(target domain.TargetType, postID, commentID string) (Snapshot, error) {
	snap := likeSnapshot{generation: s.generation, target: target, postID: postID, commentID: commentID}
	switch target {
	case domain.TargetEvent:
		snap.liked, snap.count = s.event.IsLiked, s.event.LikeCount
	case domain.TargetPost:
		i := s.postIndex(postID)
		if i < 0 {
			return nil, ErrPostNotFound
		}
		snap.liked, snap.count = s.posts[i].IsLiked, s.posts[i].LikeCount
	case domain.TargetComment:
		p, c := s.commentIndex(postID, commentID)
		if p < 0 {
			return nil, ErrPostNotFound
		}
		if c < 0 {
			return nil, ErrCommentNotFound
		}
		cm := s.posts[p].Comments[c]
		snap.liked, snap.count = cm.IsLiked, cm.LikeCount
	}
	return snap, nil
}

func (l likeSnapshot) Restore(s *Store) bool {
	if s.generation != l.generation {
		return false
	}
	switch l.target {
	case domain.TargetEvent:
		s.event.IsLiked, s.event.LikeCount = l.liked, l.count
	case domain.TargetPost:
		i := s.postIndex(l.postID)
		if i < 0 {
			return false
		}
		s.posts[i].IsLiked, s.posts[i].LikeCount = l.liked, l.count
	case domain.TargetComment:
		p, c := s.commentIndex(l.postID, l.commentID)
		if c < 0 {
			return false
		}
		s.posts[p].Comments[c].IsLiked, s.posts[p].Comments[c].LikeCount = l.liked, l.count
	}
	return true
}

// postInsertSnapshot undoes a locally created post: the post goes away if the
// page had room for it and the window loses the element either way.
type postInsertSnapshot struct {
	generation uint64
	postID     string
}

// CapturePostInsert records the undo of creating postID.
func (s *Store) CapturePostInsert(postID string) Snapshot {
	return postInsertSnapshot{generation: s.generation, postID: postID}
}

func (pi postInsertSnapshot) Restore(s *Store) bool {
	if s.generation != pi.generation {
		return false
	}
	if i := s.postIndex(pi.postID); i >= 0 {
		s.posts = slices.Delete(s.posts, i, i+1)
		delete(s.commentGen, pi.postID)
	}
	s.window = pagewindow.RecomputeAfterDelete(s.window)
	return true
}

// postRemovalSnapshot undoes a local delete by putting the post back where it
// was and giving the window its element back.
type postRemovalSnapshot struct {
	generation uint64
	post       domain.Post
	index      int
	page       int
}

// CapturePostRemoval records postID and its position before it is removed.
func (s *Store) CapturePostRemoval(postID string) (Snapshot, error) {
	i := s.postIndex(postID)
	if i < 0 {
		return nil, ErrPostNotFound
	}
	return postRemovalSnapshot{
		generation: s.generation,
		post:       s.posts[i].Clone(),
		index:      i,
		page:       s.window.Page,
	}, nil
}

func (pr postRemovalSnapshot) Restore(s *Store) bool {
	if s.generation != pr.generation || s.postIndex(pr.post.ID) >= 0 {
		return false
	}
	s.posts = slices.Insert(s.posts, min(pr.index, len(s.posts)), pr.post.Clone())
	s.window = unclamp(pagewindow.RecomputeAfterInsert(s.window, 0), pr.page)
	// A create may have taken the freed slot; its post moves to the next page.
	if len(s.posts) > s.window.Size {
		dropped := s.posts[len(s.posts)-1].ID
		s.posts = s.posts[:s.window.Size]
		delete(s.commentGen, dropped)
	}
	return true
}

// commentInsertSnapshot is postInsertSnapshot for one post's comment page.
type commentInsertSnapshot struct {
	generation        uint64
	commentGeneration uint64
	postID            string
	commentID         string
}

// CaptureCommentInsert records the undo of creating commentID under postID.
func (s *Store) CaptureCommentInsert(postID, commentID string) (Snapshot, error) {
	if s.postIndex(postID) < 0 {
		return nil, ErrPostNotFound
	}
	return commentInsertSnapshot{
		generation:        s.generation,
		commentGeneration: s.commentGen[postID],
		postID:            postID,
		commentID:         commentID,
	}, nil
}

func (ci commentInsertSnapshot) Restore(s *Store) bool {
	if s.generation != ci.generation || s.commentGen[ci.postID] != ci.commentGeneration {
		return false
	}
	p, c := s.commentIndex(ci.postID, ci.commentID)
	if p < 0 {
		return false
	}
	if c >= 0 {
		s.posts[p].Comments = slices.Delete(s.posts[p].Comments, c, c+1)
	}
	s.posts[p].CommentWindow = pagewindow.RecomputeAfterDelete(s.posts[p].CommentWindow)
	return true
}

// commentRemovalSnapshot is postRemovalSnapshot for one post's comment page.
type commentRemovalSnapshot struct {
	generation        uint64
	commentGeneration uint64
	postID            string
	comment           domain.Comment
	index             int
	page              int
}

// CaptureCommentRemoval records commentID and its position before it is
// removed.
func (s *Store) CaptureCommentRemoval(postID, commentID string) (Snapshot, error) {
	p, c := s.commentIndex(postID, commentID)
	if p < 0 {
		return nil, ErrPostNotFound
	}
	if c < 0 {
		return nil, ErrCommentNotFound
	}
	return commentRemovalSnapshot{
		generation:        s.generation,
		commentGeneration: s.commentGen[postID],
		postID:            postID,
		comment:           s.posts[p].Comments[c],
		index:             c,
		page:              s.posts[p].CommentWindow.Page,
	}, nil
}

func (cr commentRemovalSnapshot) Restore(s *Store) bool {
	if s.generation != cr.generation || s.commentGen[cr.postID] != cr.commentGeneration {
		return false
	}
	p, c := s.commentIndex(cr.postID, cr.comment.ID)
	if p < 0 || c >= 0 {
		return false
	}
	post := &s.posts[p]
	post.Comments = slices.Insert(post.Comments, min(cr.index, len(post.Comments)), cr.comment)
	post.CommentWindow = unclamp(pagewindow.RecomputeAfterInsert(post.CommentWindow, 0), cr.page)
	if len(post.Comments) > post.CommentWindow.Size {
		post.Comments = post.Comments[:post.CommentWindow.Size]
	}
	return true
}

// unclamp moves w back to page when a delete had clamped it away and page
// exists again.
func unclamp(w pagewindow.Window, page int) pagewindow.Window {
	if w.Page < page && pagewindow.InBounds(w, page) {
		return pagewindow.New(page, w.Size, w.TotalElements)
	}
	return w
}

type contentSnapshot struct {
	generation uint64
	postID     string
	commentID  string
	content    string
}

// CaptureContent records the body of a post, or of a comment when commentID
// is set.
func (s *Store) CaptureContent(postID, commentID string) (Snapshot, error) {
	snap := contentSnapshot{generation: s.generation, postID: postID, commentID: commentID}
	if commentID == "" {
		i := s.postIndex(postID)
		if i < 0 {
			return nil, ErrPostNotFound
		}
		snap.content = s.posts[i].Content
		return snap, nil
	}
	p, c := s.commentIndex(postID, commentID)
	if p < 0 {
		return nil, ErrPostNotFound
	}
	if c < 0 {
		return nil, ErrCommentNotFound
	}
	snap.content = s.posts[p].Comments[c].Content
	return snap, nil
}

func (cs contentSnapshot) Restore(s *Store) bool {
	if s.generation != cs.generation {
		return false
	}
	if cs.commentID == "" {
		return s.UpdatePostContent(cs.postID, cs.content) == nil
	}
	return s.UpdateCommentContent(cs.postID, cs.commentID, cs.content) == nil
}

type membershipSnapshot struct {
	generation uint64
	members    int
}

// CaptureMembership records the event's member count.
func (s *Store) CaptureMembership() Snapshot {
	return membershipSnapshot{generation: s.generation, members: s.event.MemberCount}
}

func (ms membershipSnapshot) Restore(s *Store) bool {
	if s.generation != ms.generation {
		return false
	}
	s.event.MemberCount = ms.members
	return true
}
