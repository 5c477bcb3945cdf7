package domain

// ActionPolicy tells a client which controls to render for one feed item.
type ActionPolicy struct {
	CanLike    bool   `json:"canLike"`
	CanComment bool   `json:"canComment"`
	CanEdit    bool   `json:"canEdit"`
	CanDelete  bool   `json:"canDelete"`
	Reason     string `json:"reason,omitempty"`
}

// CalculatePostPolicy determines what a viewer can do with a post.
func CalculatePostPolicy(post Post, viewer Viewer) ActionPolicy {
	return calculate(post.AuthorID, post.Pending, viewer, true)
}

// CalculateCommentPolicy determines what a viewer can do with a comment.
func CalculateCommentPolicy(comment Comment, viewer Viewer) ActionPolicy {
	return calculate(comment.AuthorID, comment.Pending, viewer, false)
}

func calculate(authorID string, pending bool, viewer Viewer, commentable bool) ActionPolicy {
	// 1. Auth Gate
	if !viewer.Authenticated() {
		return ActionPolicy{Reason: "auth_required"}
	}

	// 2. Not yet acknowledged by the backend
	if pending {
		return ActionPolicy{Reason: "pending_sync"}
	}

	// 3. Only the author edits or deletes, whatever the role
	isOwner := authorID == viewer.UserID

	return ActionPolicy{
		CanLike:    true,
		CanComment: commentable,
		CanEdit:    isOwner,
		CanDelete:  isOwner,
	}
}
