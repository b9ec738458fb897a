package models

// Comment represents a single comment record as persisted: a flat row keyed by
// its owning post. Replies is derived on read by CommentRepository.BuildForest
// and is never written to storage.
type Comment struct {
	ID              string     `json:"id"`
	PostID          string     `json:"postId"`
	AuthorID        string     `json:"authorId"`
	AuthorName      string     `json:"authorName"`
	AuthorAvatar    string     `json:"authorAvatar"`
	Content         string     `json:"content"`
	Likes           int64      `json:"likes"`
	LikedBy         []string   `json:"likedBy"`
	ParentCommentID string     `json:"parentCommentId,omitempty"`
	Replies         []*Comment `json:"replies,omitempty"`
	CreatedAt       int64      `json:"createdAt"`
	UpdatedAt       int64      `json:"updatedAt"`
}

// LikedByUser reports whether userID is in the LikedBy membership set.
func (c *Comment) LikedByUser(userID string) bool {
	for _, id := range c.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// CommentUpdate is the explicit set of comment fields a caller may change.
type CommentUpdate struct {
	Content *string `json:"content,omitempty"`
}

// Fields returns the non-nil updates as document fields.
func (u CommentUpdate) Fields() map[string]any {
	fields := map[string]any{}
	if u.Content != nil {
		fields["content"] = *u.Content
	}
	return fields
}
