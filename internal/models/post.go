// Package models contains data structures for the application's domain models.
package models

// Post types.
const (
	PostTypeReview     = "review"
	PostTypeDiscussion = "discussion"
	PostTypeEmotion    = "emotion"
	PostTypeGeneral    = "general"
)

// Post statuses.
const (
	PostStatusHot    = "hot"
	PostStatusNew    = "new"
	PostStatusSolved = "solved"
)

// Post represents a community feed post. The author fields are a denormalized
// snapshot taken at creation time, not a live reference to the user record.
// Likes, Comments and Views are denormalized counters maintained by atomic
// increments alongside the records they count; after any completed like toggle
// Likes equals len(LikedBy).
type Post struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	AuthorID         string   `json:"authorId"`
	AuthorName       string   `json:"authorName"`
	AuthorAvatar     string   `json:"authorAvatar"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	MovieTitle       string   `json:"movieTitle,omitempty"`
	Rating           int      `json:"rating,omitempty"`
	Emotion          string   `json:"emotion,omitempty"`
	EmotionEmoji     string   `json:"emotionEmoji,omitempty"`
	EmotionIntensity int      `json:"emotionIntensity,omitempty"`
	Tags             []string `json:"tags"`
	Likes            int64    `json:"likes"`
	LikedBy          []string `json:"likedBy"`
	Comments         int64    `json:"comments"`
	Views            int64    `json:"views"`
	IsActive         bool     `json:"isActive,omitempty"`
	Status           string   `json:"status,omitempty"`
	CreatedAt        int64    `json:"createdAt"`
	UpdatedAt        int64    `json:"updatedAt"`
}

// LikedByUser reports whether userID is in the LikedBy membership set.
func (p *Post) LikedByUser(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ValidPostType reports whether t is one of the supported post types.
func ValidPostType(t string) bool {
	switch t {
	case PostTypeReview, PostTypeDiscussion, PostTypeEmotion, PostTypeGeneral:
		return true
	}
	return false
}

// PostFilters constrains a filtered feed query. Zero values mean "no
// constraint". A post matches Tags when it carries at least one of them.
type PostFilters struct {
	Type      string   `json:"type,omitempty"`
	Status    string   `json:"status,omitempty"`
	AuthorID  string   `json:"authorId,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	SortBy    string   `json:"sortBy,omitempty"`    // createdAt | likes | comments | views
	SortOrder string   `json:"sortOrder,omitempty"` // asc | desc
}

// Empty reports whether no constraint or sort override is set.
func (f PostFilters) Empty() bool {
	return f.Type == "" && f.Status == "" && f.AuthorID == "" && len(f.Tags) == 0 &&
		f.SortBy == "" && f.SortOrder == ""
}

// PostUpdate is the explicit set of post fields a caller may change. Nil
// pointers leave the stored field untouched; unknown fields cannot be
// expressed at all.
type PostUpdate struct {
	Title            *string   `json:"title,omitempty"`
	Content          *string   `json:"content,omitempty"`
	MovieTitle       *string   `json:"movieTitle,omitempty"`
	Rating           *int      `json:"rating,omitempty"`
	Emotion          *string   `json:"emotion,omitempty"`
	EmotionEmoji     *string   `json:"emotionEmoji,omitempty"`
	EmotionIntensity *int      `json:"emotionIntensity,omitempty"`
	Tags             *[]string `json:"tags,omitempty"`
	IsActive         *bool     `json:"isActive,omitempty"`
	Status           *string   `json:"status,omitempty"`
}

// Fields returns the non-nil updates as document fields.
func (u PostUpdate) Fields() map[string]any {
	fields := map[string]any{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Content != nil {
		fields["content"] = *u.Content
	}
	if u.MovieTitle != nil {
		fields["movieTitle"] = *u.MovieTitle
	}
	if u.Rating != nil {
		fields["rating"] = *u.Rating
	}
	if u.Emotion != nil {
		fields["emotion"] = *u.Emotion
	}
	if u.EmotionEmoji != nil {
		fields["emotionEmoji"] = *u.EmotionEmoji
	}
	if u.EmotionIntensity != nil {
		fields["emotionIntensity"] = *u.EmotionIntensity
	}
	if u.Tags != nil {
		fields["tags"] = *u.Tags
	}
	if u.IsActive != nil {
		fields["isActive"] = *u.IsActive
	}
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	return fields
}
