package models

// UserStats mirrors activity counts for a user. The counters are maintained by
// increments issued alongside each causing action, never recomputed from the
// source records, so they are best-effort rather than transactionally exact
// across every path. Fields live at the top level of the user document so the
// store can increment them atomically.
type UserStats struct {
	PostsCount       int64 `json:"postsCount"`
	ReviewsCount     int64 `json:"reviewsCount"`
	DiscussionsCount int64 `json:"discussionsCount"`
	EmotionsCount    int64 `json:"emotionsCount"`
	LikesReceived    int64 `json:"likesReceived"`
	CommentsReceived int64 `json:"commentsReceived"`
}

// User is the locally mirrored profile of an externally managed identity.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	UserStats
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// StatFieldForPostType maps a post type to the user stat counter it bumps, in
// addition to postsCount. General posts bump no type-specific counter.
func StatFieldForPostType(postType string) string {
	switch postType {
	case PostTypeReview:
		return "reviewsCount"
	case PostTypeDiscussion:
		return "discussionsCount"
	case PostTypeEmotion:
		return "emotionsCount"
	}
	return ""
}
