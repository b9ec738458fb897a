package models

// EmotionRecord is a personal mood-journal entry tied to a user and a movie
// title. It carries no denormalized counters of its own; creating one grants
// companion experience as a side effect.
type EmotionRecord struct {
	ID         string   `json:"id"`
	UserID     string   `json:"userId"`
	MovieTitle string   `json:"movieTitle"`
	Emotion    string   `json:"emotion"`
	Emoji      string   `json:"emoji"`
	Text       string   `json:"text"`
	Intensity  int      `json:"intensity"`
	Tags       []string `json:"tags"`
	CreatedAt  int64    `json:"createdAt"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// EmotionUpdate is the explicit set of emotion-record fields a caller may change.
type EmotionUpdate struct {
	Emotion   *string   `json:"emotion,omitempty"`
	Emoji     *string   `json:"emoji,omitempty"`
	Text      *string   `json:"text,omitempty"`
	Intensity *int      `json:"intensity,omitempty"`
	Tags      *[]string `json:"tags,omitempty"`
}

// Fields returns the non-nil updates as document fields.
func (u EmotionUpdate) Fields() map[string]any {
	fields := map[string]any{}
	if u.Emotion != nil {
		fields["emotion"] = *u.Emotion
	}
	if u.Emoji != nil {
		fields["emoji"] = *u.Emoji
	}
	if u.Text != nil {
		fields["text"] = *u.Text
	}
	if u.Intensity != nil {
		fields["intensity"] = *u.Intensity
	}
	if u.Tags != nil {
		fields["tags"] = *u.Tags
	}
	return fields
}
