package models

// Activity kinds that reward companion experience.
const (
	ActivityReview     = "review"
	ActivityDiscussion = "discussion"
	ActivityEmotion    = "emotion"
)

// Experience points granted per rewarded activity.
const (
	ExperienceReview     = 20
	ExperienceDiscussion = 15
	ExperienceEmotion    = 10
)

// ExperiencePerLevel is the amount of experience per companion level.
const ExperiencePerLevel = 100

// CatStats counts the rewarded activities a companion has absorbed, by kind.
type CatStats struct {
	Reviews     int64 `json:"reviews"`
	Discussions int64 `json:"discussions"`
	Emotions    int64 `json:"emotions"`
}

// Cat is a per-user gamified companion. Level is always recomputed from
// Experience (LevelForExperience); the two are never set independently.
// MaxExperience is a display constant and is not enforced.
type Cat struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	Name          string   `json:"name"`
	Emoji         string   `json:"emoji"`
	Level         int64    `json:"level"`
	Type          string   `json:"type"`
	Experience    int64    `json:"experience"`
	MaxExperience int64    `json:"maxExperience"`
	Description   string   `json:"description"`
	Specialty     string   `json:"specialty"`
	Achievements  []string `json:"achievements"`
	Stats         CatStats `json:"stats"`
	CreatedAt     int64    `json:"createdAt"`
	UpdatedAt     int64    `json:"updatedAt"`
}

// CatUpdate is the explicit set of companion fields a caller may change.
// Experience, level and stats move only through activity grants.
type CatUpdate struct {
	Name        *string `json:"name,omitempty"`
	Emoji       *string `json:"emoji,omitempty"`
	Description *string `json:"description,omitempty"`
	Specialty   *string `json:"specialty,omitempty"`
}

// Fields returns the non-nil updates as document fields.
func (u CatUpdate) Fields() map[string]any {
	fields := map[string]any{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Emoji != nil {
		fields["emoji"] = *u.Emoji
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.Specialty != nil {
		fields["specialty"] = *u.Specialty
	}
	return fields
}

// LevelForExperience derives the companion level from total experience.
func LevelForExperience(experience int64) int64 {
	return experience/ExperiencePerLevel + 1
}

// ExperienceForActivity maps an activity kind to the points it grants.
// Unknown kinds grant nothing.
func ExperienceForActivity(kind string) int64 {
	switch kind {
	case ActivityReview:
		return ExperienceReview
	case ActivityDiscussion:
		return ExperienceDiscussion
	case ActivityEmotion:
		return ExperienceEmotion
	}
	return 0
}
