// Package events defines the typed events exchanged between the courseware,
// the gradebook and downstream notifiers.
package events

import "github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"

const (
	NameGradePublished     = "grade_published"
	NameScoreChanged       = "score_changed"
	NameCourseDeleted      = "course_deleted"
	NameLeaderboardEntered = "leaderboard_entered"
)

// Event is implemented by every dispatchable event.
type Event interface {
	EventName() string
}

// GradePublished is a block's raw grade publication for a learner, as sent by
// the courseware runtime. It is gated before it becomes a ScoreChanged.
type GradePublished struct {
	UserID   int64              `json:"user_id"`
	UsageKey coursekey.UsageKey `json:"usage_key"`
	Value    float64            `json:"value"`
	MaxValue float64            `json:"max_value"`
}

func (GradePublished) EventName() string { return NameGradePublished }

// ScoreChanged is published when a learner's score on a graded block changes.
type ScoreChanged struct {
	UserID    int64               `json:"user_id"`
	CourseKey coursekey.CourseKey `json:"course_key"`
	UsageKey  string              `json:"usage_key,omitempty"`
	Points    float64             `json:"points_earned,omitempty"`
	Possible  float64             `json:"points_possible,omitempty"`
}

func (ScoreChanged) EventName() string { return NameScoreChanged }

// CourseDeleted is published after a course is removed from the platform.
type CourseDeleted struct {
	CourseKey coursekey.CourseKey `json:"course_key"`
}

func (CourseDeleted) EventName() string { return NameCourseDeleted }

// LeaderboardEntered is published when a learner's grade moves them into the
// top LeaderboardSize positions of a course.
type LeaderboardEntered struct {
	UserID       int64               `json:"user_id"`
	CourseKey    coursekey.CourseKey `json:"course_key"`
	Rank         int                 `json:"rank"`
	PreviousRank int                 `json:"previous_rank"`
	Grade        float64             `json:"grade"`
}

func (LeaderboardEntered) EventName() string { return NameLeaderboardEntered }
