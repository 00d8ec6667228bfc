package gradebook

import (
	"time"

	"gorm.io/datatypes"
)

// Entry is the denormalized grade summary for one learner in one course.
type Entry struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   int64  `gorm:"column:user_id;not null;uniqueIndex:idx_gradebook_user_course,priority:1" json:"user_id"`
	CourseID string `gorm:"column:course_id;type:varchar(255);not null;index;uniqueIndex:idx_gradebook_user_course,priority:2" json:"course_id"`

	Grade         float64 `gorm:"column:grade;not null;default:0;index" json:"grade"`
	ProformaGrade float64 `gorm:"column:proforma_grade;not null;default:0" json:"proforma_grade"`

	// Opaque engine output, stored verbatim.
	ProgressSummary datatypes.JSON `gorm:"column:progress_summary;type:text" json:"progress_summary"`
	GradeSummary    datatypes.JSON `gorm:"column:grade_summary;type:text" json:"grade_summary"`
	GradingPolicy   datatypes.JSON `gorm:"column:grading_policy;type:text" json:"grading_policy"`

	CreatedAt  time.Time `gorm:"column:created;autoCreateTime" json:"created"`
	ModifiedAt time.Time `gorm:"column:modified;autoUpdateTime" json:"modified"`

	// PresaveLeaderboardRank is set by the pre-save leaderboard hook and read
	// by the post-save hook. Nil means no rank was computed.
	PresaveLeaderboardRank *int `gorm:"-" json:"-"`
}

func (Entry) TableName() string { return "gradebook_studentgradebook" }
