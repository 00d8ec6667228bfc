package gradebook

import "time"

const (
	HistoryActionCreated = "created"
	HistoryActionUpdated = "updated"
)

// History is an append-only audit row written for every Entry mutation.
type History struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64     `gorm:"column:user_id;not null;index:idx_gradebook_history_user_course,priority:1" json:"user_id"`
	CourseID      string    `gorm:"column:course_id;type:varchar(255);not null;index;index:idx_gradebook_history_user_course,priority:2" json:"course_id"`
	Action        string    `gorm:"column:action;type:varchar(16);not null" json:"action"`
	Grade         float64   `gorm:"column:grade;not null;default:0" json:"grade"`
	ProformaGrade float64   `gorm:"column:proforma_grade;not null;default:0" json:"proforma_grade"`
	CreatedAt     time.Time `gorm:"column:created;autoCreateTime;index" json:"created"`
}

func (History) TableName() string { return "gradebook_studentgradebookhistory" }

// HistoryFor snapshots an entry into a history row.
func HistoryFor(e *Entry, action string) *History {
	return &History{
		UserID:        e.UserID,
		CourseID:      e.CourseID,
		Action:        action,
		Grade:         e.Grade,
		ProformaGrade: e.ProformaGrade,
	}
}
