package user

const (
	RoleStaff      = "staff"
	RoleInstructor = "instructor"
	RoleObserver   = "observer"
	RoleAssistant  = "assistant"
	RoleBetaTester = "beta_testers"
)

// ExclusionRoles are course roles whose holders never appear on leaderboards.
var ExclusionRoles = []string{RoleStaff, RoleInstructor, RoleObserver, RoleAssistant}

// StaffRoles are course roles that bypass closed-course restrictions.
var StaffRoles = []string{RoleStaff, RoleInstructor}

// CourseAccessRole grants a user a role scoped to a course (or a whole org
// when CourseID is empty).
type CourseAccessRole struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   int64  `gorm:"column:user_id;not null;index" json:"user_id"`
	Org      string `gorm:"column:org;type:varchar(64);not null;default:'';index" json:"org"`
	CourseID string `gorm:"column:course_id;type:varchar(255);not null;default:'';index" json:"course_id"`
	Role     string `gorm:"column:role;type:varchar(64);not null;index" json:"role"`
}

func (CourseAccessRole) TableName() string { return "student_courseaccessrole" }
