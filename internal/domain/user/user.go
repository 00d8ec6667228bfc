package user

import "time"

// User mirrors the platform's auth_user table. The gradebook only reads it.
type User struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	Username    string     `gorm:"column:username;type:varchar(150);not null;uniqueIndex" json:"username"`
	Email       string     `gorm:"column:email;type:varchar(254)" json:"email"`
	IsStaff     bool       `gorm:"column:is_staff;not null;default:false" json:"is_staff"`
	IsSuperuser bool       `gorm:"column:is_superuser;not null;default:false" json:"is_superuser"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	DateJoined  time.Time  `gorm:"column:date_joined;autoCreateTime" json:"date_joined"`
	LastLogin   *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`
}

func (User) TableName() string { return "auth_user" }

// IsAdmin is true for global staff and superusers.
func (u *User) IsAdmin() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}
