package entity

import (
	"time"
)

// User 用户实体
type User struct {
	ID           string    `json:"user_id" gorm:"primaryKey;size:36"`
	Name         string    `json:"name" gorm:"size:64;not null;uniqueIndex"`
	Role         string    `json:"role" gorm:"size:32;not null;index"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	UserGroup    string    `json:"user_group,omitempty" gorm:"size:64"`
	Note         string    `json:"note,omitempty" gorm:"type:text"`
	PasswordHash string    `json:"-" gorm:"size:128"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
