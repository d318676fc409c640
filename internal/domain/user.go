package domain

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleDoctor    Role = "doctor"
	RoleSecretary Role = "secretary"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleSecretary, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	Email        string         `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	FullName     string         `gorm:"size:128" json:"fullName"`
	Role         Role           `gorm:"size:16;not null;index" json:"role"`
	IsActive     bool           `gorm:"not null;default:true" json:"isActive"`
	IsVerified   bool           `gorm:"not null;default:false" json:"isVerified"`
	LastLoginAt  *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Actor 是一次调用的身份，由鉴权中间件解析后显式传给各服务
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

type UserFilter struct {
	Query       string
	Role        Role
	WithDeleted bool
	Offset      int
	Limit       int
}
