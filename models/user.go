package models

import "time"

const (
	// RoleUser 普通用户
	RoleUser = "user"
	// RoleAdmin 管理员
	RoleAdmin = "admin"
)

// User 用户模型，对应 custom_user 表
// PostgREST 按 JSON 字段名映射列；密码哈希不对外序列化
type User struct {
	UserID       string    `json:"user_id,omitempty"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash,omitempty"`
	AvatarURL    string    `json:"avatar_url"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// PublicUser 可对外返回的用户信息（不含密码哈希）
type PublicUser struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Public 剥离凭据字段
func (u *User) Public() PublicUser {
	return PublicUser{
		UserID:    u.UserID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// TableName custom_user 表名
func (User) TableName() string {
	return "custom_user"
}
