package models

import "time"

const (
	// TypeIncome 收入
	TypeIncome = "income"
	// TypeOutcome 支出
	TypeOutcome = "outcome"
)

// ValidBillType 校验账单/分类类型
func ValidBillType(t string) bool {
	return t == TypeIncome || t == TypeOutcome
}

// Category 分类模型，对应 categories 表
// UserID 为 nil 表示默认分类：所有用户可见可引用，但不可修改、不可删除
type Category struct {
	ID        int64     `json:"id,omitempty"`
	UserID    *string   `json:"user_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// TableName categories 表名
func (Category) TableName() string {
	return "categories"
}

// OwnedBy 分类是否归属指定用户
func (c *Category) OwnedBy(userID string) bool {
	return c.UserID != nil && *c.UserID == userID
}

// VisibleTo 分类对指定用户是否可见（本人或默认分类）
func (c *Category) VisibleTo(userID string) bool {
	return c.UserID == nil || *c.UserID == userID
}

// CategoryRef 账单中对分类的引用：按 ID 或按名称，二者必须且只能提供其一
// 按名称解析时先查本人分类，再查默认分类
type CategoryRef struct {
	ID   *int64
	Name string
}

// Valid 引用是否恰好指定了一种方式
func (r CategoryRef) Valid() bool {
	return (r.ID != nil) != (r.Name != "")
}
