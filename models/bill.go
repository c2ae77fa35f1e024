package models

import "time"

// Bill 账单模型，对应 bills 表
// UserID 在创建时由认证身份写入，此后不可变更
type Bill struct {
	ID          int64     `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	CategoryID  int64     `json:"category_id"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// TableName bills 表名
func (Bill) TableName() string {
	return "bills"
}

// BillFilter 账单列表过滤条件（除 owner 之外的可选条件）
type BillFilter struct {
	CategoryID int64
	DateFrom   string // YYYY-MM-DD
	DateTo     string // YYYY-MM-DD
	Type       string
	Page       int
	PageSize   int
}

// DateLayout 账单日期格式
const DateLayout = "2006-01-02"
