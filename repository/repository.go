package repository

import (
	"context"
	"errors"

	"anyu/models"
)

// ErrNotFound 记录不存在，或存在但不属于当前用户
// 两种情况对调用方不可区分，handler 层统一映射为 404
var ErrNotFound = errors.New("记录不存在")

// Store 数据存储接口
// 所有权过滤在本层实现：账单查询始终限定 user_id = 调用者，
// 分类查询限定 user_id = 调用者 或 默认分类（user_id IS NULL）。
// handler 通过构造函数注入本接口，测试可替换为内存实现。
type Store interface {
	// ---- 用户 ----

	// GetUserByUsername 按用户名查找用户（用户名区分大小写）
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// GetUserByID 按ID查找用户
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	// CreateUser 创建用户，回填 UserID 与 CreatedAt
	CreateUser(ctx context.Context, user *models.User) error
	// UpdateUser 更新用户字段（密码哈希、头像）
	UpdateUser(ctx context.Context, userID string, updates map[string]interface{}) (*models.User, error)
	// ListUsers 列出所有用户（管理端）
	ListUsers(ctx context.Context) ([]models.User, error)

	// ---- 分类 ----

	// ListCategories 列出用户可见的分类：本人分类 + 默认分类，可按类型过滤
	ListCategories(ctx context.Context, userID, typeFilter string) ([]models.Category, error)
	// GetCategory 获取单个对用户可见的分类（本人或默认）
	GetCategory(ctx context.Context, id int64, userID string) (*models.Category, error)
	// ResolveCategory 解析账单中的分类引用（ID 或名称）
	// 按名称解析时限定账单类型（同名分类可能收支各有一个），
	// 先查本人分类，再查默认分类；不可见或不存在返回 ErrNotFound
	ResolveCategory(ctx context.Context, userID string, ref models.CategoryRef, ctype string) (*models.Category, error)
	// CategoryNameExists 检查用户名下是否已有同名同类型的分类
	CategoryNameExists(ctx context.Context, userID, name, ctype string) (bool, error)
	// CreateCategory 创建分类，回填 ID 与 CreatedAt
	CreateCategory(ctx context.Context, category *models.Category) error
	// UpdateCategory 更新本人分类；默认分类与他人分类均返回 ErrNotFound
	UpdateCategory(ctx context.Context, id int64, userID string, updates map[string]interface{}) (*models.Category, error)
	// DeleteCategory 删除本人分类
	DeleteCategory(ctx context.Context, id int64, userID string) error
	// CountBillsByCategory 统计用户名下引用指定分类的账单数
	CountBillsByCategory(ctx context.Context, userID string, categoryID int64) (int64, error)

	// ---- 账单 ----

	// ListBills 分页列出用户账单，返回列表与总数
	ListBills(ctx context.Context, userID string, filter models.BillFilter) ([]models.Bill, int64, error)
	// GetBill 获取用户的单条账单
	GetBill(ctx context.Context, id int64, userID string) (*models.Bill, error)
	// CreateBill 创建账单，回填 ID 与时间戳
	CreateBill(ctx context.Context, bill *models.Bill) error
	// UpdateBill 更新用户的账单，返回更新后的记录
	UpdateBill(ctx context.Context, id int64, userID string, updates map[string]interface{}) (*models.Bill, error)
	// DeleteBill 删除用户的账单
	DeleteBill(ctx context.Context, id int64, userID string) error
	// ListBillsByDateRange 列出用户指定日期范围内的全部账单（统计、导出用）
	ListBillsByDateRange(ctx context.Context, userID, dateFrom, dateTo string) ([]models.Bill, error)
}
