package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"anyu/models"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	// 存储调用的重试策略：最多 3 次，间隔 2 秒
	maxAttempts   = 3
	retryInterval = 2 * time.Second
	// 单次存储调用的超时上限
	callTimeout = 10 * time.Second
)

// SupabaseStore 基于 Supabase/PostgREST 的存储实现
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabaseStore 创建存储客户端
func NewSupabaseStore(url, key string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("创建存储客户端失败: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// execute 执行一次存储调用，瞬时失败时重试
func (s *SupabaseStore) execute(ctx context.Context, fn func() ([]byte, int64, error)) ([]byte, int64, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, callTimeout)
		defer cancel()
	}

	var (
		data  []byte
		count int64
		err   error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, count, err = fn()
		if err == nil {
			return data, count, nil
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}
	return nil, 0, err
}

// ownerOrDefaultFilter 分类的可见性谓词：本人分类或默认分类
func ownerOrDefaultFilter(userID string) string {
	return fmt.Sprintf("user_id.eq.%s,user_id.is.null", userID)
}

// 插入载荷不携带时间戳列，created_at/updated_at 由存储端 DEFAULT NOW() 填充
// （模型结构体上的 time.Time 零值会被序列化为公元1年，覆盖存储端默认值）

type userInsert struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	AvatarURL    string `json:"avatar_url"`
	Role         string `json:"role"`
}

type categoryInsert struct {
	UserID    *string `json:"user_id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Icon      string  `json:"icon"`
	Color     string  `json:"color"`
	IsDefault bool    `json:"is_default"`
}

type billInsert struct {
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	CategoryID  int64   `json:"category_id"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

func newUserInsert(u *models.User) userInsert {
	return userInsert{
		UserID:       u.UserID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		AvatarURL:    u.AvatarURL,
		Role:         u.Role,
	}
}

func newCategoryInsert(c *models.Category) categoryInsert {
	return categoryInsert{
		UserID:    c.UserID,
		Name:      c.Name,
		Type:      c.Type,
		Icon:      c.Icon,
		Color:     c.Color,
		IsDefault: c.IsDefault,
	}
}

func newBillInsert(b *models.Bill) billInsert {
	return billInsert{
		UserID:      b.UserID,
		Amount:      b.Amount,
		Type:        b.Type,
		CategoryID:  b.CategoryID,
		Description: b.Description,
		Date:        b.Date,
	}
}

// ---- 用户 ----

func (s *SupabaseStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("custom_user").
			Select("*", "", false).
			Eq("username", username).
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return decodeOne[models.User](data)
}

func (s *SupabaseStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("custom_user").
			Select("*", "", false).
			Eq("user_id", userID).
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return decodeOne[models.User](data)
}

func (s *SupabaseStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("custom_user").
			Insert(newUserInsert(user), false, "", "", "").
			Execute()
	})
	if err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}
	created, err := decodeOne[models.User](data)
	if err == nil {
		user.CreatedAt = created.CreatedAt
	}
	return nil
}

func (s *SupabaseStore) UpdateUser(ctx context.Context, userID string, updates map[string]interface{}) (*models.User, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("custom_user").
			Update(updates, "", "").
			Eq("user_id", userID).
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("更新用户失败: %w", err)
	}
	return decodeOne[models.User](data)
}

func (s *SupabaseStore) ListUsers(ctx context.Context) ([]models.User, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("custom_user").
			Select("user_id,username,avatar_url,role,created_at", "", false).
			Order("created_at", &postgrest.OrderOpts{Ascending: false}).
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	return decodeList[models.User](data)
}

// ---- 分类 ----

func (s *SupabaseStore) ListCategories(ctx context.Context, userID, typeFilter string) ([]models.Category, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		query := s.client.From("categories").
			Select("*", "", false).
			Or(ownerOrDefaultFilter(userID), "")
		if typeFilter != "" {
			query = query.Eq("type", typeFilter)
		}
		return query.Order("name", &postgrest.OrderOpts{Ascending: true}).Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("查询分类列表失败: %w", err)
	}
	return decodeList[models.Category](data)
}

func (s *SupabaseStore) GetCategory(ctx context.Context, id int64, userID string) (*models.Category, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("categories").
			Select("*", "", false).
			Eq("id", strconv.FormatInt(id, 10)).
			Or(ownerOrDefaultFilter(userID), "").
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	return decodeOne[models.Category](data)
}

func (s *SupabaseStore) ResolveCategory(ctx context.Context, userID string, ref models.CategoryRef, ctype string) (*models.Category, error) {
	if ref.ID != nil {
		return s.GetCategory(ctx, *ref.ID, userID)
	}

	// 按名称解析：同名分类可能收支各有一个，必须限定类型；先查本人分类
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("categories").
			Select("*", "", false).
			Eq("name", ref.Name).
			Eq("type", ctype).
			Eq("user_id", userID).
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("解析分类失败: %w", err)
	}
	cat, err := decodeOne[models.Category](data)
	if err == nil {
		return cat, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	// 再查默认分类
	data, _, err = s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("categories").
			Select("*", "", false).
			Eq("name", ref.Name).
			Eq("type", ctype).
			Is("user_id", "null").
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("解析分类失败: %w", err)
	}
	return decodeOne[models.Category](data)
}

func (s *SupabaseStore) CategoryNameExists(ctx context.Context, userID, name, ctype string) (bool, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("categories").
			Select("id", "", false).
			Eq("user_id", userID).
			Eq("name", name).
			Eq("type", ctype).
			Execute()
	})
	if err != nil {
		return false, fmt.Errorf("查询分类失败: %w", err)
	}
	list, err := decodeList[models.Category](data)
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}

func (s *SupabaseStore) CreateCategory(ctx context.Context, category *models.Category) error {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("categories").
			Insert(newCategoryInsert(category), false, "", "", "").
			Execute()
	})
	if err != nil {
		return fmt.Errorf("创建分类失败: %w", err)
	}
	created, err := decodeOne[models.Category](data)
	if err == nil {
		category.ID = created.ID
		category.CreatedAt = created.CreatedAt
	}
	return nil
}

func (s *SupabaseStore) UpdateCategory(ctx context.Context, id int64, userID string, updates map[string]interface{}) (*models.Category, error) {
	// 仅更新本人分类：默认分类（user_id IS NULL）与他人分类都匹配不到行
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("categories").
			Update(updates, "", "").
			Eq("id", strconv.FormatInt(id, 10)).
			Eq("user_id", userID).
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("更新分类失败: %w", err)
	}
	return decodeOne[models.Category](data)
}

func (s *SupabaseStore) DeleteCategory(ctx context.Context, id int64, userID string) error {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("categories").
			Delete("representation", "").
			Eq("id", strconv.FormatInt(id, 10)).
			Eq("user_id", userID).
			Execute()
	})
	if err != nil {
		return fmt.Errorf("删除分类失败: %w", err)
	}
	if _, err := decodeOne[models.Category](data); err != nil {
		return ErrNotFound
	}
	return nil
}

func (s *SupabaseStore) CountBillsByCategory(ctx context.Context, userID string, categoryID int64) (int64, error) {
	_, count, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("bills").
			Select("id", "exact", false).
			Eq("user_id", userID).
			Eq("category_id", strconv.FormatInt(categoryID, 10)).
			Execute()
	})
	if err != nil {
		return 0, fmt.Errorf("统计账单失败: %w", err)
	}
	return count, nil
}

// ---- 账单 ----

func (s *SupabaseStore) ListBills(ctx context.Context, userID string, filter models.BillFilter) ([]models.Bill, int64, error) {
	var total int64
	data, count, err := s.execute(ctx, func() ([]byte, int64, error) {
		query := s.client.From("bills").
			Select("*", "exact", false).
			Eq("user_id", userID)
		if filter.CategoryID > 0 {
			query = query.Eq("category_id", strconv.FormatInt(filter.CategoryID, 10))
		}
		if filter.DateFrom != "" {
			query = query.Gte("date", filter.DateFrom)
		}
		if filter.DateTo != "" {
			query = query.Lte("date", filter.DateTo)
		}
		if filter.Type != "" {
			query = query.Eq("type", filter.Type)
		}
		offset := (filter.Page - 1) * filter.PageSize
		return query.
			Order("date", &postgrest.OrderOpts{Ascending: false}).
			Order("created_at", &postgrest.OrderOpts{Ascending: false}).
			Range(offset, offset+filter.PageSize-1, "").
			Execute()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("查询账单列表失败: %w", err)
	}
	total = count
	bills, err := decodeList[models.Bill](data)
	if err != nil {
		return nil, 0, err
	}
	return bills, total, nil
}

func (s *SupabaseStore) GetBill(ctx context.Context, id int64, userID string) (*models.Bill, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("bills").
			Select("*", "", false).
			Eq("id", strconv.FormatInt(id, 10)).
			Eq("user_id", userID).
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("查询账单失败: %w", err)
	}
	return decodeOne[models.Bill](data)
}

func (s *SupabaseStore) CreateBill(ctx context.Context, bill *models.Bill) error {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("bills").
			Insert(newBillInsert(bill), false, "", "", "").
			Execute()
	})
	if err != nil {
		return fmt.Errorf("创建账单失败: %w", err)
	}
	created, err := decodeOne[models.Bill](data)
	if err == nil {
		bill.ID = created.ID
		bill.CreatedAt = created.CreatedAt
		bill.UpdatedAt = created.UpdatedAt
	}
	return nil
}

func (s *SupabaseStore) UpdateBill(ctx context.Context, id int64, userID string, updates map[string]interface{}) (*models.Bill, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("bills").
			Update(updates, "", "").
			Eq("id", strconv.FormatInt(id, 10)).
			Eq("user_id", userID).
			Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("更新账单失败: %w", err)
	}
	return decodeOne[models.Bill](data)
}

func (s *SupabaseStore) DeleteBill(ctx context.Context, id int64, userID string) error {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		return s.client.From("bills").
			Delete("representation", "").
			Eq("id", strconv.FormatInt(id, 10)).
			Eq("user_id", userID).
			Execute()
	})
	if err != nil {
		return fmt.Errorf("删除账单失败: %w", err)
	}
	if _, err := decodeOne[models.Bill](data); err != nil {
		return ErrNotFound
	}
	return nil
}

func (s *SupabaseStore) ListBillsByDateRange(ctx context.Context, userID, dateFrom, dateTo string) ([]models.Bill, error) {
	data, _, err := s.execute(ctx, func() ([]byte, int64, error) {
		query := s.client.From("bills").
			Select("*", "", false).
			Eq("user_id", userID)
		if dateFrom != "" {
			query = query.Gte("date", dateFrom)
		}
		if dateTo != "" {
			query = query.Lte("date", dateTo)
		}
		return query.Order("date", &postgrest.OrderOpts{Ascending: true}).Execute()
	})
	if err != nil {
		return nil, fmt.Errorf("查询账单失败: %w", err)
	}
	return decodeList[models.Bill](data)
}

// decodeList 解析 PostgREST 返回的 JSON 数组
func decodeList[T any](data []byte) ([]T, error) {
	var list []T
	if len(data) == 0 {
		return list, nil
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("解析存储响应失败: %w", err)
	}
	return list, nil
}

// decodeOne 解析单行结果；空结果返回 ErrNotFound
func decodeOne[T any](data []byte) (*T, error) {
	list, err := decodeList[T](data)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}
