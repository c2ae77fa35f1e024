package api

import (
	"context"
	"sort"
	"time"

	"anyu/models"
	"anyu/repository"

	"github.com/google/uuid"
)

// fakeStore repository.Store 的内存实现，测试替身
// 语义与真实存储保持一致：账单始终按 owner 过滤，
// 分类可见范围为本人分类 + 默认分类
type fakeStore struct {
	users      map[string]models.User
	categories map[int64]models.Category
	bills      map[int64]models.Bill

	nextCategoryID int64
	nextBillID     int64

	// 注入故障用
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:          map[string]models.User{},
		categories:     map[int64]models.Category{},
		bills:          map[int64]models.Bill{},
		nextCategoryID: 1,
		nextBillID:     1,
	}
}

// ---- 测试数据装配 ----

func (f *fakeStore) addUser(username, passwordHash, role string) models.User {
	u := models.User{
		UserID:       uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		AvatarURL:    "https://example.com/avatar.png",
		Role:         role,
		CreatedAt:    time.Now(),
	}
	f.users[u.UserID] = u
	return u
}

func (f *fakeStore) addCategory(userID *string, name, ctype string, isDefault bool) models.Category {
	c := models.Category{
		ID:        f.nextCategoryID,
		UserID:    userID,
		Name:      name,
		Type:      ctype,
		Icon:      "default",
		Color:     "#000000",
		IsDefault: isDefault,
		CreatedAt: time.Now(),
	}
	f.nextCategoryID++
	f.categories[c.ID] = c
	return c
}

func (f *fakeStore) addBill(userID string, amount float64, btype string, categoryID int64, date string) models.Bill {
	b := models.Bill{
		ID:         f.nextBillID,
		UserID:     userID,
		Amount:     amount,
		Type:       btype,
		CategoryID: categoryID,
		Date:       date,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	f.nextBillID++
	f.bills[b.ID] = b
	return b
}

// ---- 用户 ----

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := u
	return &user, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	f.users[user.UserID] = *user
	return nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, userID string, updates map[string]interface{}) (*models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if v, ok := updates["password_hash"]; ok {
		u.PasswordHash = v.(string)
	}
	if v, ok := updates["avatar_url"]; ok {
		u.AvatarURL = v.(string)
	}
	f.users[userID] = u
	user := u
	return &user, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	list := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return list, nil
}

// ---- 分类 ----

func (f *fakeStore) ListCategories(ctx context.Context, userID, typeFilter string) ([]models.Category, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var list []models.Category
	for _, c := range f.categories {
		if !c.VisibleTo(userID) {
			continue
		}
		if typeFilter != "" && c.Type != typeFilter {
			continue
		}
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (f *fakeStore) GetCategory(ctx context.Context, id int64, userID string) (*models.Category, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	c, ok := f.categories[id]
	if !ok || !c.VisibleTo(userID) {
		return nil, repository.ErrNotFound
	}
	cat := c
	return &cat, nil
}

func (f *fakeStore) ResolveCategory(ctx context.Context, userID string, ref models.CategoryRef, ctype string) (*models.Category, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if ref.ID != nil {
		return f.GetCategory(ctx, *ref.ID, userID)
	}
	// 先查本人分类，名称解析限定类型
	for _, c := range f.categories {
		if c.OwnedBy(userID) && c.Name == ref.Name && c.Type == ctype {
			cat := c
			return &cat, nil
		}
	}
	// 再查默认分类
	for _, c := range f.categories {
		if c.UserID == nil && c.Name == ref.Name && c.Type == ctype {
			cat := c
			return &cat, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) CategoryNameExists(ctx context.Context, userID, name, ctype string) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	for _, c := range f.categories {
		if c.OwnedBy(userID) && c.Name == name && c.Type == ctype {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateCategory(ctx context.Context, category *models.Category) error {
	if f.failWith != nil {
		return f.failWith
	}
	category.ID = f.nextCategoryID
	f.nextCategoryID++
	category.CreatedAt = time.Now()
	f.categories[category.ID] = *category
	return nil
}

func (f *fakeStore) UpdateCategory(ctx context.Context, id int64, userID string, updates map[string]interface{}) (*models.Category, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	c, ok := f.categories[id]
	if !ok || !c.OwnedBy(userID) {
		return nil, repository.ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["icon"]; ok {
		c.Icon = v.(string)
	}
	if v, ok := updates["color"]; ok {
		c.Color = v.(string)
	}
	f.categories[id] = c
	cat := c
	return &cat, nil
}

func (f *fakeStore) DeleteCategory(ctx context.Context, id int64, userID string) error {
	if f.failWith != nil {
		return f.failWith
	}
	c, ok := f.categories[id]
	if !ok || !c.OwnedBy(userID) {
		return repository.ErrNotFound
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeStore) CountBillsByCategory(ctx context.Context, userID string, categoryID int64) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	var count int64
	for _, b := range f.bills {
		if b.UserID == userID && b.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

// ---- 账单 ----

func (f *fakeStore) ListBills(ctx context.Context, userID string, filter models.BillFilter) ([]models.Bill, int64, error) {
	if f.failWith != nil {
		return nil, 0, f.failWith
	}
	var matched []models.Bill
	for _, b := range f.bills {
		if b.UserID != userID {
			continue
		}
		if filter.CategoryID > 0 && b.CategoryID != filter.CategoryID {
			continue
		}
		if filter.DateFrom != "" && b.Date < filter.DateFrom {
			continue
		}
		if filter.DateTo != "" && b.Date > filter.DateTo {
			continue
		}
		if filter.Type != "" && b.Type != filter.Type {
			continue
		}
		matched = append(matched, b)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date != matched[j].Date {
			return matched[i].Date > matched[j].Date
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	offset := (filter.Page - 1) * filter.PageSize
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (f *fakeStore) GetBill(ctx context.Context, id int64, userID string) (*models.Bill, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	b, ok := f.bills[id]
	if !ok || b.UserID != userID {
		return nil, repository.ErrNotFound
	}
	bill := b
	return &bill, nil
}

func (f *fakeStore) CreateBill(ctx context.Context, bill *models.Bill) error {
	if f.failWith != nil {
		return f.failWith
	}
	bill.ID = f.nextBillID
	f.nextBillID++
	bill.CreatedAt = time.Now()
	bill.UpdatedAt = bill.CreatedAt
	f.bills[bill.ID] = *bill
	return nil
}

func (f *fakeStore) UpdateBill(ctx context.Context, id int64, userID string, updates map[string]interface{}) (*models.Bill, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	b, ok := f.bills[id]
	if !ok || b.UserID != userID {
		return nil, repository.ErrNotFound
	}
	if v, ok := updates["amount"]; ok {
		b.Amount = v.(float64)
	}
	if v, ok := updates["type"]; ok {
		b.Type = v.(string)
	}
	if v, ok := updates["category_id"]; ok {
		b.CategoryID = v.(int64)
	}
	if v, ok := updates["description"]; ok {
		b.Description = v.(string)
	}
	if v, ok := updates["date"]; ok {
		b.Date = v.(string)
	}
	if v, ok := updates["updated_at"]; ok {
		if ts, err := time.Parse(time.RFC3339, v.(string)); err == nil {
			b.UpdatedAt = ts
		}
	}
	f.bills[id] = b
	bill := b
	return &bill, nil
}

func (f *fakeStore) DeleteBill(ctx context.Context, id int64, userID string) error {
	if f.failWith != nil {
		return f.failWith
	}
	b, ok := f.bills[id]
	if !ok || b.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.bills, id)
	return nil
}

func (f *fakeStore) ListBillsByDateRange(ctx context.Context, userID, dateFrom, dateTo string) ([]models.Bill, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var list []models.Bill
	for _, b := range f.bills {
		if b.UserID != userID {
			continue
		}
		if dateFrom != "" && b.Date < dateFrom {
			continue
		}
		if dateTo != "" && b.Date > dateTo {
			continue
		}
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date < list[j].Date })
	return list, nil
}

// 接口实现检查
var _ repository.Store = (*fakeStore)(nil)
