package api

import (
	"regexp"
	"strconv"
	"strings"

	"anyu/middleware"
	"anyu/models"
	"anyu/repository"

	"github.com/gin-gonic/gin"
)

// CategoryHandler 分类处理器
type CategoryHandler struct {
	store repository.Store
}

// NewCategoryHandler 创建分类处理器
func NewCategoryHandler(store repository.Store) *CategoryHandler {
	return &CategoryHandler{store: store}
}

// CreateCategoryRequest 创建分类请求
type CreateCategoryRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=50" example:"餐饮"`
	Type  string `json:"type" binding:"required" example:"outcome"`
	Icon  string `json:"icon" example:"food"`
	Color string `json:"color" example:"#ef4444"`
}

// UpdateCategoryRequest 更新分类请求，仅更新出现的字段
type UpdateCategoryRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=50"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// List 获取分类列表
// @Summary 获取分类列表
// @Description 获取当前用户的分类与默认分类，可按类型过滤
// @Tags 分类
// @Produce json
// @Security BearerAuth
// @Param type query string false "类型筛选 income/outcome"
// @Success 200 {object} Response{data=[]models.Category} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	typeFilter := c.Query("type")
	if typeFilter != "" && !models.ValidBillType(typeFilter) {
		BadRequest(c, "类型必须是 income 或 outcome")
		return
	}

	categories, err := h.store.ListCategories(c.Request.Context(), userID, typeFilter)
	if err != nil {
		StoreError(c, "获取分类列表失败", err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}

	Success(c, gin.H{"results": categories})
}

// Create 创建分类
// @Summary 创建分类
// @Description 创建归属当前用户的分类；同名同类型的分类不可重复
// @Tags 分类
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCategoryRequest true "分类信息"
// @Success 201 {object} Response{data=models.Category} "创建成功"
// @Failure 400 {object} Response "参数错误或分类已存在"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "分类名称和类型不能为空")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(c, "分类名称不能为空")
		return
	}
	if !models.ValidBillType(req.Type) {
		BadRequest(c, "类型必须是 income 或 outcome")
		return
	}
	if req.Color != "" && !colorPattern.MatchString(req.Color) {
		BadRequest(c, "颜色格式不正确，应为 #RRGGBB 格式")
		return
	}

	ctx := c.Request.Context()

	// 同名同类型去重；并发下由存储的唯一约束兜底
	exists, err := h.store.CategoryNameExists(ctx, userID, req.Name, req.Type)
	if err != nil {
		StoreError(c, "查询分类失败", err)
		return
	}
	if exists {
		BadRequest(c, "分类已存在")
		return
	}

	icon := req.Icon
	if icon == "" {
		icon = "default"
	}
	color := req.Color
	if color == "" {
		color = "#000000"
	}

	category := models.Category{
		UserID:    &userID,
		Name:      req.Name,
		Type:      req.Type,
		Icon:      icon,
		Color:     color,
		IsDefault: false,
	}
	if err := h.store.CreateCategory(ctx, &category); err != nil {
		StoreError(c, "创建分类失败", err)
		return
	}

	Created(c, "分类创建成功", category)
}

// Update 更新分类
// @Summary 更新分类
// @Description 部分更新当前用户的分类；默认分类不可修改
// @Tags 分类
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Param request body UpdateCategoryRequest true "分类信息"
// @Success 200 {object} Response{data=models.Category} "更新成功"
// @Failure 400 {object} Response "参数错误或默认分类不可修改"
// @Failure 404 {object} Response "分类不存在"
// @Router /api/v1/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "无效的分类ID")
		return
	}

	ctx := c.Request.Context()

	// 可见性范围内的存在性检查；他人分类与不存在均为 404
	category, err := h.store.GetCategory(ctx, id, userID)
	if err == repository.ErrNotFound {
		NotFound(c, "分类不存在")
		return
	}
	if err != nil {
		StoreError(c, "查询分类失败", err)
		return
	}

	// 默认分类对所有用户只读
	if category.IsDefault || !category.OwnedBy(userID) {
		BadRequest(c, "默认分类不可修改")
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误")
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			BadRequest(c, "分类名称不能为空")
			return
		}
		if name != category.Name {
			exists, err := h.store.CategoryNameExists(ctx, userID, name, category.Type)
			if err != nil {
				StoreError(c, "查询分类失败", err)
				return
			}
			if exists {
				BadRequest(c, "分类已存在")
				return
			}
		}
		updates["name"] = name
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Color != nil {
		if *req.Color != "" && !colorPattern.MatchString(*req.Color) {
			BadRequest(c, "颜色格式不正确，应为 #RRGGBB 格式")
			return
		}
		updates["color"] = *req.Color
	}
	if len(updates) == 0 {
		SuccessWithMessage(c, "无需更新", category)
		return
	}

	updated, err := h.store.UpdateCategory(ctx, id, userID, updates)
	if err == repository.ErrNotFound {
		NotFound(c, "分类不存在")
		return
	}
	if err != nil {
		StoreError(c, "更新分类失败", err)
		return
	}

	SuccessWithMessage(c, "分类更新成功", updated)
}

// Delete 删除分类
// @Summary 删除分类
// @Description 删除当前用户的分类；默认分类不可删除，仍被账单引用的分类不可删除
// @Tags 分类
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "默认分类或仍被账单引用"
// @Failure 404 {object} Response "分类不存在"
// @Router /api/v1/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "无效的分类ID")
		return
	}

	ctx := c.Request.Context()

	category, err := h.store.GetCategory(ctx, id, userID)
	if err == repository.ErrNotFound {
		NotFound(c, "分类不存在")
		return
	}
	if err != nil {
		StoreError(c, "查询分类失败", err)
		return
	}

	if category.IsDefault || !category.OwnedBy(userID) {
		BadRequest(c, "默认分类不可删除")
		return
	}

	// 仍被账单引用的分类不可删除
	count, err := h.store.CountBillsByCategory(ctx, userID, id)
	if err != nil {
		StoreError(c, "统计账单失败", err)
		return
	}
	if count > 0 {
		BadRequest(c, "该分类下仍有账单，不可删除")
		return
	}

	if err := h.store.DeleteCategory(ctx, id, userID); err != nil {
		if err == repository.ErrNotFound {
			NotFound(c, "分类不存在")
		} else {
			StoreError(c, "删除分类失败", err)
		}
		return
	}

	SuccessWithMessage(c, "分类删除成功", nil)
}
