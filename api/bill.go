package api

import (
	"strconv"
	"time"

	"anyu/middleware"
	"anyu/models"
	"anyu/repository"

	"github.com/gin-gonic/gin"
)

// BillHandler 账单处理器
type BillHandler struct {
	store repository.Store
}

// NewBillHandler 创建账单处理器
func NewBillHandler(store repository.Store) *BillHandler {
	return &BillHandler{store: store}
}

// CreateBillRequest 创建账单请求
// 分类引用二选一：category_id 或 category_name，必须且只能提供其一
type CreateBillRequest struct {
	Amount       float64 `json:"amount" binding:"required,gt=0" example:"50"`
	Type         string  `json:"type" binding:"required" example:"outcome"`
	CategoryID   *int64  `json:"category_id" example:"1"`
	CategoryName string  `json:"category_name" example:"餐饮"`
	Description  string  `json:"description" example:"午餐"`
	Date         string  `json:"date" example:"2024-01-01"`
}

// UpdateBillRequest 更新账单请求，仅更新出现的字段
type UpdateBillRequest struct {
	Amount       *float64 `json:"amount" binding:"omitempty,gt=0"`
	Type         *string  `json:"type"`
	CategoryID   *int64   `json:"category_id"`
	CategoryName string   `json:"category_name"`
	Description  *string  `json:"description"`
	Date         *string  `json:"date"`
}

// BillListRequest 账单列表请求
type BillListRequest struct {
	Page     int    `form:"page" example:"1"`
	PageSize int    `form:"page_size" example:"10"`
	Category int64  `form:"category" example:"1"`
	DateFrom string `form:"date_from" example:"2024-01-01"`
	DateTo   string `form:"date_to" example:"2024-12-31"`
	Type     string `form:"type" example:"outcome"`
}

// validDate 校验 YYYY-MM-DD 日期
func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}

// Create 创建账单
// @Summary 创建账单
// @Description 创建一条账单，归属当前登录用户；分类引用按 ID 或名称二选一，
// @Description 名称解析优先本人分类，其次默认分类
// @Tags 账单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBillRequest true "账单信息"
// @Success 201 {object} Response{data=models.Bill} "创建成功"
// @Failure 400 {object} Response "参数错误或分类不可用"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/bills [post]
func (h *BillHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "金额必须是大于0的数字，类型不能为空")
		return
	}

	if !models.ValidBillType(req.Type) {
		BadRequest(c, "类型必须是 income 或 outcome")
		return
	}

	ref := models.CategoryRef{ID: req.CategoryID, Name: req.CategoryName}
	if !ref.Valid() {
		BadRequest(c, "必须且只能提供 category_id 或 category_name 之一")
		return
	}

	date := req.Date
	if date == "" {
		date = time.Now().Format(models.DateLayout)
	} else if !validDate(date) {
		BadRequest(c, "日期格式错误，应为: 2024-01-01")
		return
	}

	ctx := c.Request.Context()

	// 解析分类引用并校验可见性（本人或默认分类）
	category, err := h.store.ResolveCategory(ctx, userID, ref, req.Type)
	if err == repository.ErrNotFound {
		BadRequest(c, "分类不存在或不可用")
		return
	}
	if err != nil {
		StoreError(c, "解析分类失败", err)
		return
	}

	bill := models.Bill{
		UserID:      userID,
		Amount:      req.Amount,
		Type:        req.Type,
		CategoryID:  category.ID,
		Description: req.Description,
		Date:        date,
	}
	if err := h.store.CreateBill(ctx, &bill); err != nil {
		StoreError(c, "创建账单失败", err)
		return
	}

	Created(c, "账单创建成功", bill)
}

// List 获取账单列表
// @Summary 获取账单列表
// @Description 分页获取当前用户的账单，支持分类、日期范围、类型筛选
// @Tags 账单
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param category query int false "分类ID筛选"
// @Param date_from query string false "开始日期 (2024-01-01)"
// @Param date_to query string false "结束日期 (2024-12-31)"
// @Param type query string false "类型筛选 income/outcome"
// @Success 200 {object} Response{data=PageResponse{results=[]models.Bill}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/bills [get]
func (h *BillHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req BillListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, "参数错误")
		return
	}

	// 默认分页参数
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}
	if req.Type != "" && !models.ValidBillType(req.Type) {
		BadRequest(c, "类型必须是 income 或 outcome")
		return
	}

	filter := models.BillFilter{
		CategoryID: req.Category,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		Type:       req.Type,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}

	bills, total, err := h.store.ListBills(c.Request.Context(), userID, filter)
	if err != nil {
		StoreError(c, "获取账单列表失败", err)
		return
	}
	if bills == nil {
		bills = []models.Bill{}
	}

	totalPages := (total + int64(req.PageSize) - 1) / int64(req.PageSize)
	Success(c, PageResponse{
		Count:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
		Results:    bills,
	})
}

// Get 获取单条账单
// @Summary 获取账单详情
// @Description 按ID获取当前用户的账单；不存在或属于他人均返回404
// @Tags 账单
// @Produce json
// @Security BearerAuth
// @Param id path int true "账单ID"
// @Success 200 {object} Response{data=models.Bill} "获取成功"
// @Failure 404 {object} Response "账单不存在"
// @Router /api/v1/bills/{id} [get]
func (h *BillHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "无效的账单ID")
		return
	}

	bill, err := h.store.GetBill(c.Request.Context(), id, userID)
	if err == repository.ErrNotFound {
		NotFound(c, "账单不存在")
		return
	}
	if err != nil {
		StoreError(c, "获取账单详情失败", err)
		return
	}

	Success(c, bill)
}

// Update 更新账单
// @Summary 更新账单
// @Description 部分更新当前用户的账单，仅修改请求中出现的字段
// @Tags 账单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "账单ID"
// @Param request body UpdateBillRequest true "账单信息"
// @Success 200 {object} Response{data=models.Bill} "更新成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 404 {object} Response "账单不存在"
// @Router /api/v1/bills/{id} [put]
func (h *BillHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "无效的账单ID")
		return
	}

	ctx := c.Request.Context()

	// 先做所有权范围内的存在性检查
	existing, err := h.store.GetBill(ctx, id, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			NotFound(c, "账单不存在")
		} else {
			StoreError(c, "查询账单失败", err)
		}
		return
	}

	var req UpdateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误")
		return
	}

	updates := map[string]interface{}{}
	if req.Amount != nil {
		updates["amount"] = *req.Amount
	}
	if req.Type != nil {
		if !models.ValidBillType(*req.Type) {
			BadRequest(c, "类型必须是 income 或 outcome")
			return
		}
		updates["type"] = *req.Type
	}
	if req.CategoryID != nil || req.CategoryName != "" {
		ref := models.CategoryRef{ID: req.CategoryID, Name: req.CategoryName}
		if !ref.Valid() {
			BadRequest(c, "必须且只能提供 category_id 或 category_name 之一")
			return
		}
		// 变更分类时按创建时的规则重新校验，类型以本次请求为准
		ctype := existing.Type
		if req.Type != nil {
			ctype = *req.Type
		}
		category, err := h.store.ResolveCategory(ctx, userID, ref, ctype)
		if err == repository.ErrNotFound {
			BadRequest(c, "分类不存在或不可用")
			return
		}
		if err != nil {
			StoreError(c, "解析分类失败", err)
			return
		}
		updates["category_id"] = category.ID
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Date != nil {
		if !validDate(*req.Date) {
			BadRequest(c, "日期格式错误，应为: 2024-01-01")
			return
		}
		updates["date"] = *req.Date
	}

	// 空变更也会刷新 updated_at
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	bill, err := h.store.UpdateBill(ctx, id, userID, updates)
	if err == repository.ErrNotFound {
		NotFound(c, "账单不存在")
		return
	}
	if err != nil {
		StoreError(c, "更新账单失败", err)
		return
	}

	SuccessWithMessage(c, "账单更新成功", bill)
}

// Delete 删除账单
// @Summary 删除账单
// @Description 删除当前用户的账单
// @Tags 账单
// @Produce json
// @Security BearerAuth
// @Param id path int true "账单ID"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "账单不存在"
// @Router /api/v1/bills/{id} [delete]
func (h *BillHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "无效的账单ID")
		return
	}

	ctx := c.Request.Context()

	if _, err := h.store.GetBill(ctx, id, userID); err != nil {
		if err == repository.ErrNotFound {
			NotFound(c, "账单不存在")
		} else {
			StoreError(c, "查询账单失败", err)
		}
		return
	}

	if err := h.store.DeleteBill(ctx, id, userID); err != nil && err != repository.ErrNotFound {
		StoreError(c, "删除账单失败", err)
		return
	}

	SuccessWithMessage(c, "账单删除成功", nil)
}
