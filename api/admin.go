package api

import (
	"log"
	"time"

	"anyu/config"
	"anyu/middleware"
	"anyu/models"
	"anyu/repository"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理端处理器，路由需挂在 RequireRole(admin) 之后
type AdminHandler struct {
	cfg   *config.Config
	store repository.Store
}

// NewAdminHandler 创建管理端处理器
func NewAdminHandler(cfg *config.Config, store repository.Store) *AdminHandler {
	return &AdminHandler{
		cfg:   cfg,
		store: store,
	}
}

// ListUsers 获取用户列表
// @Summary 获取用户列表
// @Description 列出所有注册用户（不含凭据字段）
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.PublicUser} "获取成功"
// @Failure 403 {object} Response "权限不足"
// @Router /api/v1/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		StoreError(c, "获取用户列表失败", err)
		return
	}

	list := make([]models.PublicUser, 0, len(users))
	for i := range users {
		list = append(list, users[i].Public())
	}
	Success(c, list)
}

// RevokeSessionRequest 吊销会话请求
type RevokeSessionRequest struct {
	TokenID string `json:"jti" binding:"required" example:"6f1c1a6e-..."`
}

// RevokeSession 强制吊销会话
// @Summary 吊销会话
// @Description 在 token 自然过期前强制失效指定会话（按 jti）
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RevokeSessionRequest true "会话标识"
// @Success 200 {object} Response "吊销成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 403 {object} Response "权限不足"
// @Router /api/v1/admin/revoke [post]
func (h *AdminHandler) RevokeSession(c *gin.Context) {
	var req RevokeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "jti不能为空")
		return
	}

	// 吊销条目保留一个完整的 token 有效期，覆盖任意存量 token 的剩余寿命
	middleware.RevokeToken(req.TokenID, time.Now().Add(h.cfg.JWT.ExpireTime))
	log.Printf("管理员 %s 吊销了会话 %s", middleware.GetCurrentUsername(c), req.TokenID)

	SuccessWithMessage(c, "会话已吊销", nil)
}
