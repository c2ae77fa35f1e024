package api

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"unicode/utf8"

	"anyu/config"
	"anyu/middleware"
	"anyu/models"
	"anyu/repository"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	cfg   *config.Config
	store repository.Store
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, store repository.Store) *AuthHandler {
	return &AuthHandler{
		cfg:   cfg,
		store: store,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50" example:"alice"`
	Password string `json:"password" binding:"required,min=6,max=50" example:"secret123"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// AuthResponse 注册/登录响应
type AuthResponse struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
	Token     string `json:"token"`
}

// defaultAvatarURL 按用户名首字符生成默认头像
// 按 rune 取首字符，中文等多字节用户名不能按字节切
func defaultAvatarURL(username string) string {
	first, _ := utf8.DecodeRuneInString(username)
	initial := strings.ToUpper(string(first))
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random", url.QueryEscape(initial))
}

// Register 用户注册
// @Summary 用户注册
// @Description 创建新用户账号并返回 JWT token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 201 {object} Response{data=AuthResponse} "注册成功"
// @Failure 400 {object} Response "参数错误或用户名已存在"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "用户名和密码不能为空，密码至少6个字符")
		return
	}

	ctx := c.Request.Context()

	// 检查用户名是否已存在（用户名区分大小写）
	if _, err := h.store.GetUserByUsername(ctx, req.Username); err == nil {
		BadRequest(c, "用户名已存在")
		return
	} else if err != repository.ErrNotFound {
		StoreError(c, "数据库查询错误", err)
		return
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	// 创建用户，包含默认头像和角色
	user := models.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		AvatarURL:    defaultAvatarURL(req.Username),
		Role:         models.RoleUser,
	}
	if err := h.store.CreateUser(ctx, &user); err != nil {
		StoreError(c, "用户创建失败", err)
		return
	}

	// 注册即颁发 token
	token, err := middleware.GenerateToken(user.UserID, user.Username, user.Role, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}

	Created(c, "注册成功", AuthResponse{
		UserID:    user.UserID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		Role:      user.Role,
		Token:     token,
	})
}

// Login 用户登录
// @Summary 用户登录
// @Description 校验用户名密码，返回 JWT token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=AuthResponse} "登录成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 401 {object} Response "用户名或密码错误"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "用户名和密码不能为空")
		return
	}

	ctx := c.Request.Context()

	user, err := h.store.GetUserByUsername(ctx, req.Username)
	if err == repository.ErrNotFound {
		// 用户不存在与密码错误对外不可区分
		Unauthorized(c, "用户名或密码错误")
		return
	}
	if err != nil {
		StoreError(c, "数据库查询错误", err)
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		Unauthorized(c, "用户名或密码错误")
		return
	}

	token, err := middleware.GenerateToken(user.UserID, user.Username, user.Role, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}

	SuccessWithMessage(c, "登录成功", AuthResponse{
		UserID:    user.UserID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		Role:      user.Role,
		Token:     token,
	})
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required" example:"secret123"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=50" example:"newsecret456"`
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Description 验证旧密码后设置新密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "密码信息"
// @Success 200 {object} Response "修改成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 401 {object} Response "原密码错误"
// @Router /api/v1/auth/password/change [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误，新密码至少6个字符")
		return
	}

	ctx := c.Request.Context()

	user, err := h.store.GetUserByID(ctx, userID)
	if err == repository.ErrNotFound {
		NotFound(c, "用户不存在")
		return
	}
	if err != nil {
		StoreError(c, "数据库查询错误", err)
		return
	}

	// 验证旧密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		Unauthorized(c, "原密码错误")
		return
	}

	// 加密新密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	if _, err := h.store.UpdateUser(ctx, userID, map[string]interface{}{
		"password_hash": string(hashedPassword),
	}); err != nil {
		StoreError(c, "更新密码失败", err)
		return
	}

	SuccessWithMessage(c, "密码修改成功", nil)
}

// UpdateAvatarRequest 更新头像请求
type UpdateAvatarRequest struct {
	AvatarURL string `json:"avatar_url" binding:"required,url" example:"https://example.com/avatar.png"`
}

// UpdateAvatar 更新当前用户头像
// @Summary 更新头像
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateAvatarRequest true "头像信息"
// @Success 200 {object} Response{data=models.PublicUser} "更新成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/auth/avatar [put]
func (h *AuthHandler) UpdateAvatar(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req UpdateAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "头像URL不能为空且必须是合法URL")
		return
	}

	user, err := h.store.UpdateUser(c.Request.Context(), userID, map[string]interface{}{
		"avatar_url": req.AvatarURL,
	})
	if err == repository.ErrNotFound {
		NotFound(c, "用户不存在")
		return
	}
	if err != nil {
		StoreError(c, "更新头像失败", err)
		return
	}

	SuccessWithMessage(c, "头像更新成功", user.Public())
}

// GetProfile 获取用户公开信息
// @Summary 获取用户公开信息
// @Description 按用户ID查询公开资料；无需认证
// @Tags 认证
// @Produce json
// @Param id path string true "用户ID"
// @Success 200 {object} Response{data=models.PublicUser} "获取成功"
// @Failure 404 {object} Response "用户不存在"
// @Router /api/v1/auth/profile/{id} [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID := c.Param("id")

	user, err := h.store.GetUserByID(c.Request.Context(), userID)
	if err == repository.ErrNotFound {
		NotFound(c, "用户不存在")
		return
	}
	if err != nil {
		StoreError(c, "获取用户信息失败", err)
		return
	}

	Success(c, user.Public())
}

// GetMe 获取当前登录用户信息
// @Summary 获取当前用户信息
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.PublicUser} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	user, err := h.store.GetUserByID(c.Request.Context(), userID)
	if err == repository.ErrNotFound {
		log.Printf("token 携带的用户不存在: %s", userID)
		NotFound(c, "用户不存在")
		return
	}
	if err != nil {
		StoreError(c, "获取用户信息失败", err)
		return
	}

	Success(c, user.Public())
}
