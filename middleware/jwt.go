package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"anyu/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 机器可读的认证失败原因，放在响应的 error 字段
const (
	AuthErrMissing          = "missing"
	AuthErrMalformed        = "malformed"
	AuthErrInvalidOrExpired = "invalid_or_expired"
	AuthErrInsufficientRole = "insufficient_role"
)

// gin context 中存放认证身份的键
const (
	ContextUserID   = "userID"
	ContextUsername = "username"
	ContextRole     = "role"
	ContextTokenID  = "tokenID"
)

var jwtSecret []byte

// Claims JWT 声明：主体标识、展示名、角色，外加标准的 jti/iat/exp
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// InitJWT 初始化 JWT 密钥
func InitJWT(cfg *config.Config) {
	jwtSecret = []byte(cfg.JWT.Secret)
}

// GenerateToken 生成 JWT token，有效期由调用方指定（默认配置为 24 小时）
func GenerateToken(userID, username, role string, expireTime time.Duration) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("JWT 密钥未初始化")
	}
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expireTime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken 解析并校验 JWT token
// 签名错误、格式错误、过期、已吊销均返回 error；错误日志不包含签名材料
func ParseToken(tokenString string) (*Claims, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("JWT 密钥未初始化")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("不支持的签名算法")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("无效的token")
	}
	if IsTokenRevoked(claims.ID) {
		return nil, errors.New("token已被吊销")
	}
	return claims, nil
}

// ExtractToken 从 Authorization 头中提取 token
// 支持 "Bearer <token>" 格式，也兼容直接传 token 的旧客户端；空值返回 ""
func ExtractToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 {
		if parts[0] != "Bearer" {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return authHeader
}

// JWTAuth JWT 认证中间件
// 认证失败统一返回 401，error 字段区分 missing/malformed/invalid_or_expired；
// 密钥未初始化属于内部错误，返回 500
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(jwtSecret) == 0 {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "认证服务配置错误",
			})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "缺少认证信息",
				"error":   AuthErrMissing,
			})
			c.Abort()
			return
		}

		tokenString := ExtractToken(authHeader)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "无效的认证格式",
				"error":   AuthErrMalformed,
			})
			c.Abort()
			return
		}

		claims, err := ParseToken(tokenString)
		if err != nil {
			log.Printf("token验证失败: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "无效的token",
				"error":   AuthErrInvalidOrExpired,
			})
			c.Abort()
			return
		}

		// 将用户信息附加到请求上下文
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextTokenID, claims.ID)
		c.Next()
	}
}

// OptionalJWTAuth 可选认证中间件
// 有合法 token 则附加身份，否则匿名继续，不拒绝请求
func OptionalJWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c.GetHeader("Authorization"))
		if tokenString != "" {
			if claims, err := ParseToken(tokenString); err == nil {
				c.Set(ContextUserID, claims.UserID)
				c.Set(ContextUsername, claims.Username)
				c.Set(ContextRole, claims.Role)
				c.Set(ContextTokenID, claims.ID)
			}
		}
		c.Next()
	}
}

// RequireRole 角色校验中间件，需在 JWTAuth 之后使用
// 角色不满足返回 403
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetCurrentRole(c) != role {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "权限不足",
				"error":   AuthErrInsufficientRole,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCurrentUserID 获取当前登录用户ID，未认证返回空字符串
func GetCurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// GetCurrentUsername 获取当前登录用户名
func GetCurrentUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

// GetCurrentRole 获取当前登录用户角色
func GetCurrentRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
