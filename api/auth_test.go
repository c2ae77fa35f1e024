package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
	"unicode/utf8"

	"anyu/config"
	"anyu/middleware"
	"anyu/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testConfig 测试用配置，同时初始化 JWT 密钥
func testConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		JWT: config.JWTConfig{
			Secret:      "test-jwt-secret-key",
			ExpireHours: 24,
			ExpireTime:  24 * time.Hour,
		},
	}
	middleware.InitJWT(cfg)
	return cfg
}

// authAs 模拟已通过认证中间件的请求上下文
func authAs(user models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, user.UserID)
		c.Set(middleware.ContextUsername, user.Username)
		c.Set(middleware.ContextRole, user.Role)
		c.Next()
	}
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func hashPassword(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthHandler_Register(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.POST("/register", handler.Register)

	w := doRequest(router, "POST", "/register", `{"username":"alice","password":"secret123"}`)
	assert.Equal(t, 201, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "注册成功", resp.Message)

	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["userId"])
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, models.RoleUser, data["role"])
	// 响应不包含任何凭据字段
	assert.NotContains(t, w.Body.String(), "password")

	// 用户已落库且密码是 bcrypt 哈希
	user, err := store.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))

	// 颁发的 token 可解析且指向新用户
	claims, err := middleware.ParseToken(data["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, user.UserID, claims.UserID)
}

func TestAuthHandler_Register_MultibyteUsername(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.POST("/register", handler.Register)

	w := doRequest(router, "POST", "/register", `{"username":"张三丰","password":"secret123"}`)
	assert.Equal(t, 201, w.Code)

	// 默认头像按 rune 取首字符，不能出现按字节截断的乱码
	user, err := store.GetUserByUsername(context.Background(), "张三丰")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(user.AvatarURL))
	assert.Contains(t, user.AvatarURL, url.QueryEscape("张"))
}

func TestAuthHandler_Register_DuplicateUsername(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	store.addUser("alice", hashPassword(t, "secret123"), models.RoleUser)
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.POST("/register", handler.Register)

	w := doRequest(router, "POST", "/register", `{"username":"alice","password":"other456"}`)
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "用户名已存在")
}

func TestAuthHandler_Register_InvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(testConfig(), newFakeStore())

	router := gin.New()
	router.POST("/register", handler.Register)

	// 密码过短
	w := doRequest(router, "POST", "/register", `{"username":"alice","password":"123"}`)
	assert.Equal(t, 400, w.Code)

	// 用户名过短
	w2 := doRequest(router, "POST", "/register", `{"username":"ab","password":"secret123"}`)
	assert.Equal(t, 400, w2.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	user := store.addUser("alice", hashPassword(t, "secret123"), models.RoleUser)
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.POST("/login", handler.Login)

	w := doRequest(router, "POST", "/login", `{"username":"alice","password":"secret123"}`)
	assert.Equal(t, 200, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, user.UserID, data["userId"])
	assert.NotEmpty(t, data["token"])
}

func TestAuthHandler_Login_BadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	store.addUser("alice", hashPassword(t, "secret123"), models.RoleUser)
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.POST("/login", handler.Login)

	// 密码错误
	w := doRequest(router, "POST", "/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, 401, w.Code)

	// 用户不存在，响应与密码错误不可区分
	w2 := doRequest(router, "POST", "/login", `{"username":"nobody","password":"secret123"}`)
	assert.Equal(t, 401, w2.Code)
	assert.JSONEq(t, w.Body.String(), w2.Body.String())
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	user := store.addUser("alice", hashPassword(t, "secret123"), models.RoleUser)
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.POST("/password/change", authAs(user), handler.ChangePassword)

	// 旧密码错误
	w := doRequest(router, "POST", "/password/change", `{"old_password":"wrong","new_password":"newsecret456"}`)
	assert.Equal(t, 401, w.Code)

	// 修改成功
	w2 := doRequest(router, "POST", "/password/change", `{"old_password":"secret123","new_password":"newsecret456"}`)
	assert.Equal(t, 200, w2.Code)
	assert.Contains(t, w2.Body.String(), "密码修改成功")

	updated, err := store.GetUserByID(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newsecret456")))
}

func TestAuthHandler_UpdateAvatar(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	user := store.addUser("alice", hashPassword(t, "secret123"), models.RoleUser)
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.PUT("/avatar", authAs(user), handler.UpdateAvatar)

	w := doRequest(router, "PUT", "/avatar", `{"avatar_url":"https://example.com/new.png"}`)
	assert.Equal(t, 200, w.Code)

	updated, err := store.GetUserByID(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new.png", updated.AvatarURL)

	// 非法 URL
	w2 := doRequest(router, "PUT", "/avatar", `{"avatar_url":"not-a-url"}`)
	assert.Equal(t, 400, w2.Code)
}

func TestAuthHandler_GetProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	user := store.addUser("alice", hashPassword(t, "secret123"), models.RoleUser)
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.GET("/profile/:id", handler.GetProfile)

	w := doRequest(router, "GET", "/profile/"+user.UserID, "")
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
	// 公开资料不含凭据
	assert.NotContains(t, w.Body.String(), "password")

	w2 := doRequest(router, "GET", "/profile/no-such-user", "")
	assert.Equal(t, 404, w2.Code)
}

func TestAuthHandler_GetMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	user := store.addUser("alice", hashPassword(t, "secret123"), models.RoleUser)
	handler := NewAuthHandler(testConfig(), store)

	router := gin.New()
	router.GET("/me", authAs(user), handler.GetMe)

	w := doRequest(router, "GET", "/me", "")
	assert.Equal(t, 200, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, user.UserID, data["user_id"])
	assert.Equal(t, "alice", data["username"])
}
