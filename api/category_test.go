package api

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"anyu/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func categoryTestRouter(store *fakeStore, user models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewCategoryHandler(store)
	router := gin.New()
	router.Use(authAs(user))
	router.GET("/categories", handler.List)
	router.POST("/categories", handler.Create)
	router.PUT("/categories/:id", handler.Update)
	router.DELETE("/categories/:id", handler.Delete)
	return router
}

func TestCategoryHandler_List(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice", "hash", models.RoleUser)
	bob := store.addUser("bob", "hash", models.RoleUser)
	store.addCategory(nil, "交通", models.TypeOutcome, true)
	store.addCategory(&alice.UserID, "餐饮", models.TypeOutcome, false)
	store.addCategory(&bob.UserID, "宠物", models.TypeOutcome, false)

	// 本人分类 + 默认分类，不含他人分类
	router := categoryTestRouter(store, alice)
	w := doRequest(router, "GET", "/categories", "")
	assert.Equal(t, 200, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	results := resp.Data.(map[string]interface{})["results"].([]interface{})
	assert.Len(t, results, 2)
	assert.NotContains(t, w.Body.String(), "宠物")

	// 类型过滤
	store.addCategory(&alice.UserID, "工资", models.TypeIncome, false)
	w2 := doRequest(router, "GET", "/categories?type=income", "")
	var resp2 Response
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	results2 := resp2.Data.(map[string]interface{})["results"].([]interface{})
	assert.Len(t, results2, 1)

	// 类型非法
	w3 := doRequest(router, "GET", "/categories?type=transfer", "")
	assert.Equal(t, 400, w3.Code)
}

func TestCategoryHandler_Create(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "hash", models.RoleUser)
	router := categoryTestRouter(store, user)

	w := doRequest(router, "POST", "/categories", `{"name":"餐饮","type":"outcome","icon":"food","color":"#ef4444"}`)
	assert.Equal(t, 201, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "餐饮", data["name"])
	assert.Equal(t, user.UserID, data["user_id"])
	assert.Equal(t, false, data["is_default"])

	// 省略图标与颜色时使用默认值
	w2 := doRequest(router, "POST", "/categories", `{"name":"购物","type":"outcome"}`)
	assert.Equal(t, 201, w2.Code)
	var resp2 Response
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	data2 := resp2.Data.(map[string]interface{})
	assert.Equal(t, "default", data2["icon"])
	assert.Equal(t, "#000000", data2["color"])
}

func TestCategoryHandler_Create_Duplicate(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "hash", models.RoleUser)
	store.addCategory(&user.UserID, "餐饮", models.TypeOutcome, false)
	router := categoryTestRouter(store, user)

	// 同名同类型重复
	w := doRequest(router, "POST", "/categories", `{"name":"餐饮","type":"outcome"}`)
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "分类已存在")

	// 同名不同类型允许
	w2 := doRequest(router, "POST", "/categories", `{"name":"餐饮","type":"income"}`)
	assert.Equal(t, 201, w2.Code)
}

func TestCategoryHandler_Create_InvalidInput(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "hash", models.RoleUser)
	router := categoryTestRouter(store, user)

	// 名称仅空白
	w := doRequest(router, "POST", "/categories", `{"name":"   ","type":"outcome"}`)
	assert.Equal(t, 400, w.Code)

	// 类型非法
	w2 := doRequest(router, "POST", "/categories", `{"name":"餐饮","type":"transfer"}`)
	assert.Equal(t, 400, w2.Code)

	// 颜色格式非法
	w3 := doRequest(router, "POST", "/categories", `{"name":"餐饮","type":"outcome","color":"red"}`)
	assert.Equal(t, 400, w3.Code)
}

func TestCategoryHandler_Update(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "hash", models.RoleUser)
	cat := store.addCategory(&user.UserID, "餐饮", models.TypeOutcome, false)
	router := categoryTestRouter(store, user)

	w := doRequest(router, "PUT", fmt.Sprintf("/categories/%d", cat.ID), `{"name":"一日三餐","color":"#22c55e"}`)
	assert.Equal(t, 200, w.Code)

	updated, err := store.GetCategory(context.Background(), cat.ID, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "一日三餐", updated.Name)
	assert.Equal(t, "#22c55e", updated.Color)

	// 空变更
	w2 := doRequest(router, "PUT", fmt.Sprintf("/categories/%d", cat.ID), `{}`)
	assert.Equal(t, 200, w2.Code)
	assert.Contains(t, w2.Body.String(), "无需更新")
}

func TestCategoryHandler_Update_DefaultImmutable(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "hash", models.RoleUser)
	def := store.addCategory(nil, "交通", models.TypeOutcome, true)
	router := categoryTestRouter(store, user)

	// 默认分类可见但不可修改
	w := doRequest(router, "PUT", fmt.Sprintf("/categories/%d", def.ID), `{"name":"打车"}`)
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "默认分类不可修改")
}

func TestCategoryHandler_Update_Foreign(t *testing.T) {
	store := newFakeStore()
	alice := store.addUser("alice", "hash", models.RoleUser)
	bob := store.addUser("bob", "hash", models.RoleUser)
	bobCat := store.addCategory(&bob.UserID, "宠物", models.TypeOutcome, false)

	// 他人分类不可见，404 而非 403
	router := categoryTestRouter(store, alice)
	w := doRequest(router, "PUT", fmt.Sprintf("/categories/%d", bobCat.ID), `{"name":"改名"}`)
	assert.Equal(t, 404, w.Code)
}

func TestCategoryHandler_Update_DuplicateName(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "hash", models.RoleUser)
	store.addCategory(&user.UserID, "餐饮", models.TypeOutcome, false)
	cat := store.addCategory(&user.UserID, "购物", models.TypeOutcome, false)
	router := categoryTestRouter(store, user)

	w := doRequest(router, "PUT", fmt.Sprintf("/categories/%d", cat.ID), `{"name":"餐饮"}`)
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "分类已存在")
}

func TestCategoryHandler_Delete(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "hash", models.RoleUser)
	cat := store.addCategory(&user.UserID, "餐饮", models.TypeOutcome, false)
	router := categoryTestRouter(store, user)

	w := doRequest(router, "DELETE", fmt.Sprintf("/categories/%d", cat.ID), "")
	assert.Equal(t, 200, w.Code)

	_, err := store.GetCategory(context.Background(), cat.ID, user.UserID)
	assert.Error(t, err)
}

func TestCategoryHandler_Delete_Blocked(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("alice", "hash", models.RoleUser)
	def := store.addCategory(nil, "交通", models.TypeOutcome, true)
	cat := store.addCategory(&user.UserID, "餐饮", models.TypeOutcome, false)
	store.addBill(user.UserID, 50, models.TypeOutcome, cat.ID, "2024-01-15")
	router := categoryTestRouter(store, user)

	// 默认分类不可删除
	w := doRequest(router, "DELETE", fmt.Sprintf("/categories/%d", def.ID), "")
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "默认分类不可删除")

	// 仍被账单引用的分类不可删除
	w2 := doRequest(router, "DELETE", fmt.Sprintf("/categories/%d", cat.ID), "")
	assert.Equal(t, 400, w2.Code)
	assert.Contains(t, w2.Body.String(), "仍有账单")

	// 不存在的分类
	w3 := doRequest(router, "DELETE", "/categories/99999", "")
	assert.Equal(t, 404, w3.Code)
}
