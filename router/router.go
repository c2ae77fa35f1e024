package router

import (
	"net/http"
	"time"

	"anyu/api"
	"anyu/config"
	_ "anyu/docs"
	"anyu/middleware"
	"anyu/models"
	"anyu/repository"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, store repository.Store) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// CORS 中间件
	r.Use(CORSMiddleware(cfg))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		authHandler := api.NewAuthHandler(cfg, store)

		// 认证相关路由（无需登录）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimit(5, time.Minute), authHandler.Login)
			// 公开资料，带 token 也可访问
			auth.GET("/profile/:id", middleware.OptionalJWTAuth(), authHandler.GetProfile)
		}

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			// 用户相关
			authorized.GET("/auth/me", authHandler.GetMe)
			authorized.POST("/auth/password/change", authHandler.ChangePassword)
			authorized.PUT("/auth/avatar", authHandler.UpdateAvatar)

			// 账单相关
			billHandler := api.NewBillHandler(store)
			bills := authorized.Group("/bills")
			{
				bills.POST("", billHandler.Create)
				bills.GET("", billHandler.List)
				bills.GET("/:id", billHandler.Get)
				bills.PUT("/:id", billHandler.Update)
				bills.DELETE("/:id", billHandler.Delete)
			}

			// 分类相关
			categoryHandler := api.NewCategoryHandler(store)
			categories := authorized.Group("/categories")
			{
				categories.GET("", categoryHandler.List)
				categories.POST("", categoryHandler.Create)
				categories.PUT("/:id", categoryHandler.Update)
				categories.DELETE("/:id", categoryHandler.Delete)
			}

			// 统计相关
			statisticsHandler := api.NewStatisticsHandler(store)
			statistics := authorized.Group("/statistics")
			{
				statistics.GET("/monthly", statisticsHandler.Monthly)
				statistics.GET("/yearly", statisticsHandler.Yearly)
				statistics.GET("/chart", statisticsHandler.Chart)
			}

			// 导出相关
			exportHandler := api.NewExportHandler(store)
			export := authorized.Group("/export")
			{
				export.GET("/csv", exportHandler.ExportCSV)
				export.GET("/excel", exportHandler.ExportExcel)
			}

			// 管理端
			adminHandler := api.NewAdminHandler(cfg, store)
			admin := authorized.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/users", adminHandler.ListUsers)
				admin.POST("/revoke", adminHandler.RevokeSession)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	return r
}

// CORSMiddleware CORS 跨域中间件，允许的来源来自配置
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.CORS.AllowedOrigins))
	for _, origin := range cfg.CORS.AllowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, Accept, Origin, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
