package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/ritmo/internal/config"
	"github.com/ritmo/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg config.AppConfig) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("ritmo_session", store))

	// 静态文件服务
	r.Static("/static", "./web/static")

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		// 目录与账号入口无需会话身份
		apiGroup.GET("/presets", api.Presets)
		apiGroup.GET("/ringtones", api.Ringtones)
		apiGroup.POST("/auth/signup", api.Signup)
		apiGroup.POST("/auth/login", api.Login)
		apiGroup.POST("/auth/logout", api.Logout)
		apiGroup.POST("/auth/reset-request", api.RequestPasswordReset)
		apiGroup.POST("/auth/reset", api.ResetPassword)

		// 例程接口对匿名会话同样开放，身份由会话决定
		apiGroup.GET("/routines", api.ListRoutines)
		apiGroup.POST("/routines", api.CreateRoutine)
		apiGroup.DELETE("/routines/:id", api.DeleteRoutine)
		apiGroup.POST("/routines/:id/complete", api.CompleteRoutine)
		apiGroup.GET("/routines/:id/guide", api.Guide)
		apiGroup.GET("/status", api.Status)
		apiGroup.GET("/alarms", api.Alarms)

		// 需要登录的家长接口
		auth := apiGroup.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/me", api.Me)
			auth.PUT("/me/child-name", api.UpdateChildName)
			auth.PUT("/me/password", api.ChangePassword)
			auth.PUT("/me/pin", api.SetPin)
			auth.POST("/me/pin/verify", api.VerifyPin)
			auth.GET("/progress/history", api.ProgressHistory)
			auth.POST("/uploads", api.UploadImage)
		}
	}

	return r
}
