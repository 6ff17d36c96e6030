package handler

import (
	"fmt"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ritmo/internal/service"
	"gorm.io/gorm"
)

// API 汇集各 HTTP 处理器共享的依赖
type API struct {
	db        *gorm.DB
	trackers  *service.TrackerRegistry
	catalog   *service.CatalogService
	guide     *service.GuideService
	progress  *service.ProgressService
	guided    service.GuidedPolicy
	uploadDir string
	uploadURL string
}

// APIOptions 描述构造 API 所需的依赖。
type APIOptions struct {
	DB        *gorm.DB
	Trackers  *service.TrackerRegistry
	Catalog   *service.CatalogService
	Guide     *service.GuideService
	Progress  *service.ProgressService
	Guided    service.GuidedPolicy
	UploadDir string
	UploadURL string
}

// NewAPI 构造处理器集合
func NewAPI(opts APIOptions) *API {
	guided := opts.Guided
	if guided == nil {
		guided = service.VocabularyPolicy(service.DefaultGuidedVocabulary...)
	}

	return &API{
		db:        opts.DB,
		trackers:  opts.Trackers,
		catalog:   opts.Catalog,
		guide:     opts.Guide,
		progress:  opts.Progress,
		guided:    guided,
		uploadDir: opts.UploadDir,
		uploadURL: opts.UploadURL,
	}
}

// currentUserID 从会话读取登录用户 id，未登录返回 0。
func currentUserID(c *gin.Context) uint {
	session := sessions.Default(c)
	raw := session.Get("user_id")
	println("DEBUG currentUserID raw:", fmt.Sprintf("%T %v", raw, raw))
	if raw == nil {
		return 0
	}
	if id, ok := raw.(uint); ok {
		return id
	}
	return 0
}

// trackerFor 解析当前请求应使用的追踪器：
// 已登录走远端存储；匿名请求按会话 id 取本地追踪器（无身份属合法模式）。
func (a *API) trackerFor(c *gin.Context) *service.Tracker {
	if userID := currentUserID(c); userID != 0 {
		return a.trackers.ForUser(userID)
	}

	session := sessions.Default(c)
	anonID, _ := session.Get("anon_id").(string)
	if anonID == "" {
		anonID = uuid.NewString()
		session.Set("anon_id", anonID)
		session.Save()
	}
	return a.trackers.ForSession(anonID)
}
