package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/ritmo/internal/config"
	"github.com/ritmo/internal/db"
	"github.com/ritmo/internal/handler"
	"github.com/ritmo/internal/router"
	"github.com/ritmo/internal/service"
)

func main() {
	// .env 缺失不算错误，继续使用环境变量与默认值
	_ = godotenv.Load()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	if cfg.ParentEmail != "" && cfg.ParentPassword != "" {
		if err := db.EnsureUser(cfg.ParentEmail, cfg.ParentPassword); err != nil {
			log.Fatalf("failed to ensure parent account: %v", err)
		}
	}

	snap, err := service.OpenLocalSnapshot(cfg.SnapshotPath)
	if err != nil {
		log.Fatalf("failed to open local snapshot: %v", err)
	}

	store := service.NewRoutineStore(db.DB)
	trackers := service.NewTrackerRegistry(store, snap, cfg.AlarmGrace)

	api := handler.NewAPI(handler.APIOptions{
		DB:        db.DB,
		Trackers:  trackers,
		Catalog:   service.NewCatalogService(cfg.AssetDir, cfg.AssetURLPath, cfg.AlarmDir, cfg.AlarmURLPath),
		Guide:     service.NewGuideService(""),
		Progress:  service.NewProgressService(db.DB),
		UploadDir: cfg.UploadDir,
		UploadURL: cfg.UploadURLPath,
	})

	// 后台闹钟调度
	scheduler := service.NewAlarmScheduler(trackers, cfg.AlarmTick)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
