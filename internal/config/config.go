package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr     string
	Port           string
	DatabasePath   string
	SnapshotPath   string
	SessionSecret  string
	GinMode        string
	AssetDir       string
	AssetURLPath   string
	AlarmDir       string
	AlarmURLPath   string
	UploadDir      string
	UploadURLPath  string
	ParentEmail    string
	ParentPassword string
	AlarmTick      time.Duration
	AlarmGrace     time.Duration
}

const (
	defaultAlarmTick  = 15 * time.Second
	defaultAlarmGrace = 5 * time.Minute
)

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 闹钟轮询间隔必须严格小于触发宽限期，否则回退默认值，
// 保证每个触发窗口至少被观察到一次。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "ritmo.db"
	}

	snapshotPath := strings.TrimSpace(os.Getenv("SNAPSHOT_PATH"))
	if snapshotPath == "" {
		snapshotPath = "ritmo-local.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "ritmo-dev-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	assetDir := strings.TrimSpace(os.Getenv("ASSET_DIR"))
	if assetDir == "" {
		assetDir = "web/static/asset-gif"
	}

	assetURLPath := strings.TrimSpace(os.Getenv("ASSET_URL_PATH"))
	if assetURLPath == "" {
		assetURLPath = "/static/asset-gif"
	}

	alarmDir := strings.TrimSpace(os.Getenv("ALARM_DIR"))
	if alarmDir == "" {
		alarmDir = "web/static/alarm"
	}

	alarmURLPath := strings.TrimSpace(os.Getenv("ALARM_URL_PATH"))
	if alarmURLPath == "" {
		alarmURLPath = "/static/alarm"
	}

	uploadDir := strings.TrimSpace(os.Getenv("UPLOAD_DIR"))
	if uploadDir == "" {
		uploadDir = "web/static/uploads"
	}

	uploadURLPath := strings.TrimSpace(os.Getenv("UPLOAD_URL_PATH"))
	if uploadURLPath == "" {
		uploadURLPath = "/static/uploads"
	}

	alarmTick := parseDuration(os.Getenv("ALARM_TICK"), defaultAlarmTick)
	alarmGrace := parseDuration(os.Getenv("ALARM_GRACE"), defaultAlarmGrace)
	if alarmTick >= alarmGrace {
		alarmTick = defaultAlarmTick
		alarmGrace = defaultAlarmGrace
	}

	parentEmail := strings.TrimSpace(os.Getenv("RITMO_PARENT_EMAIL"))
	parentPassword := strings.TrimSpace(os.Getenv("RITMO_PARENT_PASSWORD"))

	return AppConfig{
		ListenAddr:     listenAddr,
		Port:           port,
		DatabasePath:   databasePath,
		SnapshotPath:   snapshotPath,
		SessionSecret:  sessionSecret,
		GinMode:        ginMode,
		AssetDir:       assetDir,
		AssetURLPath:   assetURLPath,
		AlarmDir:       alarmDir,
		AlarmURLPath:   alarmURLPath,
		UploadDir:      uploadDir,
		UploadURLPath:  uploadURLPath,
		ParentEmail:    parentEmail,
		ParentPassword: parentPassword,
		AlarmTick:      alarmTick,
		AlarmGrace:     alarmGrace,
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
