package service

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// 快照键名：例程列表为固定键，完成/触发集合拼接日历日
const (
	snapshotKeyRoutines = "routines"
	snapshotKeyDone     = "routines.done."
	snapshotKeyTrig     = "routines.trig."
)

// Snapshot 抽象本地快照存储：按固定键名读写字符串。
// 写入相对调用方是即发即忘的，失败不向上冒泡。
type Snapshot interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// snapshotEntry 为本地快照的键值对表模型
type snapshotEntry struct {
	ID    uint   `gorm:"primaryKey"`
	Key   string `gorm:"size:128;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

func (snapshotEntry) TableName() string {
	return "snapshot_entries"
}

// LocalSnapshot 基于独立 sqlite 文件实现 Snapshot，对应浏览器本地存储的角色
type LocalSnapshot struct {
	db *gorm.DB
}

// OpenLocalSnapshot 打开（或创建）本地快照库。
func OpenLocalSnapshot(path string) (*LocalSnapshot, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "ritmo-local.db"
	}

	gdb, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	if err := gdb.AutoMigrate(&snapshotEntry{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot store: %w", err)
	}

	return &LocalSnapshot{db: gdb}, nil
}

// Get 读取键值，键不存在时返回 false。
func (s *LocalSnapshot) Get(key string) (string, bool) {
	var entry snapshotEntry
	if err := s.db.Where("key = ?", key).First(&entry).Error; err != nil {
		// 读失败视同缺失，调用方走空集合
		return "", false
	}
	return entry.Value, true
}

// Set 写入键值，已存在时覆盖。
func (s *LocalSnapshot) Set(key, value string) {
	s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&snapshotEntry{Key: key, Value: value})
}

// Scoped 返回带前缀视图，隔离不同身份/会话的快照键。
func (s *LocalSnapshot) Scoped(scope string) Snapshot {
	trimmed := strings.TrimSpace(scope)
	if trimmed == "" {
		return s
	}
	return &scopedSnapshot{inner: s, prefix: trimmed + "."}
}

type scopedSnapshot struct {
	inner  Snapshot
	prefix string
}

func (s *scopedSnapshot) Get(key string) (string, bool) {
	return s.inner.Get(s.prefix + key)
}

func (s *scopedSnapshot) Set(key, value string) {
	s.inner.Set(s.prefix+key, value)
}
