package db

import (
	"time"

	"gorm.io/gorm"
)

// CompletionLog 记录每日例程完成日志
// UserID + RoutineID + LogDate 采用唯一索引，保证幂等
// RoutineID 为字符串：远端确认的例程使用存储 id，离线例程保留临时 id
type CompletionLog struct {
	gorm.Model
	UserID      uint   `gorm:"index;index:idx_completion_log_unique,unique"`
	RoutineID   string `gorm:"size:64;index:idx_completion_log_unique,unique"`
	RoutineName string
	LogDate     time.Time `gorm:"index:idx_completion_log_unique,unique"`
}

// TableName 重写确保唯一索引作用到 user_id + routine_id + log_date
func (CompletionLog) TableName() string {
	return "completion_logs"
}
