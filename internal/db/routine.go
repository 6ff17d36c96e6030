package db

import "gorm.io/gorm"

// RoutineRecord 定义了例程在远端存储中的持久化形态
// Payload 为例程的不透明 JSON 序列化，读取时由 service 层容错解码
// TimeLabel 冗余存储展示用的 12 小时制时间（例如 "8:00 AM"），便于后台排查
type RoutineRecord struct {
	gorm.Model
	UserID    uint   `gorm:"index;not null"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Name      string `gorm:"not null"`
	TimeLabel string
	Payload   string `gorm:"type:text"`
}

// TableName 指定自定义表名。
func (RoutineRecord) TableName() string {
	return "routine_records"
}
