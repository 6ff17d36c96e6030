package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ritmo/internal/db"
	"gorm.io/gorm"
)

// ErrRoutineRecordNotFound 在指定例程记录不存在时返回
var ErrRoutineRecordNotFound = errors.New("routine record not found")

// StoredRoutine 表示远端存储返回的单条记录：存储 id 加不透明载荷
type StoredRoutine struct {
	ID      uint
	Payload string
}

// DurableStore 抽象按用户隔离的远端持久化存储
// 追踪器在加载时读取、在变更时异步写入；实现不可被调用方阻塞
type DurableStore interface {
	ListRoutines(userID uint) ([]StoredRoutine, error)
	InsertRoutine(userID uint, name, payload, timeLabel string) (uint, error)
	DeleteRoutine(userID uint, id uint) error
}

// RoutineStore 基于 gorm 实现 DurableStore
type RoutineStore struct {
	db *gorm.DB
}

// NewRoutineStore 构造 RoutineStore
func NewRoutineStore(gdb *gorm.DB) *RoutineStore {
	return &RoutineStore{db: gdb}
}

// ListRoutines 返回指定用户的全部例程记录，按创建时间升序保持插入顺序
func (s *RoutineStore) ListRoutines(userID uint) ([]StoredRoutine, error) {
	var records []db.RoutineRecord
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}

	stored := make([]StoredRoutine, 0, len(records))
	for _, record := range records {
		stored = append(stored, StoredRoutine{ID: record.ID, Payload: record.Payload})
	}
	return stored, nil
}

// InsertRoutine 写入一条例程记录并返回存储 id
func (s *RoutineStore) InsertRoutine(userID uint, name, payload, timeLabel string) (uint, error) {
	record := db.RoutineRecord{
		UserID:    userID,
		Name:      name,
		TimeLabel: timeLabel,
		Payload:   payload,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return 0, fmt.Errorf("insert routine: %w", err)
	}
	return record.ID, nil
}

// DeleteRoutine 删除指定用户名下的例程记录
func (s *RoutineStore) DeleteRoutine(userID uint, id uint) error {
	result := s.db.Where("user_id = ?", userID).Delete(&db.RoutineRecord{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete routine: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRoutineRecordNotFound
	}
	return nil
}

// EncodeRoutine 将例程序列化为不透明 JSON 载荷，需与 DecodeRoutine 无损往返。
func EncodeRoutine(r Routine) string {
	data, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodeRoutine 容错解码存储载荷：单条记录损坏时退化为空例程，
// 绝不让错误越过加载边界中断整批读取。
func DecodeRoutine(payload string) Routine {
	var r Routine
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Routine{}
	}
	return r
}

// FormatStoreID 将存储 id 映射到例程 id 命名空间。
func FormatStoreID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseStoreID 尝试把例程 id 解析回存储 id；临时 uuid 会解析失败。
func ParseStoreID(id string) (uint, bool) {
	parsed, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(parsed), true
}
