package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/ritmo/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressService 负责每日完成日志的落库与按周汇总
type ProgressService struct {
	db *gorm.DB
}

// NewProgressService 构造 ProgressService
func NewProgressService(gdb *gorm.DB) *ProgressService {
	return &ProgressService{db: gdb}
}

// Record 幂等记录一次完成：同一用户、例程、日期重复记录为空操作。
func (s *ProgressService) Record(userID uint, routineID, routineName string, day time.Time) error {
	if userID == 0 || strings.TrimSpace(routineID) == "" {
		return fmt.Errorf("user id and routine id are required")
	}

	record := db.CompletionLog{
		UserID:      userID,
		RoutineID:   routineID,
		RoutineName: strings.TrimSpace(routineName),
		LogDate:     normalizeToDate(day),
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "routine_id"}, {Name: "log_date"}},
		DoNothing: true,
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// WeekSummary 表示一周的完成汇总，Label 与历史列表的周区间展示一致
type WeekSummary struct {
	Start          time.Time `json:"-"`
	End            time.Time `json:"-"`
	Label          string    `json:"label"`
	CompletedCount int       `json:"completed_count"`
	ActiveDays     int       `json:"active_days"`
	CompletionRate float64   `json:"completion_rate"`
}

// WeekHistory 返回最近 weeks 周的完成汇总，最新的一周在前。
// 周以周一为界；完成率以当前例程数 × 7 为目标值，目标为零时取完成数。
func (s *ProgressService) WeekHistory(userID uint, weeks int, now time.Time) ([]WeekSummary, error) {
	if weeks <= 0 {
		weeks = 8
	}

	today := normalizeToDate(now)
	weekStart := startOfWeek(today)

	var routineCount int64
	if err := s.db.Model(&db.RoutineRecord{}).Where("user_id = ?", userID).Count(&routineCount).Error; err != nil {
		return nil, fmt.Errorf("count routines: %w", err)
	}

	summaries := make([]WeekSummary, 0, weeks)
	for i := 0; i < weeks; i++ {
		start := weekStart.AddDate(0, 0, -7*i)
		end := start.AddDate(0, 0, 6)

		var logs []db.CompletionLog
		if err := s.db.Where("user_id = ?", userID).
			Where("log_date BETWEEN ? AND ?", start, end).
			Order("log_date ASC").
			Find(&logs).Error; err != nil {
			return nil, fmt.Errorf("list completion logs: %w", err)
		}

		days := map[string]struct{}{}
		for _, log := range logs {
			days[DayKey(log.LogDate)] = struct{}{}
		}

		summary := WeekSummary{
			Start:          start,
			End:            end,
			Label:          fmt.Sprintf("%s – %s", start.Format("January 02, 2006"), end.Format("January 02, 2006")),
			CompletedCount: len(logs),
			ActiveDays:     len(days),
		}

		target := int(routineCount) * 7
		if target <= 0 {
			target = summary.CompletedCount
		}
		if target > 0 {
			summary.CompletionRate = float64(summary.CompletedCount) / float64(target)
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek 返回 t 所在周的周一。
func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return t.AddDate(0, 0, -(weekday - 1))
}
