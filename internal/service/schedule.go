package service

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Period 表示 12 小时制的上/下午
type Period string

const (
	PeriodAM Period = "AM"
	PeriodPM Period = "PM"
)

const dateFormat = "2006-01-02"

// Preset 描述例程的视觉分类（刷牙、吃饭、洗澡等）
type Preset struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Ringtone 描述例程的闹铃音频
type Ringtone struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Routine 是追踪器的核心领域对象
// 时间字段始终按"评估当天的本地时间"解释，不存储时区
// ID 存在两个命名空间：本地生成的临时 uuid，以及远端写入成功后替换的存储 id
type Routine struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Hour         int       `json:"hour"`
	Minute       int       `json:"minute"`
	Period       Period    `json:"period"`
	Preset       *Preset   `json:"preset,omitempty"`
	RingtoneName string    `json:"ringtone_name,omitempty"`
	Ringtone     *Ringtone `json:"ringtone,omitempty"`
}

// ToMinutes 将 12 小时制时间换算为 [0,1439] 的当日分钟数。
// 小时 12 在叠加 PM 偏移前先归零：12:00 AM = 0，12:00 PM = 720。
func ToMinutes(hour, minute int, period Period) int {
	h := hour % 12
	if period == PeriodPM {
		h += 12
	}
	return h*60 + minute
}

// Minutes 返回例程的当日分钟数。
func (r Routine) Minutes() int {
	return ToMinutes(r.Hour, r.Minute, r.Period)
}

// TimeLabel 返回展示用的 12 小时制时间，例如 "8:05 AM"。
func (r Routine) TimeLabel() string {
	return fmt.Sprintf("%d:%02d %s", r.Hour, r.Minute, r.Period)
}

// ToTodayTimestamp 将时分换算为 now 所在日历日的绝对时间点。
func ToTodayTimestamp(now time.Time, hour, minute int, period Period) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.Add(time.Duration(ToMinutes(hour, minute, period)) * time.Minute)
}

// DayKey 返回日历日作用域键（YYYY-MM-DD），完成/触发记录以它隔离。
func DayKey(t time.Time) string {
	return t.Format(dateFormat)
}

// MinuteOfDay 返回 t 的当日分钟数。
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ScheduleView 汇总活动/下一项推导结果
type ScheduleView struct {
	Active         *Routine
	Next           *Routine
	StartInMinutes int
}

// ActiveNext 由例程列表、当前分钟数和完成集合纯函数式推导活动与下一项例程：
//   - 活动例程取未完成中计划时间 ≤ 当前时间里最晚的一个；若全部都在未来，
//     则回退到最早的未完成例程（一天尚未开始时默认展示"接下来的第一件事"）
//   - 下一项取计划时间严格大于当前时间的最早例程，完成与否均参与，
//     排序按分钟数升序、同分按插入顺序（稳定排序）
//   - StartInMinutes 为下一项与当前的分钟差，下限为 0
func ActiveNext(routines []Routine, nowMinute int, done map[string]struct{}) ScheduleView {
	sorted := make([]Routine, len(routines))
	copy(sorted, routines)
	slices.SortStableFunc(sorted, func(a, b Routine) int {
		return cmp.Compare(a.Minutes(), b.Minutes())
	})

	view := ScheduleView{}

	for i := range sorted {
		r := sorted[i]
		if _, ok := done[r.ID]; ok {
			continue
		}
		if r.Minutes() <= nowMinute {
			// 稳定取最晚的已到点未完成例程，已流逝多项时不抖动
			view.Active = &sorted[i]
		} else if view.Active == nil {
			view.Active = &sorted[i]
			break
		} else {
			break
		}
	}

	for i := range sorted {
		if sorted[i].Minutes() > nowMinute {
			view.Next = &sorted[i]
			break
		}
	}

	if view.Next != nil {
		view.StartInMinutes = view.Next.Minutes() - nowMinute
		if view.StartInMinutes < 0 {
			view.StartInMinutes = 0
		}
	}

	return view
}
