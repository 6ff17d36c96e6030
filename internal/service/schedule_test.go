package service

import (
	"testing"
	"time"
)

func TestToMinutes(t *testing.T) {
	cases := []struct {
		hour   int
		minute int
		period Period
		want   int
	}{
		{12, 0, PeriodAM, 0},   // 午夜
		{12, 0, PeriodPM, 720}, // 正午
		{1, 0, PeriodAM, 60},
		{8, 0, PeriodAM, 480},
		{8, 30, PeriodPM, 1230},
		{11, 59, PeriodPM, 1439},
		{12, 30, PeriodAM, 30},
	}

	for _, c := range cases {
		got := ToMinutes(c.hour, c.minute, c.period)
		if got != c.want {
			t.Fatalf("ToMinutes(%d, %d, %s) = %d, want %d", c.hour, c.minute, c.period, got, c.want)
		}
	}
}

func TestToTodayTimestamp(t *testing.T) {
	now := time.Date(2024, 6, 15, 13, 45, 0, 0, time.Local)
	ts := ToTodayTimestamp(now, 8, 30, PeriodAM)

	want := time.Date(2024, 6, 15, 8, 30, 0, 0, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("expected %v, got %v", want, ts)
	}
}

func TestActiveNextMidDay(t *testing.T) {
	routines := []Routine{
		{ID: "a", Name: "Brush My Teeth", Hour: 8, Period: PeriodAM},
		{ID: "b", Name: "Let's Eat", Hour: 12, Period: PeriodPM},
		{ID: "c", Name: "Bath Time", Hour: 6, Period: PeriodPM},
	}
	done := map[string]struct{}{"a": {}}

	// 下午 1 点：8 点已完成，12 点是最晚的已到点未完成项
	view := ActiveNext(routines, 13*60, done)
	if view.Active == nil || view.Active.ID != "b" {
		t.Fatalf("expected active b, got %+v", view.Active)
	}
	if view.Next == nil || view.Next.ID != "c" {
		t.Fatalf("expected next c, got %+v", view.Next)
	}
	if view.StartInMinutes != 300 {
		t.Fatalf("expected start in 300 minutes, got %d", view.StartInMinutes)
	}
}

func TestActiveNextBeforeFirstRoutine(t *testing.T) {
	routines := []Routine{
		{ID: "a", Hour: 9, Period: PeriodAM},
		{ID: "b", Hour: 3, Period: PeriodPM},
	}

	// 早上 7 点：一天尚未开始，活动项回退到最早的未完成例程
	view := ActiveNext(routines, 7*60, nil)
	if view.Active == nil || view.Active.ID != "a" {
		t.Fatalf("expected active a, got %+v", view.Active)
	}
	if view.Next == nil || view.Next.ID != "a" {
		t.Fatalf("expected next a, got %+v", view.Next)
	}
	if view.StartInMinutes != 120 {
		t.Fatalf("expected start in 120 minutes, got %d", view.StartInMinutes)
	}
}

func TestActiveNextAllDone(t *testing.T) {
	routines := []Routine{
		{ID: "a", Hour: 8, Period: PeriodAM},
		{ID: "b", Hour: 12, Period: PeriodPM},
	}
	done := map[string]struct{}{"a": {}, "b": {}}

	view := ActiveNext(routines, 22*60, done)
	if view.Active != nil {
		t.Fatalf("expected no active routine, got %+v", view.Active)
	}
	if view.Next != nil {
		t.Fatalf("expected no next routine, got %+v", view.Next)
	}
	if view.StartInMinutes != 0 {
		t.Fatalf("expected zero start in, got %d", view.StartInMinutes)
	}
}

func TestActiveNextSameMinuteStable(t *testing.T) {
	// 同一分钟的例程按插入顺序稳定排序
	routines := []Routine{
		{ID: "first", Hour: 9, Period: PeriodAM},
		{ID: "second", Hour: 9, Period: PeriodAM},
	}

	view := ActiveNext(routines, 10*60, nil)
	if view.Active == nil || view.Active.ID != "second" {
		t.Fatalf("expected latest stable pick second, got %+v", view.Active)
	}
}

func TestActiveNextSkipsDoneForNextToo(t *testing.T) {
	routines := []Routine{
		{ID: "a", Hour: 8, Period: PeriodAM},
		{ID: "b", Hour: 6, Period: PeriodPM},
	}
	done := map[string]struct{}{"b": {}}

	// 下一项不受完成状态影响，依旧指向 6 点
	view := ActiveNext(routines, 10*60, done)
	if view.Next == nil || view.Next.ID != "b" {
		t.Fatalf("expected next b regardless of done, got %+v", view.Next)
	}
	if view.Active == nil || view.Active.ID != "a" {
		t.Fatalf("expected active a, got %+v", view.Active)
	}
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2024, 1, 2, 23, 59, 0, 0, time.Local)
	if got := DayKey(ts); got != "2024-01-02" {
		t.Fatalf("unexpected day key: %s", got)
	}
}

func TestTimeLabel(t *testing.T) {
	r := Routine{Hour: 8, Minute: 5, Period: PeriodAM}
	if got := r.TimeLabel(); got != "8:05 AM" {
		t.Fatalf("unexpected time label: %s", got)
	}
}
