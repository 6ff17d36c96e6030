package service

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// memorySnapshot 是测试用的内存快照实现
type memorySnapshot struct {
	data map[string]string
}

func newMemorySnapshot() *memorySnapshot {
	return &memorySnapshot{data: map[string]string{}}
}

func (m *memorySnapshot) Get(key string) (string, bool) {
	value, ok := m.data[key]
	return value, ok
}

func (m *memorySnapshot) Set(key, value string) {
	m.data[key] = value
}

// fakeStore 是测试用的远端存储，可注入错误并阻塞写入
type fakeStore struct {
	records   []StoredRoutine
	nextID    uint
	listErr   error
	insertErr error
	gate      chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (f *fakeStore) ListRoutines(userID uint) ([]StoredRoutine, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]StoredRoutine, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) InsertRoutine(userID uint, name, payload, timeLabel string) (uint, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	id := f.nextID
	f.nextID++
	f.records = append(f.records, StoredRoutine{ID: id, Payload: payload})
	return id, nil
}

func (f *fakeStore) DeleteRoutine(userID uint, id uint) error {
	return nil
}

// recordingPlayer 记录播放请求，可注入失败
type recordingPlayer struct {
	played []string
	err    error
}

func (p *recordingPlayer) Play(url string) error {
	p.played = append(p.played, url)
	return p.err
}

func TestTrackerSeedsWhenEmpty(t *testing.T) {
	snap := newMemorySnapshot()
	tracker := NewTracker(TrackerOptions{Snap: snap})

	routines := tracker.Routines()
	if len(routines) != 1 {
		t.Fatalf("expected 1 seeded routine, got %d", len(routines))
	}
	if routines[0].Name != "Brush My Teeth" {
		t.Fatalf("unexpected seed name: %s", routines[0].Name)
	}
	if routines[0].Ringtone == nil || !strings.Contains(routines[0].Ringtone.URL, "rooster") {
		t.Fatalf("expected rooster ringtone on seed, got %+v", routines[0].Ringtone)
	}
}

func TestTrackerSeedStatusCleared(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local)
	snap := newMemorySnapshot()
	// 快照里残留着示例例程的昨日状态
	snap.Set(snapshotKeyDone+DayKey(now), `["routine-seed"]`)
	snap.Set(snapshotKeyTrig+DayKey(now), `["routine-seed"]`)

	player := &recordingPlayer{}
	tracker := NewTracker(TrackerOptions{Snap: snap, Player: player, Clock: func() time.Time { return now }})

	status := tracker.Status(now)
	if status.DoneCount != 0 {
		t.Fatalf("expected seed done state cleared, got %d done", status.DoneCount)
	}

	// 触发状态也被清零，示例例程应可再次响铃
	tracker.Evaluate(time.Date(2024, 6, 1, 8, 1, 0, 0, time.Local))
	if len(player.played) != 1 {
		t.Fatalf("expected seed alarm to fire once after reset, got %d", len(player.played))
	}
}

func TestTrackerLoadsFromSnapshotWhenStoreFails(t *testing.T) {
	snap := newMemorySnapshot()
	snap.Set(snapshotKeyRoutines, `[{"id":"42","name":"Bath Time","hour":6,"minute":0,"period":"PM"}]`)

	store := newFakeStore()
	store.listErr = errors.New("network down")

	tracker := NewTracker(TrackerOptions{UserID: 7, Store: store, Snap: snap})
	routines := tracker.Routines()
	if len(routines) != 1 || routines[0].Name != "Bath Time" {
		t.Fatalf("expected snapshot fallback, got %+v", routines)
	}
}

func TestTrackerLoadsFromStore(t *testing.T) {
	store := newFakeStore()
	payload := EncodeRoutine(Routine{Name: "Let's Eat", Hour: 12, Period: PeriodPM})
	store.records = append(store.records, StoredRoutine{ID: 9, Payload: payload})

	tracker := NewTracker(TrackerOptions{UserID: 7, Store: store, Snap: newMemorySnapshot()})
	routines := tracker.Routines()
	if len(routines) != 1 {
		t.Fatalf("expected 1 routine from store, got %d", len(routines))
	}
	if routines[0].ID != "9" {
		t.Fatalf("expected store id 9, got %s", routines[0].ID)
	}
	if routines[0].Name != "Let's Eat" {
		t.Fatalf("unexpected name: %s", routines[0].Name)
	}
}

func TestTrackerCreateAssignsTempID(t *testing.T) {
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot()})

	routine := tracker.Create(Routine{Name: "Story Time", Hour: 8, Period: PeriodPM})
	if routine.ID == "" {
		t.Fatal("expected temp id")
	}
	if _, ok := ParseStoreID(routine.ID); ok {
		t.Fatalf("temp id should not parse as store id: %s", routine.ID)
	}
	if len(tracker.Routines()) != 2 {
		t.Fatalf("expected seed + created routine, got %d", len(tracker.Routines()))
	}
}

func TestTrackerCreateDefaultsNameFromPreset(t *testing.T) {
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot()})

	routine := tracker.Create(Routine{
		Hour:   7,
		Period: PeriodPM,
		Preset: &Preset{Key: "washing", Label: "Bath Time"},
	})
	if routine.Name != "Bath Time" {
		t.Fatalf("expected name from preset label, got %q", routine.Name)
	}
}

func TestTrackerReconcilesStoreID(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("cold start")
	store.gate = make(chan struct{})

	tracker := NewTracker(TrackerOptions{UserID: 7, Store: store, Snap: newMemorySnapshot()})
	routine := tracker.Create(Routine{Name: "Homework", Hour: 4, Period: PeriodPM})
	tempID := routine.ID

	// 写入尚未返回时完成例程，随后的 id 重命名必须迁移完成状态
	if err := tracker.Complete(tempID); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	close(store.gate)
	tracker.Flush()

	routines := tracker.Routines()
	var reconciled *Routine
	for i := range routines {
		if routines[i].Name == "Homework" {
			reconciled = &routines[i]
		}
	}
	if reconciled == nil {
		t.Fatal("created routine disappeared")
	}
	if reconciled.ID == tempID {
		t.Fatalf("expected temp id to be replaced, still %s", tempID)
	}
	if _, ok := ParseStoreID(reconciled.ID); !ok {
		t.Fatalf("expected durable store id, got %s", reconciled.ID)
	}

	status := tracker.Status(time.Now())
	found := false
	for _, id := range status.DoneIDs {
		if id == reconciled.ID {
			found = true
		}
		if id == tempID {
			t.Fatal("done set still references temp id")
		}
	}
	if !found {
		t.Fatal("done membership was not migrated to store id")
	}
}

func TestTrackerCreateKeepsTempIDOnInsertFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("cold start")
	store.insertErr = errors.New("write refused")

	tracker := NewTracker(TrackerOptions{UserID: 7, Store: store, Snap: newMemorySnapshot()})
	routine := tracker.Create(Routine{Name: "Homework", Hour: 4, Period: PeriodPM})
	tracker.Flush()

	for _, r := range tracker.Routines() {
		if r.Name == "Homework" && r.ID != routine.ID {
			t.Fatalf("temp id should survive insert failure, got %s", r.ID)
		}
	}
}

func TestTrackerDelete(t *testing.T) {
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot()})
	routine := tracker.Create(Routine{Name: "Nap", Hour: 1, Period: PeriodPM})

	if err := tracker.Delete(routine.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := tracker.Delete(routine.ID); !errors.Is(err, ErrRoutineNotFound) {
		t.Fatalf("expected ErrRoutineNotFound, got %v", err)
	}
}

func TestTrackerCompleteIdempotent(t *testing.T) {
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot()})
	routine := tracker.Create(Routine{Name: "Reading", Hour: 7, Period: PeriodPM})

	if err := tracker.Complete(routine.ID); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if err := tracker.Complete(routine.ID); err != nil {
		t.Fatalf("repeated Complete returned error: %v", err)
	}

	status := tracker.Status(time.Now())
	if status.DoneCount != 1 {
		t.Fatalf("expected done count 1, got %d", status.DoneCount)
	}

	if err := tracker.Complete("missing"); !errors.Is(err, ErrRoutineNotFound) {
		t.Fatalf("expected ErrRoutineNotFound, got %v", err)
	}
}

func TestTrackerDayRolloverResetsState(t *testing.T) {
	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }

	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot(), Clock: clock})
	routine := tracker.Create(Routine{Name: "Bedtime", Hour: 8, Period: PeriodPM})

	if err := tracker.Complete(routine.ID); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got := tracker.Status(now).DoneCount; got != 1 {
		t.Fatalf("expected 1 done today, got %d", got)
	}

	// 跨过午夜后完成集合重置
	tomorrow := now.Add(12 * time.Hour)
	if got := tracker.Status(tomorrow).DoneCount; got != 0 {
		t.Fatalf("expected done reset after rollover, got %d", got)
	}
}

func TestTrackerDayStateSurvivesRestart(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }
	snap := newMemorySnapshot()

	first := NewTracker(TrackerOptions{Snap: snap, Clock: clock})
	routine := first.Create(Routine{Name: "Chores", Hour: 9, Period: PeriodAM})
	if err := first.Complete(routine.ID); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	// 同一快照重新装填，当日完成状态应当还在
	second := NewTracker(TrackerOptions{Snap: snap, Clock: clock})
	if got := second.Status(now).DoneCount; got != 1 {
		t.Fatalf("expected done state to survive restart, got %d", got)
	}
}

func TestTrackerEvaluateFiresOnceInWindow(t *testing.T) {
	player := &recordingPlayer{}
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot(), Player: player, Grace: 5 * time.Minute})
	tracker.Create(Routine{
		Name:     "Wake Up",
		Hour:     7,
		Period:   PeriodAM,
		Ringtone: &Ringtone{Key: "rooster", URL: "/static/alarm/rooster.wav"},
	})

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)

	// 窗口之前不响
	tracker.Evaluate(day.Add(6*time.Hour + 59*time.Minute))
	if len(player.played) != 0 {
		t.Fatalf("fired before window: %v", player.played)
	}

	// 窗口内响一次
	tracker.Evaluate(day.Add(7*time.Hour + 2*time.Minute))
	if len(player.played) != 1 {
		t.Fatalf("expected exactly 1 alarm, got %d", len(player.played))
	}

	// 同窗口再评估不重复响
	tracker.Evaluate(day.Add(7*time.Hour + 3*time.Minute))
	if len(player.played) != 1 {
		t.Fatalf("alarm fired twice in the same day: %d", len(player.played))
	}
}

func TestTrackerEvaluateWindowUpperBoundExclusive(t *testing.T) {
	player := &recordingPlayer{}
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot(), Player: player, Grace: 5 * time.Minute})
	tracker.Create(Routine{
		Name:     "Wake Up",
		Hour:     7,
		Period:   PeriodAM,
		Ringtone: &Ringtone{Key: "rooster", URL: "/static/alarm/rooster.wav"},
	})

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)

	// 恰好到达宽限期上界，不再触发
	tracker.Evaluate(day.Add(7*time.Hour + 5*time.Minute))
	if len(player.played) != 0 {
		t.Fatalf("fired at grace boundary: %v", player.played)
	}
}

func TestTrackerEvaluateSkipsDoneAndSilent(t *testing.T) {
	player := &recordingPlayer{}
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot(), Player: player, Grace: 5 * time.Minute})

	withBell := tracker.Create(Routine{
		Name:     "Wake Up",
		Hour:     7,
		Period:   PeriodAM,
		Ringtone: &Ringtone{Key: "rooster", URL: "/static/alarm/rooster.wav"},
	})
	tracker.Create(Routine{Name: "Quiet Time", Hour: 7, Period: PeriodAM})

	if err := tracker.Complete(withBell.ID); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	tracker.Evaluate(day.Add(7*time.Hour + 1*time.Minute))
	if len(player.played) != 0 {
		t.Fatalf("expected no alarms, got %v", player.played)
	}
}

func TestTrackerEvaluateMarksBeforePlay(t *testing.T) {
	player := &recordingPlayer{err: errors.New("speaker broken")}
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot(), Player: player, Grace: 5 * time.Minute})
	tracker.Create(Routine{
		Name:     "Wake Up",
		Hour:     7,
		Period:   PeriodAM,
		Ringtone: &Ringtone{Key: "rooster", URL: "/static/alarm/rooster.wav"},
	})

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	tracker.Evaluate(day.Add(7*time.Hour + 1*time.Minute))
	if len(player.played) != 1 {
		t.Fatalf("expected 1 playback attempt, got %d", len(player.played))
	}

	// 播放失败也算触发过了，宁可漏响不可重复响
	tracker.Evaluate(day.Add(7*time.Hour + 2*time.Minute))
	if len(player.played) != 1 {
		t.Fatalf("alarm retried after failed playback: %d", len(player.played))
	}
}

func TestTrackerPendingAlarmsDrain(t *testing.T) {
	tracker := NewTracker(TrackerOptions{Snap: newMemorySnapshot(), Grace: 5 * time.Minute})
	tracker.Create(Routine{
		Name:     "Wake Up",
		Hour:     7,
		Period:   PeriodAM,
		Ringtone: &Ringtone{Key: "rooster", URL: "/static/alarm/rooster.wav"},
	})

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	tracker.Evaluate(day.Add(7*time.Hour + 1*time.Minute))

	events := tracker.PendingAlarms()
	if len(events) != 1 {
		t.Fatalf("expected 1 pending alarm, got %d", len(events))
	}
	if events[0].URL != "/static/alarm/rooster.wav" {
		t.Fatalf("unexpected alarm url: %s", events[0].URL)
	}

	if again := tracker.PendingAlarms(); len(again) != 0 {
		t.Fatalf("drain should empty the feed, got %d", len(again))
	}
}
