package service

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRoutineNotFound 在指定例程不在当前集合中时返回
var ErrRoutineNotFound = errors.New("routine not found")

// seedRoutineID 为示例例程的固定 id，其完成/触发状态在每次播种时清零
const seedRoutineID = "routine-seed"

// dayState 持有"当前日历日键"与两个日界作用域的 id 集合
// 日键变化时显式重置，绝不跨日读取
type dayState struct {
	key  string
	done map[string]struct{}
	trig map[string]struct{}
}

// TrackerOptions 描述构造追踪器所需的协作方
// Store 为空或 UserID 为零表示无身份的本地模式
// Player 为空时使用内置的闹铃事件队列，由前端拉取后播放
type TrackerOptions struct {
	UserID uint
	Store  DurableStore
	Snap   Snapshot
	Player Player
	Clock  func() time.Time
	Grace  time.Duration
}

// Tracker 维护单个用户的例程集合、每日完成/触发状态与闹铃评估
// 内存状态是会话期间的事实来源，远端写入结果不回滚本地状态
type Tracker struct {
	mu       sync.Mutex
	userID   uint
	store    DurableStore
	snap     Snapshot
	player   Player
	feed     *AlarmFeed
	now      func() time.Time
	grace    time.Duration
	routines []Routine
	day      dayState
	wg       sync.WaitGroup
}

// NewTracker 构造 Tracker 并完成初始加载。
func NewTracker(opts TrackerOptions) *Tracker {
	t := &Tracker{
		userID: opts.UserID,
		store:  opts.Store,
		snap:   opts.Snap,
		player: opts.Player,
		now:    opts.Clock,
		grace:  opts.Grace,
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.grace <= 0 {
		t.grace = 5 * time.Minute
	}
	if t.player == nil {
		t.feed = NewAlarmFeed()
		t.player = t.feed
	}
	t.Load()
	return t
}

// Load 按优先级装填内存集合：远端 → 本地快照 → 示例例程。
// 每个来源要么整体成功要么整体放弃，绝不留下半加载状态；
// 任何解码或网络错误都被吞掉，最坏结果是空列表。
func (t *Tracker) Load() {
	t.mu.Lock()
	defer t.mu.Unlock()

	loaded := false

	if t.store != nil && t.userID != 0 {
		if records, err := t.store.ListRoutines(t.userID); err == nil {
			routines := make([]Routine, 0, len(records))
			for _, record := range records {
				r := DecodeRoutine(record.Payload)
				r.ID = FormatStoreID(record.ID)
				routines = append(routines, r)
			}
			t.routines = routines
			loaded = true
		}
	}

	if !loaded && t.snap != nil {
		if raw, ok := t.snap.Get(snapshotKeyRoutines); ok {
			var routines []Routine
			if err := json.Unmarshal([]byte(raw), &routines); err == nil {
				t.routines = routines
				loaded = true
			}
		}
	}

	seeded := false
	if !loaded {
		t.routines = []Routine{seedRoutine()}
		seeded = true
	}

	t.reloadDayLocked(t.now())

	if seeded {
		// 示例例程每次重新出现都要像全新的一天一样
		delete(t.day.done, seedRoutineID)
		delete(t.day.trig, seedRoutineID)
		t.persistDoneLocked()
		t.persistTrigLocked()
	}
}

func seedRoutine() Routine {
	return Routine{
		ID:     seedRoutineID,
		Name:   "Brush My Teeth",
		Hour:   8,
		Minute: 0,
		Period: PeriodAM,
		Preset: &Preset{
			Key:   "brushing",
			Label: "Brush My Teeth",
			URL:   "/static/asset-gif/Brushing.gif",
		},
		RingtoneName: "Morning Rooster",
		Ringtone: &Ringtone{
			Key:   "mixkit-rooster-crowing-in-the-morning-2462",
			Label: "Rooster Crow",
			URL:   "/static/alarm/mixkit-rooster-crowing-in-the-morning-2462.wav",
		},
	}
}

// Routines 返回当前集合的副本。
func (t *Tracker) Routines() []Routine {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Routine, len(t.routines))
	copy(out, t.routines)
	return out
}

// Create 立即以临时 uuid 入列，调用方无需等待 I/O 即可观察到新例程。
// 存在身份时异步写入远端：成功则原地把临时 id 替换为存储 id（同一实体的
// 重命名，完成/触发成员资格一并迁移），失败则临时 id 永久保留，不重试。
func (t *Tracker) Create(draft Routine) Routine {
	t.mu.Lock()

	draft.ID = uuid.NewString()
	if strings.TrimSpace(draft.Name) == "" && draft.Preset != nil {
		draft.Name = draft.Preset.Label
	}
	draft.Name = strings.TrimSpace(draft.Name)

	t.routines = append(t.routines, draft)
	t.persistRoutinesLocked()

	store, userID := t.store, t.userID
	t.mu.Unlock()

	if store == nil || userID == 0 {
		return draft
	}

	tempID := draft.ID
	payload := EncodeRoutine(draft)
	name := draft.Name
	timeLabel := draft.TimeLabel()

	t.wg.Add(1)
	println("DEBUG Create: launching insert for user", userID)
	go func() {
		defer t.wg.Done()
		storeID, err := store.InsertRoutine(userID, name, payload, timeLabel)
		if err != nil {
			println("DEBUG InsertRoutine error:", err.Error())
			return
		}
		println("DEBUG InsertRoutine ok, storeID:", storeID)
		t.reconcileID(tempID, FormatStoreID(storeID))
	}()

	return draft
}

// reconcileID 在内存列表里原地替换 id，对列表长度保持原子不变。
func (t *Tracker) reconcileID(tempID, storeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.routines {
		if t.routines[i].ID != tempID {
			continue
		}
		t.routines[i].ID = storeID
		if _, ok := t.day.done[tempID]; ok {
			delete(t.day.done, tempID)
			t.day.done[storeID] = struct{}{}
			t.persistDoneLocked()
		}
		if _, ok := t.day.trig[tempID]; ok {
			delete(t.day.trig, tempID)
			t.day.trig[storeID] = struct{}{}
			t.persistTrigLocked()
		}
		t.persistRoutinesLocked()
		return
	}
}

// Delete 从内存集合立即移除例程；远端删除为异步尽力而为，
// 在途写入沦为孤儿记录，不做清理。完成/触发记录按 id 成员资格查询，
// 列表缺席即是足够的隐式清理。
func (t *Tracker) Delete(id string) error {
	t.mu.Lock()

	idx := -1
	for i := range t.routines {
		if t.routines[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return ErrRoutineNotFound
	}

	t.routines = append(t.routines[:idx], t.routines[idx+1:]...)
	t.persistRoutinesLocked()
	store, userID := t.store, t.userID
	t.mu.Unlock()

	if store != nil && userID != 0 {
		if storeID, ok := ParseStoreID(id); ok {
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				_ = store.DeleteRoutine(userID, storeID)
			}()
		}
	}

	return nil
}

// Complete 幂等地把例程记入当日完成集合；当日内不会被自动撤销，
// 重置只发生在日界翻转。
func (t *Tracker) Complete(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ensureDayLocked(t.now())

	found := false
	for i := range t.routines {
		if t.routines[i].ID == id {
			found = true
			break
		}
	}
	if !found {
		return ErrRoutineNotFound
	}

	if _, ok := t.day.done[id]; ok {
		return nil
	}

	t.day.done[id] = struct{}{}
	t.persistDoneLocked()
	return nil
}

// StatusView 汇总首页一次展示所需的全部推导结果
type StatusView struct {
	Active         *Routine `json:"active,omitempty"`
	Next           *Routine `json:"next,omitempty"`
	StartInMinutes int      `json:"start_in_minutes"`
	DoneIDs        []string `json:"done_ids"`
	DoneCount      int      `json:"done_count"`
	Total          int      `json:"total"`
	Percent        int      `json:"percent"`
}

// Status 返回当前时刻的活动/下一项例程与完成度指标。
func (t *Tracker) Status(now time.Time) StatusView {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ensureDayLocked(now)

	view := ActiveNext(t.routines, MinuteOfDay(now), t.day.done)

	doneIDs := make([]string, 0, len(t.day.done))
	doneCount := 0
	for _, r := range t.routines {
		if _, ok := t.day.done[r.ID]; ok {
			doneIDs = append(doneIDs, r.ID)
			doneCount++
		}
	}

	status := StatusView{
		Active:         view.Active,
		Next:           view.Next,
		StartInMinutes: view.StartInMinutes,
		DoneIDs:        doneIDs,
		DoneCount:      doneCount,
		Total:          len(t.routines),
	}
	if status.Total > 0 {
		status.Percent = int(float64(doneCount)/float64(status.Total)*100 + 0.5)
	}
	return status
}

// Evaluate 执行一次闹铃窗口评估：对每个未完成、今日未触发且配有铃声的
// 例程，若当前时刻落在 [计划时刻, 计划时刻+宽限期) 内，先提交触发状态再
// 请求播放。先标记后播放保证同日至多触发一次——宁可因为播放失败漏响，
// 也不允许相邻两次评估重复响铃。播放失败被静默吞掉，不回滚也不重试。
func (t *Tracker) Evaluate(now time.Time) {
	t.mu.Lock()

	t.ensureDayLocked(now)

	var fire []Routine
	for _, r := range t.routines {
		if r.Ringtone == nil || r.Ringtone.URL == "" {
			continue
		}
		if _, done := t.day.done[r.ID]; done {
			continue
		}
		if _, trig := t.day.trig[r.ID]; trig {
			continue
		}
		ts := ToTodayTimestamp(now, r.Hour, r.Minute, r.Period)
		if now.Before(ts) || !now.Before(ts.Add(t.grace)) {
			continue
		}
		t.day.trig[r.ID] = struct{}{}
		fire = append(fire, r)
	}
	if len(fire) > 0 {
		t.persistTrigLocked()
	}
	player := t.player
	t.mu.Unlock()

	for _, r := range fire {
		_ = player.Play(r.Ringtone.URL)
	}
}

// PendingAlarms 取走内置事件队列中待播放的闹铃；注入了外部播放器时返回空。
func (t *Tracker) PendingAlarms() []AlarmEvent {
	if t.feed == nil {
		return nil
	}
	return t.feed.Drain()
}

// Flush 等待在途的远端写入收尾，用于测试与进程退出。
func (t *Tracker) Flush() {
	t.wg.Wait()
}

// ensureDayLocked 在观察到日历日变化时显式重建当日状态。
func (t *Tracker) ensureDayLocked(now time.Time) {
	key := DayKey(now)
	if t.day.key == key {
		return
	}
	t.day = dayState{key: key, done: map[string]struct{}{}, trig: map[string]struct{}{}}
	t.loadDaySetLocked(snapshotKeyDone+key, t.day.done)
	t.loadDaySetLocked(snapshotKeyTrig+key, t.day.trig)
}

// reloadDayLocked 无条件以 now 所在日重建当日状态。
func (t *Tracker) reloadDayLocked(now time.Time) {
	t.day = dayState{}
	t.ensureDayLocked(now)
}

func (t *Tracker) loadDaySetLocked(key string, dst map[string]struct{}) {
	if t.snap == nil {
		return
	}
	raw, ok := t.snap.Get(key)
	if !ok {
		return
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return
	}
	for _, id := range ids {
		dst[id] = struct{}{}
	}
}

func (t *Tracker) persistRoutinesLocked() {
	if t.snap == nil {
		return
	}
	data, err := json.Marshal(t.routines)
	if err != nil {
		return
	}
	t.snap.Set(snapshotKeyRoutines, string(data))
}

func (t *Tracker) persistDoneLocked() {
	t.persistDaySetLocked(snapshotKeyDone+t.day.key, t.day.done)
}

func (t *Tracker) persistTrigLocked() {
	t.persistDaySetLocked(snapshotKeyTrig+t.day.key, t.day.trig)
}

func (t *Tracker) persistDaySetLocked(key string, set map[string]struct{}) {
	if t.snap == nil {
		return
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	t.snap.Set(key, string(data))
}
