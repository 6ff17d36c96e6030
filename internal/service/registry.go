package service

import (
	"fmt"
	"sync"
	"time"
)

// TrackerRegistry 按身份惰性构造并缓存追踪器
// 登录用户以 user:<id> 为键、远端存储作后端；
// 匿名会话以会话 id 为键，仅本地快照，无远端持久化（合法的降级模式）
type TrackerRegistry struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	store    DurableStore
	snap     *LocalSnapshot
	clock    func() time.Time
	grace    time.Duration
}

// NewTrackerRegistry 构造注册表。
func NewTrackerRegistry(store DurableStore, snap *LocalSnapshot, grace time.Duration) *TrackerRegistry {
	return &TrackerRegistry{
		trackers: map[string]*Tracker{},
		store:    store,
		snap:     snap,
		clock:    time.Now,
		grace:    grace,
	}
}

// ForUser 返回登录用户的追踪器，首次访问时从远端加载。
func (r *TrackerRegistry) ForUser(userID uint) *Tracker {
	key := fmt.Sprintf("user:%d", userID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if tracker, ok := r.trackers[key]; ok {
		return tracker
	}

	tracker := NewTracker(TrackerOptions{
		UserID: userID,
		Store:  r.store,
		Snap:   r.scopedSnap(key),
		Clock:  r.clock,
		Grace:  r.grace,
	})
	r.trackers[key] = tracker
	return tracker
}

// ForSession 返回匿名会话的本地追踪器。
func (r *TrackerRegistry) ForSession(sessionID string) *Tracker {
	key := "anon:" + sessionID

	r.mu.Lock()
	defer r.mu.Unlock()

	if tracker, ok := r.trackers[key]; ok {
		return tracker
	}

	tracker := NewTracker(TrackerOptions{
		Snap:  r.scopedSnap(key),
		Clock: r.clock,
		Grace: r.grace,
	})
	r.trackers[key] = tracker
	return tracker
}

// All 返回当前全部追踪器的快照，供调度器逐个评估。
func (r *TrackerRegistry) All() []*Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Tracker, 0, len(r.trackers))
	for _, tracker := range r.trackers {
		out = append(out, tracker)
	}
	return out
}

func (r *TrackerRegistry) scopedSnap(scope string) Snapshot {
	if r.snap == nil {
		return nil
	}
	return r.snap.Scoped(scope)
}
