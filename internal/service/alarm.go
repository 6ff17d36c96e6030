package service

import (
	"context"
	"sync"
	"time"
)

// Player 抽象音频播放面：给定 URL 发起一次不循环的播放。
// 播放失败由调用方吞掉，一次错过的闹铃不补播。
type Player interface {
	Play(url string) error
}

// AlarmEvent 表示一次待播放的闹铃
type AlarmEvent struct {
	URL string    `json:"url"`
	At  time.Time `json:"at"`
}

// AlarmFeed 是默认的 Player 实现：服务端无法直接出声，
// 把闹铃事件排入队列由浏览器轮询取走后在客户端播放
type AlarmFeed struct {
	mu     sync.Mutex
	events []AlarmEvent
}

// NewAlarmFeed 构造空的事件队列。
func NewAlarmFeed() *AlarmFeed {
	return &AlarmFeed{}
}

// Play 把铃声 URL 排入待播放队列。
func (f *AlarmFeed) Play(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, AlarmEvent{URL: url, At: time.Now()})
	return nil
}

// Drain 取走并清空当前队列。
func (f *AlarmFeed) Drain() []AlarmEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := f.events
	f.events = nil
	return events
}

// AlarmScheduler 是显式的周期任务：按固定间隔对注册表内的全部追踪器
// 执行一次闹铃评估。间隔必须严格小于触发宽限期，保证每个闹铃窗口
// 至少被观察到一次；漂移上界即间隔本身。
type AlarmScheduler struct {
	registry *TrackerRegistry
	tick     time.Duration
	clock    func() time.Time
}

// NewAlarmScheduler 构造调度器，tick 不合法时回退 15 秒。
func NewAlarmScheduler(registry *TrackerRegistry, tick time.Duration) *AlarmScheduler {
	if tick <= 0 {
		tick = 15 * time.Second
	}
	return &AlarmScheduler{registry: registry, tick: tick, clock: time.Now}
}

// Run 阻塞运行调度循环，直到 ctx 取消。
func (s *AlarmScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.clock()
			for _, tracker := range s.registry.All() {
				tracker.Evaluate(now)
			}
		}
	}
}
