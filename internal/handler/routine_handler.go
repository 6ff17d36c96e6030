package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ritmo/internal/service"
)

type routinePayload struct {
	Name     string `json:"name"`
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Period   string `json:"period"`
	Preset   string `json:"preset"`
	Ringtone string `json:"ringtone"`
}

// ListRoutines 返回当前身份的全部例程
func (a *API) ListRoutines(c *gin.Context) {
	tracker := a.trackerFor(c)
	c.JSON(http.StatusOK, gin.H{"routines": tracker.Routines()})
}

// CreateRoutine 新建例程，立即返回（远端写入在后台进行）
func (a *API) CreateRoutine(c *gin.Context) {
	var payload routinePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if payload.Hour < 1 || payload.Hour > 12 {
		respondError(c, http.StatusBadRequest, "小时必须在 1 到 12 之间")
		return
	}
	if payload.Minute < 0 || payload.Minute > 59 {
		respondError(c, http.StatusBadRequest, "分钟必须在 0 到 59 之间")
		return
	}

	period := service.Period(strings.ToUpper(strings.TrimSpace(payload.Period)))
	if period != service.PeriodAM && period != service.PeriodPM {
		respondError(c, http.StatusBadRequest, "时段必须是 AM 或 PM")
		return
	}

	draft := service.Routine{
		Name:   strings.TrimSpace(payload.Name),
		Hour:   payload.Hour,
		Minute: payload.Minute,
		Period: period,
	}

	if key := strings.TrimSpace(payload.Preset); key != "" {
		preset, ok := a.catalog.FindPreset(key)
		if !ok {
			respondError(c, http.StatusBadRequest, "未知的例程图标")
			return
		}
		draft.Preset = &preset
	}

	if key := strings.TrimSpace(payload.Ringtone); key != "" {
		ringtone, ok := a.catalog.FindRingtone(key)
		if !ok {
			respondError(c, http.StatusBadRequest, "未知的铃声")
			return
		}
		draft.Ringtone = &ringtone
		draft.RingtoneName = ringtone.Label
	}

	if draft.Name == "" && draft.Preset == nil {
		respondError(c, http.StatusBadRequest, "例程名称不能为空")
		return
	}

	routine := a.trackerFor(c).Create(draft)
	c.JSON(http.StatusOK, gin.H{"routine": routine})
}

// DeleteRoutine 删除例程，本地立即生效
func (a *API) DeleteRoutine(c *gin.Context) {
	tracker := a.trackerFor(c)
	if err := tracker.Delete(c.Param("id")); err != nil {
		if errors.Is(err, service.ErrRoutineNotFound) {
			respondError(c, http.StatusNotFound, "例程不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "删除例程失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CompleteRoutine 标记例程为今日已完成，重复调用不会报错
func (a *API) CompleteRoutine(c *gin.Context) {
	tracker := a.trackerFor(c)
	id := c.Param("id")

	var name string
	for _, r := range tracker.Routines() {
		if r.ID == id {
			name = r.Name
			break
		}
	}

	if err := tracker.Complete(id); err != nil {
		if errors.Is(err, service.ErrRoutineNotFound) {
			respondError(c, http.StatusNotFound, "例程不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "记录完成失败")
		return
	}

	// 匿名会话不写完成历史
	if userID := currentUserID(c); userID != 0 && a.progress != nil {
		if err := a.progress.Record(userID, id, name, time.Now()); err != nil {
			log.Printf("记录完成历史失败: %v", err)
		}
	}

	c.JSON(http.StatusOK, tracker.Status(time.Now()))
}

// Status 返回当前/下一个例程与今日进度
func (a *API) Status(c *gin.Context) {
	tracker := a.trackerFor(c)
	c.JSON(http.StatusOK, tracker.Status(time.Now()))
}

// Alarms 取走并返回当前身份待播放的闹钟事件，供前端轮询播放
func (a *API) Alarms(c *gin.Context) {
	tracker := a.trackerFor(c)
	events := tracker.PendingAlarms()
	if events == nil {
		events = []service.AlarmEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"alarms": events})
}

// Guide 返回例程的分步引导内容
func (a *API) Guide(c *gin.Context) {
	tracker := a.trackerFor(c)
	id := c.Param("id")

	var routine *service.Routine
	for _, r := range tracker.Routines() {
		if r.ID == id {
			found := r
			routine = &found
			break
		}
	}
	if routine == nil {
		respondError(c, http.StatusNotFound, "例程不存在")
		return
	}

	presetKey := ""
	if routine.Preset != nil {
		presetKey = routine.Preset.Key
	}

	c.JSON(http.StatusOK, gin.H{
		"guided": a.guided(*routine),
		"steps":  a.guide.StepsFor(presetKey, routine.Name),
	})
}
