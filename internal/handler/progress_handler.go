package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ProgressHistory 返回最近若干周的完成情况汇总，最新的一周在前
func (a *API) ProgressHistory(c *gin.Context) {
	user, ok := a.requireUser(c)
	if !ok {
		return
	}

	weeks := 0
	if raw := c.Query("weeks"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 52 {
			respondError(c, http.StatusBadRequest, "weeks 参数不合法")
			return
		}
		weeks = parsed
	}

	summaries, err := a.progress.WeekHistory(user.ID, weeks, time.Now())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "查询完成历史失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"weeks": summaries})
}
