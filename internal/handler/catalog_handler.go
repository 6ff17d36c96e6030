package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Presets 返回可选的例程图标目录
func (a *API) Presets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": a.catalog.Presets()})
}

// Ringtones 返回可选的铃声目录
func (a *API) Ringtones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ringtones": a.catalog.Ringtones()})
}

// UploadImage 处理家长上传的自定义例程图片
func (a *API) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(c, http.StatusBadRequest, "只允许上传图片文件")
		return
	}

	if err := os.MkdirAll(a.uploadDir, 0755); err != nil {
		respondError(c, http.StatusInternalServerError, "创建上传目录失败")
		return
	}

	ext := filepath.Ext(file.Filename)
	newFilename := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), ext)
	filePath := filepath.Join(a.uploadDir, newFilename)

	if err := c.SaveUploadedFile(file, filePath); err != nil {
		respondError(c, http.StatusInternalServerError, "保存文件失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url": strings.TrimRight(a.uploadURL, "/") + "/" + newFilename,
	})
}
