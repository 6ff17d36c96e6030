package handler

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ritmo/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// 重置令牌有效期
const resetTokenTTL = time.Hour

type credentialsPayload struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	ChildName string `json:"child_name"`
}

type childNamePayload struct {
	ChildName string `json:"child_name"`
}

type passwordPayload struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type pinPayload struct {
	Pin string `json:"pin"`
}

type resetRequestPayload struct {
	Email string `json:"email"`
}

type resetPayload struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Signup 注册家长账号并建立会话
func (a *API) Signup(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	password := strings.TrimSpace(payload.Password)
	if email == "" || password == "" {
		respondError(c, http.StatusBadRequest, "邮箱和密码不能为空")
		return
	}
	if len(password) < 6 {
		respondError(c, http.StatusBadRequest, "密码至少 6 位")
		return
	}

	var existing db.User
	if err := a.db.Where("email = ?", email).First(&existing).Error; err == nil {
		respondError(c, http.StatusBadRequest, "邮箱已被注册")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}

	user := db.User{
		Email:     email,
		Password:  string(hashed),
		ChildName: strings.TrimSpace(payload.ChildName),
	}
	if err := a.db.Create(&user).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}

	if !a.establishSession(c, &user) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(user, false)})
}

// Login 处理家长登录请求
func (a *API) Login(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))

	var user db.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "邮箱或密码错误")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(payload.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "邮箱或密码错误")
		return
	}

	// 非首次登录时展示 Welcome Back 问候
	welcomeBack := user.LastLoginAt != nil

	now := time.Now()
	user.LastLoginAt = &now
	a.db.Model(&user).Update("last_login_at", now)

	if !a.establishSession(c, &user) {
		return
	}

	session := sessions.Default(c)
	session.Set("welcome_back", welcomeBack)
	session.Save()

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(user, welcomeBack)})
}

// Logout 处理登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// Me 返回当前身份、孩子昵称与问候语
func (a *API) Me(c *gin.Context) {
	user, ok := a.requireUser(c)
	if !ok {
		return
	}

	session := sessions.Default(c)
	welcomeBack, _ := session.Get("welcome_back").(bool)

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(*user, welcomeBack)})
}

// UpdateChildName 设置孩子昵称
func (a *API) UpdateChildName(c *gin.Context) {
	user, ok := a.requireUser(c)
	if !ok {
		return
	}

	var payload childNamePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	name := strings.TrimSpace(payload.ChildName)
	if name == "" {
		respondError(c, http.StatusBadRequest, "昵称不能为空")
		return
	}
	if len(name) > 40 {
		respondError(c, http.StatusBadRequest, "昵称最长 40 个字符")
		return
	}

	if err := a.db.Model(user).Update("child_name", name).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "保存昵称失败")
		return
	}

	user.ChildName = name
	c.JSON(http.StatusOK, gin.H{"user": userToPayload(*user, false)})
}

// ChangePassword 校验旧密码后更新密码
func (a *API) ChangePassword(c *gin.Context) {
	user, ok := a.requireUser(c)
	if !ok {
		return
	}

	var payload passwordPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(payload.OldPassword)); err != nil {
		respondError(c, http.StatusUnauthorized, "原密码错误")
		return
	}

	newPassword := strings.TrimSpace(payload.NewPassword)
	if len(newPassword) < 6 {
		respondError(c, http.StatusBadRequest, "新密码至少 6 位")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "修改密码失败")
		return
	}

	if err := a.db.Model(user).Update("password", string(hashed)).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "修改密码失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// RequestPasswordReset 签发限时密码重置令牌。
// 为避免暴露账号存在性，无论邮箱是否注册都返回成功；
// 仓库没有邮件通道，令牌写入服务日志由运维转交。
func (a *API) RequestPasswordReset(c *gin.Context) {
	var payload resetRequestPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		respondError(c, http.StatusBadRequest, "邮箱不能为空")
		return
	}

	var user db.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err == nil {
		token := uuid.NewString()
		hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err == nil {
			expires := time.Now().Add(resetTokenTTL)
			updates := map[string]interface{}{
				"reset_token_hash":       string(hashed),
				"reset_token_expires_at": expires,
			}
			if err := a.db.Model(&user).Updates(updates).Error; err == nil {
				log.Printf("密码重置令牌 %s: %s", email, token)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"requested": true})
}

// ResetPassword 校验重置令牌并更新密码，令牌一次性使用
func (a *API) ResetPassword(c *gin.Context) {
	var payload resetPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	newPassword := strings.TrimSpace(payload.NewPassword)
	if len(newPassword) < 6 {
		respondError(c, http.StatusBadRequest, "新密码至少 6 位")
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))

	var user db.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "重置令牌无效或已过期")
		return
	}

	if user.ResetTokenHash == "" || user.ResetTokenExpiresAt == nil || time.Now().After(*user.ResetTokenExpiresAt) {
		respondError(c, http.StatusUnauthorized, "重置令牌无效或已过期")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.ResetTokenHash), []byte(payload.Token)); err != nil {
		respondError(c, http.StatusUnauthorized, "重置令牌无效或已过期")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "重置密码失败")
		return
	}

	updates := map[string]interface{}{
		"password":               string(hashed),
		"reset_token_hash":       "",
		"reset_token_expires_at": nil,
	}
	if err := a.db.Model(&user).Updates(updates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "重置密码失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// SetPin 设置家长设置页的 4 位 PIN 码
func (a *API) SetPin(c *gin.Context) {
	user, ok := a.requireUser(c)
	if !ok {
		return
	}

	var payload pinPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if !pinPattern.MatchString(payload.Pin) {
		respondError(c, http.StatusBadRequest, "PIN 码必须是 4 位数字")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Pin), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存 PIN 码失败")
		return
	}

	if err := a.db.Model(user).Update("pin_hash", string(hashed)).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "保存 PIN 码失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": true})
}

// VerifyPin 校验 PIN 码，作为进入设置页的门禁
func (a *API) VerifyPin(c *gin.Context) {
	user, ok := a.requireUser(c)
	if !ok {
		return
	}

	var payload pinPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if user.PinHash == "" {
		respondError(c, http.StatusBadRequest, "尚未设置 PIN 码")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(payload.Pin)); err != nil {
		respondError(c, http.StatusUnauthorized, "PIN 码错误")
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// AuthRequired 是一个简单的认证中间件，未登录的 API 请求直接返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *API) establishSession(c *gin.Context, user *db.User) bool {
	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("email", user.Email)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return false
	}
	return true
}

func (a *API) requireUser(c *gin.Context) (*db.User, bool) {
	userID := currentUserID(c)
	if userID == 0 {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return nil, false
	}

	var user db.User
	if err := a.db.First(&user, userID).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return nil, false
	}
	return &user, true
}

func userToPayload(user db.User, welcomeBack bool) gin.H {
	return gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"child_name":   user.ChildName,
		"has_pin":      user.PinHash != "",
		"greeting":     greetingFor(time.Now(), welcomeBack),
		"welcome_back": welcomeBack,
	}
}

// greetingFor 按时段生成问候语：晚 6 点到早 6 点视为夜间。
func greetingFor(now time.Time, welcomeBack bool) string {
	if welcomeBack {
		return "Welcome Back"
	}
	if now.Hour() >= 18 || now.Hour() < 6 {
		return "Good Evening"
	}
	return "Good Morning"
}
