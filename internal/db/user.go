package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了家长账号模型
// ChildName 为孩子昵称，登录后用于问候语
// PinHash 为家长设置页的 4 位 PIN 码哈希，未设置时为空
// ResetTokenHash 为密码重置令牌的哈希，一次性使用，过期即失效
type User struct {
	gorm.Model
	Email               string `gorm:"unique;not null"`
	Password            string `gorm:"not null"`
	ChildName           string `gorm:"size:40"`
	PinHash             string
	LastLoginAt         *time.Time
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time
}

// EnsureUser 存在性检查：若提供的邮箱与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的家长账号。
func EnsureUser(email, password string) error {
	trimmedEmail := strings.TrimSpace(strings.ToLower(email))
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{Email: trimmedEmail, Password: string(hashed)}).Error
	}

	return nil
}
