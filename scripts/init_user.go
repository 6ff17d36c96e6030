package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/ritmo/internal/db"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	// 初始化数据库
	if err := db.Init(""); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	// 检查是否已存在家长账号
	var count int64
	db.DB.Model(&db.User{}).Count(&count)
	if count > 0 {
		fmt.Println("家长账号已存在，无需初始化")
		return
	}

	// 创建默认家长账号
	password := "ritmo123" // 默认密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("密码加密失败:", err)
	}

	user := db.User{
		Email:     "parent@ritmo.local",
		Password:  string(hashedPassword),
		ChildName: "Kiddo",
	}

	if err := db.DB.Create(&user).Error; err != nil {
		log.Fatal("创建家长账号失败:", err)
	}

	fmt.Println("默认家长账号创建成功")
	fmt.Println("邮箱: parent@ritmo.local")
	fmt.Println("密码: ritmo123")
}
