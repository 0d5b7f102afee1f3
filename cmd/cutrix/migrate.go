package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/XM-LEES/cutrix/internal/config"
	"github.com/XM-LEES/cutrix/internal/cutting/lock"
	"github.com/XM-LEES/cutrix/internal/cutting/repository"
	"github.com/XM-LEES/cutrix/internal/cutting/service"
)

var (
	adminName     string
	adminPassword string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "建表，可选初始化管理员",
	Long: `migrate 按实体定义建表/补列。

指定 --admin-name 和 --admin-password 时在没有管理员的库里创建第一个管理员；
已有管理员时跳过。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		zapLogger, err := initLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		defer zapLogger.Sync()

		db, err := initDatabase(cfg.Database, cfg.Log.Level)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			return fmt.Errorf("建表失败: %w", err)
		}
		successColor.Println("✓ 数据表已就绪")

		if adminName == "" {
			return nil
		}
		repos := repository.NewRepositories(db)
		users := service.NewUserService(repos.User, lock.NewMemoryLocker(), zapLogger)
		user, err := users.Bootstrap(context.Background(), adminName, adminPassword)
		var denied *service.PermissionDeniedError
		switch {
		case errors.As(err, &denied):
			warningColor.Printf("⚠ %s，跳过\n", denied.Reason)
			return nil
		case err != nil:
			return fmt.Errorf("创建管理员失败: %w", err)
		}
		successColor.Printf("✓ 已创建管理员 %s (%s)\n", user.Name, user.ID)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&adminName, "admin-name", "", "初始管理员用户名")
	migrateCmd.Flags().StringVar(&adminPassword, "admin-password", "", "初始管理员密码")
	migrateCmd.MarkFlagsRequiredTogether("admin-name", "admin-password")
}
