package main

import (
	"context"
	"flag"
	"strings"

	"github.com/referral-ledger/internal/authz"
	"github.com/referral-ledger/internal/config"
	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/repository"
	"github.com/referral-ledger/internal/service"
)

func main() {
	var grantOperator string
	var grantAuditor string
	var resetSettings bool
	flag.StringVar(&grantOperator, "grant-operator", "", "授予 referral_operator 角色的用户 ID")
	flag.StringVar(&grantAuditor, "grant-auditor", "", "授予 readonly_auditor 角色的用户 ID")
	flag.BoolVar(&resetSettings, "reset-settings", false, "用配置文件默认值覆盖已保存的推荐配置")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	settingRepo := repository.NewSettingRepository(models.DB)
	settingService := service.NewSettingService(settingRepo, service.ReferralSettingFromConfig(cfg.Referral))

	// 推荐配置：不存在或要求重置时写入默认值
	stored, err := settingService.GetByKey(ctx, constants.SettingKeyReferralConfig)
	if err != nil {
		stdLog.Fatalf("Failed to load referral setting: %v", err)
	}
	if stored == nil || resetSettings {
		setting, err := settingService.UpdateReferralSetting(ctx, service.ReferralSettingFromConfig(cfg.Referral))
		if err != nil {
			stdLog.Fatalf("Failed to seed referral setting: %v", err)
		}
		stdLog.Printf("Seeded referral setting: rate=%s%% floor=%s minimum=%s confirm_days=%d",
			setting.Commission.RatePercent.String(),
			setting.Commission.FlatFloor.StringFixed(2),
			setting.Commission.MinimumPurchase.StringFixed(2),
			setting.ConfirmDays,
		)
	} else {
		stdLog.Printf("Referral setting already exists, skipped")
	}

	// 预置角色
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}
	stdLog.Printf("Builtin roles ready: %s, %s", authz.RoleReferralOperator, authz.RoleReadonlyAuditor)

	grant := func(userID, role string) {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			return
		}
		roles, err := authzService.GetUserRoles(userID)
		if err != nil {
			stdLog.Fatalf("Failed to load roles of %s: %v", userID, err)
		}
		roles = append(roles, role)
		if err := authzService.SetUserRoles(userID, roles); err != nil {
			stdLog.Fatalf("Failed to grant %s to %s: %v", role, userID, err)
		}
		stdLog.Printf("Granted %s to user %s", role, userID)
	}
	grant(grantOperator, authz.RoleReferralOperator)
	grant(grantAuditor, authz.RoleReadonlyAuditor)
}
