package provider

import (
	"github.com/referral-ledger/internal/authz"
	"github.com/referral-ledger/internal/cache"
	"github.com/referral-ledger/internal/config"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/queue"
	"github.com/referral-ledger/internal/repository"
	"github.com/referral-ledger/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	SettingRepo      repository.SettingRepository
	ReferralCodeRepo repository.ReferralCodeRepository
	ReferralRepo     repository.ReferralRepository

	// Services
	AuthzService         *authz.Service
	SettingService       *service.SettingService
	ReferralCodeService  *service.ReferralCodeService
	FraudService         *service.FraudService
	ConversionService    *service.ConversionService
	ReferralStatsService *service.ReferralStatsService
	ReferralService      *service.ReferralService
	PayoutService        *service.PayoutService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient = nil
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c := Build(cfg, models.DB, queueClient, newVelocityStore())
	c.AuthzService = authzService
	return c
}

// Build 按给定依赖装配仓储与服务，测试可直接传入 sqlite 与空队列
func Build(cfg *config.Config, db *gorm.DB, queueClient *queue.Client, velocity service.VelocityStore) *Container {
	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.SettingRepo = repository.NewSettingRepository(db)
	c.ReferralCodeRepo = repository.NewReferralCodeRepository(db)
	c.ReferralRepo = repository.NewReferralRepository(db)

	// 2. 初始化 Services
	defaults := service.DefaultReferralSetting()
	if cfg != nil {
		defaults = service.ReferralSettingFromConfig(cfg.Referral)
	}
	c.SettingService = service.NewSettingService(c.SettingRepo, defaults)
	c.ReferralCodeService = service.NewReferralCodeService(c.ReferralCodeRepo, c.SettingService)
	c.FraudService = service.NewFraudService(c.ReferralCodeRepo, c.ReferralRepo, c.SettingService, velocity)
	c.ConversionService = service.NewConversionService(c.ReferralCodeRepo, c.ReferralRepo, c.SettingService, queueClient, c.FraudService)
	c.ReferralStatsService = service.NewReferralStatsService(c.ReferralRepo, c.SettingService)
	c.ReferralService = service.NewReferralService(c.ReferralCodeRepo, c.ReferralRepo, c.ReferralCodeService, c.ReferralStatsService)
	c.PayoutService = service.NewPayoutService(c.ReferralRepo, service.LogPayoutNotifier{})
	return c
}

// newVelocityStore Redis 未启用时返回 nil 接口，风控改用数据库计数
func newVelocityStore() service.VelocityStore {
	counter := cache.NewVelocityCounter(cache.Client(), cache.Prefix())
	if counter == nil {
		return nil
	}
	return counter
}
