package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/referral-ledger/internal/authz"
	"github.com/referral-ledger/internal/cache"
	"github.com/referral-ledger/internal/config"
	adminhandlers "github.com/referral-ledger/internal/http/handlers/admin"
	publichandlers "github.com/referral-ledger/internal/http/handlers/public"
	handlershared "github.com/referral-ledger/internal/http/handlers/shared"
	"github.com/referral-ledger/internal/http/response"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	return NewEngine(cfg, c, cache.Client(), log)
}

// NewEngine 装配路由，redisClient 为空时不启用限流
func NewEngine(cfg *config.Config, c *provider.Container, redisClient *redis.Client, log *zap.Logger) *gin.Engine {
	r := gin.New()

	// 初始化 Handler（按用户侧/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "rl"
	}
	referralRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:referral", redisPrefix),
		WindowSeconds: cfg.Security.RateLimit.Referral.WindowSeconds,
		MaxRequests:   cfg.Security.RateLimit.Referral.MaxRequests,
	}
	convertRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:convert", redisPrefix),
		WindowSeconds: cfg.Security.RateLimit.Convert.WindowSeconds,
		MaxRequests:   cfg.Security.RateLimit.Convert.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/health", func(ctx *gin.Context) {
		response.Success(ctx, "ok", gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// 推荐接口：按 IP 限流先于鉴权与业务逻辑
		referral := apiV1.Group("/referral")
		referral.Use(RateLimitMiddleware(redisClient, referralRule, KeyByIP))
		referral.Use(UserJWTAuthMiddleware(cfg.Auth))
		{
			referral.GET("/code", publicHandler.GetReferralCode)
			referral.POST("/code", publicHandler.CreateReferralCode)
			referral.POST("/signup", publicHandler.SignupReferral)
			referral.POST("/convert", RateLimitMiddleware(redisClient, convertRule, KeyByCallerOrIP), publicHandler.ConvertReferral)
		}

		// 管理端接口
		admin := apiV1.Group("/admin")
		admin.Use(UserJWTAuthMiddleware(cfg.Auth))
		admin.Use(AdminRBACMiddleware(c.AuthzService))
		{
			admin.GET("/referrals", adminHandler.ListReferrals)
			admin.GET("/referrals/stats/:userId", adminHandler.GetReferrerStats)
			admin.POST("/referrals/payouts", adminHandler.MarkPayoutsPaid)

			admin.GET("/settings/referral", adminHandler.GetReferralSetting)
			admin.PUT("/settings/referral", adminHandler.UpdateReferralSetting)

			admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
			admin.GET("/authz/users/:userId/roles", adminHandler.GetUserRoles)
			admin.PUT("/authz/users/:userId/roles", adminHandler.SetUserRoles)
			admin.GET("/authz/permissions", func(ctx *gin.Context) {
				handlershared.RespondSuccess(ctx, "message.ok", gin.H{"permissions": buildPermissionCatalog(r)})
			})
		}
	}

	r.NoRoute(func(ctx *gin.Context) {
		response.Error(ctx, http.StatusNotFound, "not found")
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// buildPermissionCatalog 从已注册路由导出可授权的资源清单
func buildPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}
	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     derivePermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func derivePermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 || segments[0] != "admin" {
		return segments[0]
	}
	return segments[1]
}
