package worker

import (
	"context"
	"errors"
	"time"

	"github.com/referral-ledger/internal/config"
	"github.com/referral-ledger/internal/logger"
	"github.com/referral-ledger/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	payoutConfirmInterval = time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.PayoutService != nil {
		go RunPayoutConfirmLoop(ctx, s.consumer, payoutConfirmInterval)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// RunPayoutConfirmLoop 周期性将确认期已过的佣金转为可结算，ctx 结束时退出
func RunPayoutConfirmLoop(ctx context.Context, consumer *Consumer, interval time.Duration) {
	if consumer == nil || consumer.PayoutService == nil {
		return
	}
	if interval <= 0 {
		interval = payoutConfirmInterval
	}
	runOnce := func() {
		if _, err := consumer.PayoutService.ConfirmDuePayouts(ctx, time.Now()); err != nil {
			logger.Warnw("worker_payout_confirm_due_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// ConfirmLoopService 不依赖队列的佣金确认服务
type ConfirmLoopService struct {
	consumer *Consumer
	interval time.Duration
}

// NewConfirmLoopService 创建佣金确认服务
func NewConfirmLoopService(consumer *Consumer) *ConfirmLoopService {
	return &ConfirmLoopService{consumer: consumer, interval: payoutConfirmInterval}
}

// Name 服务名称
func (s *ConfirmLoopService) Name() string {
	return "payout_confirm"
}

// Start 阻塞运行直到 ctx 结束
func (s *ConfirmLoopService) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("payout confirm loop not initialized")
	}
	RunPayoutConfirmLoop(ctx, s.consumer, s.interval)
	return nil
}

// Stop 停止服务，循环随 ctx 退出
func (s *ConfirmLoopService) Stop(context.Context) error {
	return nil
}
