package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticSettingProvider struct {
	setting ReferralSetting
	err     error
}

func (p staticSettingProvider) GetReferralSetting(context.Context) (ReferralSetting, error) {
	return p.setting, p.err
}

type panicSettingProvider struct{}

func (panicSettingProvider) GetReferralSetting(context.Context) (ReferralSetting, error) {
	panic("settings store exploded")
}

type fakeVelocityStore struct {
	counts   map[string]int64
	err      error
	recorded []string
}

func (f *fakeVelocityStore) Count(_ context.Context, key string, _ time.Duration, _ time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[key], nil
}

func (f *fakeVelocityStore) Record(_ context.Context, key string, _ time.Duration, _ time.Time) (int64, error) {
	f.recorded = append(f.recorded, key)
	return int64(len(f.recorded)), nil
}

type referralTestEnv struct {
	db           *gorm.DB
	codeRepo     *repository.GormReferralCodeRepository
	referralRepo *repository.GormReferralRepository
	settings     staticSettingProvider
	codes        *ReferralCodeService
	fraud        *FraudService
	conversions  *ConversionService
	referrals    *ReferralService
	stats        *ReferralStatsService
	payouts      *PayoutService
}

func setupReferralTestEnv(t *testing.T) *referralTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:referral_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateSchema(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	env := &referralTestEnv{
		db:           db,
		codeRepo:     repository.NewReferralCodeRepository(db),
		referralRepo: repository.NewReferralRepository(db),
		settings:     staticSettingProvider{setting: DefaultReferralSetting()},
	}
	env.rebuild()
	return env
}

// rebuild 在修改 settings 后重新装配服务
func (e *referralTestEnv) rebuild() {
	e.codes = NewReferralCodeService(e.codeRepo, e.settings)
	e.fraud = NewFraudService(e.codeRepo, e.referralRepo, e.settings, nil)
	e.conversions = NewConversionService(e.codeRepo, e.referralRepo, e.settings, nil, e.fraud)
	e.stats = NewReferralStatsService(e.referralRepo, e.settings)
	e.referrals = NewReferralService(e.codeRepo, e.referralRepo, e.codes, e.stats)
	e.payouts = NewPayoutService(e.referralRepo, nil)
}

func (e *referralTestEnv) mustCode(t *testing.T, userID, email string) *models.ReferralCode {
	t.Helper()
	code, err := e.codes.GetOrCreateReferralCode(context.Background(), userID, email)
	if err != nil {
		t.Fatalf("create referral code failed: %v", err)
	}
	return code
}

func (e *referralTestEnv) mustAttach(t *testing.T, code, userID, email string) *models.Referral {
	t.Helper()
	referral, err := e.referrals.AttachReferral(context.Background(), AttachReferralInput{
		ReferralCode:   code,
		ReferredUserID: userID,
		ReferredEmail:  email,
	})
	if err != nil {
		t.Fatalf("attach referral failed: %v", err)
	}
	return referral
}

func (e *referralTestEnv) reload(t *testing.T, id uint) *models.Referral {
	t.Helper()
	referral, err := e.referralRepo.GetByID(context.Background(), id)
	if err != nil || referral == nil {
		t.Fatalf("reload referral %d failed: %v", id, err)
	}
	return referral
}
