package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/referral-ledger/internal/authz"
	"github.com/referral-ledger/internal/config"
	"github.com/referral-ledger/internal/models"
	"github.com/referral-ledger/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testRouterConfig() *config.Config {
	return &config.Config{
		Auth:  config.AuthConfig{SecretKey: testJWTSecret, Issuer: "identity"},
		Redis: config.RedisConfig{Prefix: "test"},
		Referral: config.ReferralConfig{
			CommissionRate:      10,
			CommissionFlatFloor: 25,
			MinimumPurchase:     100,
			ConfirmDays:         7,
			Code:                config.ReferralCodeConfig{PrefixLength: 6, SuffixLength: 6, MaxAttempts: 8},
			Fraud: config.FraudConfig{
				ReviewThreshold:       30,
				BlockThreshold:        70,
				SelfReferralWeight:    100,
				IPVelocityWeight:      40,
				DeviceVelocityWeight:  40,
				DisposableEmailWeight: 30,
				SimilarEmailWeight:    35,
				SameDomainWeight:      20,
				VelocityWindowMinutes: 60,
				VelocityMaxPerIP:      3,
				SimilarityMaxDistance: 2,
			},
			Tiers: config.ReferralTiersConfig{Silver: 500, Gold: 2000},
		},
	}
}

type routerTestEnv struct {
	engine *gin.Engine
	authz  *authz.Service
	t      *testing.T
}

func setupRouterTestEnv(t *testing.T) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}

	cfg := testRouterConfig()
	container := provider.Build(cfg, db, nil, nil)
	container.AuthzService = authzService

	return &routerTestEnv{
		engine: NewEngine(cfg, container, nil, zap.NewNop()),
		authz:  authzService,
		t:      t,
	}
}

func (e *routerTestEnv) do(method, path, userID, email string, body interface{}) (int, map[string]interface{}) {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "router-test")
	if userID != "" {
		claims := validClaims(userID)
		claims.Email = email
		req.Header.Set("Authorization", "Bearer "+signTestToken(e.t, testJWTSecret, claims))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	resp := map[string]interface{}{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		e.t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return w.Code, resp
}

func TestReferralConversionFlow(t *testing.T) {
	env := setupRouterTestEnv(t)

	status, resp := env.do(http.MethodPost, "/api/v1/referral/code", "u-alice", "alice@acme.io", map[string]string{"userId": "u-alice"})
	if status != http.StatusOK || resp["success"] != true {
		t.Fatalf("create code: status=%d resp=%v", status, resp)
	}
	codeObj, ok := resp["code"].(map[string]interface{})
	if !ok {
		t.Fatalf("code payload missing: %v", resp)
	}
	code, _ := codeObj["code"].(string)
	if code == "" {
		t.Fatalf("empty referral code: %v", codeObj)
	}

	status, resp = env.do(http.MethodPost, "/api/v1/referral/signup", "u-bob", "bob@globex.com", map[string]string{"referralCode": code})
	if status != http.StatusOK {
		t.Fatalf("signup: status=%d resp=%v", status, resp)
	}

	status, resp = env.do(http.MethodPost, "/api/v1/referral/convert", "u-bob", "bob@globex.com", map[string]interface{}{
		"referralCode":   code,
		"referredUserId": "u-bob",
		"purchaseValue":  50,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("below minimum: status want 400 got %d resp=%v", status, resp)
	}

	status, resp = env.do(http.MethodPost, "/api/v1/referral/convert", "u-bob", "bob@globex.com", map[string]interface{}{
		"referralCode":   code,
		"referredUserId": "u-bob",
		"purchaseValue":  500,
		"orderId":        "order-1",
	})
	if status != http.StatusOK {
		t.Fatalf("convert: status=%d resp=%v", status, resp)
	}
	if resp["commissionAmount"] != "50.00" {
		t.Fatalf("commission want 50.00 got %v", resp["commissionAmount"])
	}
	if _, ok := resp["referralId"].(float64); !ok {
		t.Fatalf("referralId missing: %v", resp)
	}

	status, resp = env.do(http.MethodPost, "/api/v1/referral/convert", "u-bob", "bob@globex.com", map[string]interface{}{
		"referralCode":   code,
		"referredUserId": "u-bob",
		"purchaseValue":  500,
	})
	if status != http.StatusConflict {
		t.Fatalf("second convert: status want 409 got %d resp=%v", status, resp)
	}
	if resp["message"] != "Referral has already been converted" {
		t.Fatalf("unexpected conflict message: %v", resp["message"])
	}

	status, resp = env.do(http.MethodGet, "/api/v1/referral/code", "u-alice", "alice@acme.io", nil)
	if status != http.StatusOK {
		t.Fatalf("overview: status=%d resp=%v", status, resp)
	}
	stats, _ := resp["stats"].(map[string]interface{})
	if stats["convertedReferrals"] != float64(1) || stats["totalCommission"] != "50.00" {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestReferralEndpointsErrors(t *testing.T) {
	env := setupRouterTestEnv(t)

	status, resp := env.do(http.MethodGet, "/api/v1/referral/code", "", "", nil)
	if status != http.StatusUnauthorized || resp["success"] != false {
		t.Fatalf("no token: status=%d resp=%v", status, resp)
	}

	status, _ = env.do(http.MethodGet, "/api/v1/referral/code", "u-alice", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("missing code without email: status want 404 got %d", status)
	}

	status, _ = env.do(http.MethodGet, "/api/v1/referral/code?userId=u-other", "u-alice", "", nil)
	if status != http.StatusForbidden {
		t.Fatalf("foreign overview: status want 403 got %d", status)
	}

	status, _ = env.do(http.MethodPost, "/api/v1/referral/code", "u-alice", "alice@acme.io", map[string]string{"userId": "u-other"})
	if status != http.StatusForbidden {
		t.Fatalf("foreign create: status want 403 got %d", status)
	}

	status, _ = env.do(http.MethodPost, "/api/v1/referral/convert", "u-alice", "", map[string]interface{}{
		"referralCode":   "NOPE-123456",
		"referredUserId": "u-other",
		"purchaseValue":  500,
	})
	if status != http.StatusForbidden {
		t.Fatalf("foreign convert: status want 403 got %d", status)
	}

	status, _ = env.do(http.MethodPost, "/api/v1/referral/convert", "u-alice", "", map[string]interface{}{
		"referralCode":  "NOPE-123456",
		"purchaseValue": 0,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("zero purchase value: status want 400 got %d", status)
	}

	status, resp = env.do(http.MethodPost, "/api/v1/referral/convert", "u-alice", "", map[string]interface{}{
		"purchaseValue": 500,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("no code or email: status want 400 got %d resp=%v", status, resp)
	}

	status, resp = env.do(http.MethodPost, "/api/v1/referral/convert", "u-alice", "", map[string]interface{}{
		"referralCode":  "NOPE-123456",
		"purchaseValue": 500,
	})
	if status != http.StatusNotFound {
		t.Fatalf("unknown code: status want 404 got %d resp=%v", status, resp)
	}
}

func TestSelfReferralConversionBlocked(t *testing.T) {
	env := setupRouterTestEnv(t)

	_, resp := env.do(http.MethodPost, "/api/v1/referral/code", "u-alice", "alice@acme.io", map[string]string{})
	code := resp["code"].(map[string]interface{})["code"].(string)

	status, resp := env.do(http.MethodPost, "/api/v1/referral/signup", "u-alice", "alice@acme.io", map[string]string{"referralCode": code})
	if status != http.StatusOK {
		t.Fatalf("self signup attach: status=%d resp=%v", status, resp)
	}

	status, resp = env.do(http.MethodPost, "/api/v1/referral/convert", "u-alice", "alice@acme.io", map[string]interface{}{
		"referralCode":  code,
		"purchaseValue": 500,
	})
	if status != http.StatusForbidden {
		t.Fatalf("self referral: status want 403 got %d resp=%v", status, resp)
	}
	if resp["message"] != "Referral could not be processed due to suspicious activity" {
		t.Fatalf("unexpected block message: %v", resp["message"])
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	env := setupRouterTestEnv(t)

	status, _ := env.do(http.MethodGet, "/api/v1/admin/referrals", "u-plain", "", nil)
	if status != http.StatusForbidden {
		t.Fatalf("plain user: status want 403 got %d", status)
	}

	if err := env.authz.SetUserRoles("u-auditor", []string{authz.RoleReadonlyAuditor}); err != nil {
		t.Fatalf("set auditor role failed: %v", err)
	}
	status, resp := env.do(http.MethodGet, "/api/v1/admin/referrals?status=pending", "u-auditor", "", nil)
	if status != http.StatusOK {
		t.Fatalf("auditor list: status=%d resp=%v", status, resp)
	}
	if _, ok := resp["pagination"].(map[string]interface{}); !ok {
		t.Fatalf("pagination missing: %v", resp)
	}
	status, _ = env.do(http.MethodPut, "/api/v1/admin/settings/referral", "u-auditor", "", map[string]interface{}{"confirm_days": 3})
	if status != http.StatusForbidden {
		t.Fatalf("auditor update settings: status want 403 got %d", status)
	}

	if err := env.authz.SetUserRoles("u-op", []string{authz.RoleReferralOperator}); err != nil {
		t.Fatalf("set operator role failed: %v", err)
	}
	status, resp = env.do(http.MethodPut, "/api/v1/admin/settings/referral", "u-op", "", map[string]interface{}{"confirm_days": 3})
	if status != http.StatusOK {
		t.Fatalf("operator update settings: status=%d resp=%v", status, resp)
	}
	setting, _ := resp["setting"].(map[string]interface{})
	if setting["confirm_days"] != float64(3) {
		t.Fatalf("confirm_days want 3 got %v", setting["confirm_days"])
	}

	status, _ = env.do(http.MethodPost, "/api/v1/admin/referrals/payouts", "u-op", "", map[string]interface{}{"ids": []uint{}})
	if status != http.StatusBadRequest {
		t.Fatalf("empty payout ids: status want 400 got %d", status)
	}
}

func TestReferralCodeNotCreatedForOtherUser(t *testing.T) {
	env := setupRouterTestEnv(t)
	if err := env.authz.SetUserRoles("u-auditor", []string{authz.RoleReadonlyAuditor}); err != nil {
		t.Fatalf("set auditor role failed: %v", err)
	}

	status, resp := env.do(http.MethodGet, "/api/v1/referral/code?userId=u-victim&email=evil@attacker.io", "u-auditor", "auditor@acme.io", nil)
	if status != http.StatusNotFound {
		t.Fatalf("cross-user lazy create: status want 404 got %d resp=%v", status, resp)
	}

	status, resp = env.do(http.MethodGet, "/api/v1/referral/code", "u-victim", "victim@acme.io", nil)
	if status != http.StatusOK {
		t.Fatalf("owner lazy create: status=%d resp=%v", status, resp)
	}
	codeObj, _ := resp["code"].(map[string]interface{})
	if codeObj["email"] != "victim@acme.io" {
		t.Fatalf("code owner email want victim@acme.io got %v", codeObj["email"])
	}

	status, resp = env.do(http.MethodGet, "/api/v1/referral/code?userId=u-victim", "u-auditor", "auditor@acme.io", nil)
	if status != http.StatusOK {
		t.Fatalf("auditor read existing code: status=%d resp=%v", status, resp)
	}
}

func TestSignupUsesTokenEmail(t *testing.T) {
	env := setupRouterTestEnv(t)
	_, resp := env.do(http.MethodPost, "/api/v1/referral/code", "u-alice", "alice@acme.io", map[string]string{})
	code := resp["code"].(map[string]interface{})["code"].(string)

	status, resp := env.do(http.MethodPost, "/api/v1/referral/signup", "u-bob", "bob@globex.com", map[string]string{
		"referralCode": code,
		"email":        "someone-else@initech.io",
	})
	if status != http.StatusOK {
		t.Fatalf("signup: status=%d resp=%v", status, resp)
	}
	referral, _ := resp["referral"].(map[string]interface{})
	if referral["referredEmail"] != "bob@globex.com" {
		t.Fatalf("referred email want token email got %v", referral["referredEmail"])
	}

	status, _ = env.do(http.MethodPost, "/api/v1/referral/signup", "u-carol", "", map[string]string{
		"referralCode": code,
		"email":        "not-an-email",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid body email: status want 400 got %d", status)
	}
}

func TestHealth(t *testing.T) {
	env := setupRouterTestEnv(t)
	status, resp := env.do(http.MethodGet, "/health", "", "", nil)
	if status != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("health: status=%d resp=%v", status, resp)
	}
}
