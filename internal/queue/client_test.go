package queue

import (
	"encoding/json"
	"testing"

	"github.com/referral-ledger/internal/config"
)

func TestDisabledClientEnqueueIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := client.EnqueueReferralConverted(ReferralConvertedPayload{ReferralID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be noop, got %v", err)
	}
	var nilClient *Client
	if err := nilClient.EnqueueReferralFraudReview(ReferralFraudReviewPayload{ReferralID: 1}); err != nil {
		t.Fatalf("nil client enqueue should be noop, got %v", err)
	}
}

func TestNewReferralFraudReviewTaskPayload(t *testing.T) {
	task, err := NewReferralFraudReviewTask(ReferralFraudReviewPayload{ReferralID: 9, Score: 40, Signals: []string{"ip_velocity"}})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskReferralFraudReview {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var payload ReferralFraudReviewPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.ReferralID != 9 || payload.Score != 40 || len(payload.Signals) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected addr: %s", opt.Addr)
	}
	if cfg.Concurrency != 10 || cfg.Queues[CriticalQueue] != 2 {
		t.Fatalf("unexpected server config: %+v", cfg)
	}
}
