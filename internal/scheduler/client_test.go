package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

type testSchedulerConfig struct {
	url         string
	queue       string
	concurrency int
}

func (c testSchedulerConfig) GetRedisURL() string      { return c.url }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return c.concurrency }

func TestNewClient_RequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestClient_ScheduleReminderDue(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{url: "redis://" + srv.Addr(), queue: "pipeline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = client.Close() }()

	err = client.ScheduleReminderDue(context.Background(), uuid.New(), uuid.New(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	// asynq stores scheduled tasks under the queue's scheduled set.
	if !srv.Exists("asynq:{pipeline}:scheduled") {
		t.Fatal("expected a scheduled task in redis")
	}
}

func TestNilClient_IsSafeNoOp(t *testing.T) {
	var client *Client

	if err := client.ScheduleReminderDue(context.Background(), uuid.New(), uuid.New(), time.Now()); err != nil {
		t.Fatalf("nil client must be a no-op, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("nil client close must be a no-op, got %v", err)
	}
}

func TestParseReminderDuePayload_RejectsGarbage(t *testing.T) {
	task, err := NewReminderDueTask(ReminderDuePayload{ReminderID: uuid.NewString(), LeadID: uuid.NewString()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload, err := ParseReminderDuePayload(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.ReminderID == "" || payload.LeadID == "" {
		t.Fatal("expected ids to round-trip")
	}
}
