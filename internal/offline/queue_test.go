package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/transitland/fleetops/internal/store"
)

func newTestQueue(t *testing.T, maxRetries int) *Queue {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "queue.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&QueuedOperation{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewQueue(db, maxRetries)
}

func payloadFor(id string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%q}`, id))
}

func TestQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, 3)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := q.Enqueue(ctx, store.KindVehicle, store.OpUpdate, payloadFor(id)); err != nil {
			t.Fatalf("Enqueue(%s) failed: %v", id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		entry, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if entry == nil {
			t.Fatalf("Dequeue returned nil, want entry %s", want)
		}
		if got := entry.TargetID(); got != want {
			t.Errorf("dequeued %s, want %s", got, want)
		}
		if err := q.ConfirmSuccess(ctx, entry.ID); err != nil {
			t.Fatalf("ConfirmSuccess failed: %v", err)
		}
	}

	entry, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue on empty queue failed: %v", err)
	}
	if entry != nil {
		t.Errorf("empty queue should return nil, got %+v", entry)
	}
}

func TestDequeueIsPeek(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, 3)

	if _, err := q.Enqueue(ctx, store.KindVehicle, store.OpInsert, payloadFor("a")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// 未确认前重复 Dequeue 必须返回同一条（崩溃恢复语义）
	first, err := q.Dequeue(ctx)
	if err != nil || first == nil {
		t.Fatalf("Dequeue failed: %v, %+v", err, first)
	}
	second, err := q.Dequeue(ctx)
	if err != nil || second == nil {
		t.Fatalf("Dequeue failed: %v, %+v", err, second)
	}
	if first.ID != second.ID {
		t.Errorf("peek returned different entries: %s vs %s", first.ID, second.ID)
	}

	pending, err := q.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if pending != 1 {
		t.Errorf("pending = %d, want 1 (entry stays until confirmed)", pending)
	}
}

func TestRetryCeilingAbandonsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, 3)

	entry, err := q.Enqueue(ctx, store.KindWorkOrder, store.OpUpdate, payloadFor("w1"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for i := 1; i <= 2; i++ {
		abandoned, err := q.ConfirmFailure(ctx, entry.ID)
		if err != nil {
			t.Fatalf("ConfirmFailure #%d failed: %v", i, err)
		}
		if abandoned {
			t.Fatalf("entry abandoned after %d failures, ceiling is 3", i)
		}
	}

	abandoned, err := q.ConfirmFailure(ctx, entry.ID)
	if err != nil {
		t.Fatalf("ConfirmFailure #3 failed: %v", err)
	}
	if !abandoned {
		t.Fatal("third failure must abandon the entry")
	}

	pending, err := q.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending = %d, want 0 after abandonment", pending)
	}

	// 恰好一次 SyncAbandoned 事件
	select {
	case got := <-q.Abandoned():
		if got.ID != entry.ID {
			t.Errorf("abandoned event for %s, want %s", got.ID, entry.ID)
		}
	default:
		t.Fatal("expected one abandoned event")
	}
	select {
	case got := <-q.Abandoned():
		t.Fatalf("unexpected second abandoned event: %+v", got)
	default:
	}

	// 条目已删除，再报失败是 no-op
	abandoned, err = q.ConfirmFailure(ctx, entry.ID)
	if err != nil || abandoned {
		t.Errorf("ConfirmFailure on removed entry = (%v, %v), want (false, nil)", abandoned, err)
	}
}

func TestAbandonedEntryDoesNotBlockQueue(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, 2)

	bad, err := q.Enqueue(ctx, store.KindVehicle, store.OpUpdate, payloadFor("bad"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Enqueue(ctx, store.KindVehicle, store.OpUpdate, payloadFor("good")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := q.ConfirmFailure(ctx, bad.ID); err != nil {
			t.Fatalf("ConfirmFailure failed: %v", err)
		}
	}

	entry, err := q.Dequeue(ctx)
	if err != nil || entry == nil {
		t.Fatalf("Dequeue failed: %v, %+v", err, entry)
	}
	if got := entry.TargetID(); got != "good" {
		t.Errorf("head after abandonment = %s, want good", got)
	}
}

func TestAbandonedEventsNotDropped(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, 1)

	// 超过 Abandoned 通道缓冲的放弃量，一个事件都不能丢
	const n = 20
	entries := make([]*QueuedOperation, 0, n)
	for i := 0; i < n; i++ {
		e, err := q.Enqueue(ctx, store.KindVehicle, store.OpUpdate, payloadFor(fmt.Sprintf("e%d", i)))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		entries = append(entries, e)
	}

	errs := make(chan error, 1)
	go func() {
		for _, e := range entries {
			if _, err := q.ConfirmFailure(ctx, e.ID); err != nil {
				errs <- err
				return
			}
		}
		errs <- nil
	}()

	got := 0
	timeout := time.After(2 * time.Second)
	for got < n {
		select {
		case <-q.Abandoned():
			got++
		case <-timeout:
			t.Fatalf("received %d abandoned events, want %d", got, n)
		}
	}
	if err := <-errs; err != nil {
		t.Fatalf("ConfirmFailure failed: %v", err)
	}
}

func TestEnqueueValidation(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, 3)

	if _, err := q.Enqueue(ctx, "", store.OpInsert, payloadFor("a")); err == nil {
		t.Error("empty kind must be rejected")
	}
	if _, err := q.Enqueue(ctx, store.KindVehicle, "", payloadFor("a")); err == nil {
		t.Error("empty operation must be rejected")
	}
}
