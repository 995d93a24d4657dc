package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nimburion/docprobe/pkg/observability/logger"
)

func TestNewAdapter_Validation(t *testing.T) {
	_, err := NewAdapter(Config{}, logger.Nop())
	if err == nil {
		t.Fatal("expected error for empty region")
	}
}

func TestPing_WhenClosed(t *testing.T) {
	a := &Adapter{closed: true, logger: logger.Nop()}
	if err := a.Ping(context.Background()); err == nil {
		t.Fatal("expected error when closed")
	}
}

func TestOperations_WhenClosed(t *testing.T) {
	a := &Adapter{closed: true, logger: logger.Nop()}
	ctx := context.Background()

	if _, err := a.PutItem(ctx, &dynamodb.PutItemInput{}); err == nil {
		t.Error("PutItem: expected error when closed")
	}
	if _, err := a.GetItem(ctx, &dynamodb.GetItemInput{}); err == nil {
		t.Error("GetItem: expected error when closed")
	}
	if _, err := a.DeleteItem(ctx, &dynamodb.DeleteItemInput{}); err == nil {
		t.Error("DeleteItem: expected error when closed")
	}
	if _, err := a.ScanAll(ctx, &dynamodb.ScanInput{}); err == nil {
		t.Error("ScanAll: expected error when closed")
	}
	if err := a.BatchWrite(ctx, "posts", nil); err == nil {
		t.Error("BatchWrite: expected error when closed")
	}
	if err := a.EnsureTable(ctx, "posts", "_id"); err == nil {
		t.Error("EnsureTable: expected error when closed")
	}
}

func TestBatchWrite_EmptyIsNoop(t *testing.T) {
	a := &Adapter{logger: logger.Nop()}
	if err := a.BatchWrite(context.Background(), "posts", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	a := &Adapter{}
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}

func TestIsThrottlingError(t *testing.T) {
	if IsThrottlingError(nil) {
		t.Fatal("nil error must return false")
	}
	if IsThrottlingError(errors.New("x")) {
		t.Fatal("generic error must return false")
	}
	if !IsThrottlingError(&types.ProvisionedThroughputExceededException{}) {
		t.Fatal("expected throttling error to be detected")
	}
}

func TestIsConditionFailed(t *testing.T) {
	if IsConditionFailed(nil) || IsConditionFailed(errors.New("x")) {
		t.Fatal("unrelated errors must return false")
	}
	wrapped := fmt.Errorf("put: %w", &types.ConditionalCheckFailedException{})
	if !IsConditionFailed(wrapped) {
		t.Fatal("expected wrapped condition failure to be detected")
	}
}

func TestWithOperationTimeout_UsesAdapterTimeoutWhenNoDeadline(t *testing.T) {
	a := &Adapter{timeout: 2 * time.Second}

	ctx, cancel := a.withOperationTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline from operation timeout")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 2*time.Second {
		t.Fatalf("unexpected remaining timeout: %v", remaining)
	}
}

func TestWithOperationTimeout_PreservesCallerDeadline(t *testing.T) {
	a := &Adapter{timeout: 2 * time.Second}
	parentCtx, parentCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer parentCancel()

	ctx, cancel := a.withOperationTimeout(parentCtx)
	defer cancel()

	parentDeadline, _ := parentCtx.Deadline()
	gotDeadline, _ := ctx.Deadline()
	if !gotDeadline.Equal(parentDeadline) {
		t.Fatalf("expected caller deadline to be preserved, got %v want %v", gotDeadline, parentDeadline)
	}
}
