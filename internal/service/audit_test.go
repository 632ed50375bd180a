package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"ocppcs/internal/config"
	"ocppcs/internal/models"
	"ocppcs/internal/ocpp/protocol"
)

type fakeLogStore struct {
	entries []*models.MessageLog
	err     error
}

func (f *fakeLogStore) Append(ctx context.Context, entry *models.MessageLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func TestAuditLevelOffWritesNothing(t *testing.T) {
	store := &fakeLogStore{}
	audit := NewAuditLogger(store, config.MessageLogOff, zap.NewNop())

	audit.Record(context.Background(), "CP1", nil, protocol.ActionStartTransaction, "Accepted", "")
	if len(store.entries) != 0 {
		t.Fatalf("expected no entries at level 0, got %d", len(store.entries))
	}
}

func TestAuditSignificantLevelFiltersChatter(t *testing.T) {
	store := &fakeLogStore{}
	audit := NewAuditLogger(store, config.MessageLogSignificant, zap.NewNop())

	ctx := context.Background()
	audit.Record(ctx, "CP1", nil, protocol.ActionHeartbeat, "OK", "")
	audit.Record(ctx, "CP1", nil, protocol.ActionBootNotification, "Accepted", "")
	audit.Record(ctx, "CP1", nil, protocol.ActionStatusNotification, "Available", "")
	audit.Record(ctx, "CP1", nil, protocol.ActionDataTransfer, "vendor=x", "")
	audit.Record(ctx, "CP1", nil, protocol.ActionAuthorize, "'ABC123'=>Accepted", "")
	audit.Record(ctx, "CP1", nil, "Foo", "", "NotSupported")

	if len(store.entries) != 2 {
		t.Fatalf("expected 2 significant entries, got %d", len(store.entries))
	}
	if store.entries[0].Message != protocol.ActionAuthorize {
		t.Fatalf("unexpected first entry %s", store.entries[0].Message)
	}
	if store.entries[1].ErrorCode != "NotSupported" {
		t.Fatalf("expected NotSupported error code, got %q", store.entries[1].ErrorCode)
	}
}

func TestAuditAllLevelWritesEverything(t *testing.T) {
	store := &fakeLogStore{}
	audit := NewAuditLogger(store, config.MessageLogAll, zap.NewNop())

	ctx := context.Background()
	audit.Record(ctx, "CP1", nil, protocol.ActionHeartbeat, "OK", "")
	audit.Record(ctx, "CP1", nil, protocol.ActionAuthorize, "'ABC123'=>Accepted", "")

	if len(store.entries) != 2 {
		t.Fatalf("expected 2 entries at level 2, got %d", len(store.entries))
	}
}

func TestAuditSkipsEmptyChargePointID(t *testing.T) {
	store := &fakeLogStore{}
	audit := NewAuditLogger(store, config.MessageLogAll, zap.NewNop())

	audit.Record(context.Background(), "", nil, protocol.ActionAuthorize, "x", "")
	if len(store.entries) != 0 {
		t.Fatal("expected no entry without charge point id")
	}
}

func TestAuditWriteFailureIsSwallowed(t *testing.T) {
	store := &fakeLogStore{err: errors.New("disk full")}
	audit := NewAuditLogger(store, config.MessageLogAll, zap.NewNop())

	// Must not panic or propagate.
	audit.Record(context.Background(), "CP1", nil, protocol.ActionAuthorize, "x", "")
}
