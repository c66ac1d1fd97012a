// Package audit builds and appends the immutable audit trail.
//
// One record is written per successful mutating operation, inside the same
// transactional unit as the mutation itself: if the append fails the whole
// operation rolls back. Records are never updated or deleted.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"duit/internal/core"
	"duit/internal/storage"
)

// Record appends one audit record through the given (usually tx-scoped)
// query set.
func Record(ctx context.Context, q *storage.Queries, userID string, action core.AuditAction, table, recordID string, meta json.RawMessage) error {
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	err := q.InsertAuditLog(ctx, core.AuditLog{
		UserID:    userID,
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		Meta:      meta,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("record audit %s on %s/%s: %w", action, table, recordID, err)
	}
	return nil
}

// Snapshot captures the full entity state for create/delete/soft_delete/
// restore records.
func Snapshot(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// Diff captures the changed-field delta between two states of the same
// entity, keyed by field name with from/to values. Timestamps the caller
// never touched (created_at) are excluded.
func Diff(before, after any) json.RawMessage {
	var b, a map[string]json.RawMessage
	if err := json.Unmarshal(Snapshot(before), &b); err != nil {
		return json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(Snapshot(after), &a); err != nil {
		return json.RawMessage(`{}`)
	}

	diff := make(map[string]map[string]json.RawMessage)
	for field, afterVal := range a {
		if field == "created_at" {
			continue
		}
		beforeVal, ok := b[field]
		if ok && string(beforeVal) == string(afterVal) {
			continue
		}
		diff[field] = map[string]json.RawMessage{"from": beforeVal, "to": afterVal}
	}

	out, err := json.Marshal(diff)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return out
}

// List returns one newest-first page of the user's audit trail.
func List(ctx context.Context, q *storage.Queries, userID string, f core.AuditFilter) (core.Page[core.AuditLog], error) {
	if err := f.Validate(); err != nil {
		return core.Page[core.AuditLog]{}, err
	}
	logs, total, err := q.ListAuditLogs(ctx, userID, f)
	if err != nil {
		return core.Page[core.AuditLog]{}, fmt.Errorf("list audit logs: %w", err)
	}
	if logs == nil {
		logs = []core.AuditLog{}
	}
	return core.Page[core.AuditLog]{Data: logs, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
