package storage

import (
	"context"
	"fmt"
	"strings"

	"duit/internal/core"
)

// InsertAuditLog appends one audit record. It must run inside the same
// transactional unit as the mutation it describes; a failed append fails the
// whole operation.
func (q *Queries) InsertAuditLog(ctx context.Context, l core.AuditLog) error {
	const query = `INSERT INTO audit_logs (user_id, action, table_name, record_id, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query,
		l.UserID, l.Action, l.TableName, l.RecordID, string(l.Meta), l.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns one newest-first page of the user's audit trail plus
// the total match count.
func (q *Queries) ListAuditLogs(ctx context.Context, userID string, f core.AuditFilter) ([]core.AuditLog, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if f.TableName != nil {
		where = append(where, "table_name = ?")
		args = append(args, *f.TableName)
	}
	if f.Action != nil {
		where = append(where, "action = ?")
		args = append(args, string(*f.Action))
	}
	if f.RecordID != nil {
		where = append(where, "record_id = ?")
		args = append(args, *f.RecordID)
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	listQuery := `SELECT id, user_id, action, table_name, record_id, meta, created_at
		FROM audit_logs WHERE ` + cond + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := q.db.QueryContext(ctx, listQuery, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []core.AuditLog
	for rows.Next() {
		var (
			l    core.AuditLog
			meta string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.TableName, &l.RecordID, &meta, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit log: %w", err)
		}
		l.Meta = []byte(meta)
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}
