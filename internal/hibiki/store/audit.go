package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibikihq/hibiki/internal/hibiki/dispatch"
)

// AuditRecord is one row of the execution audit log.
type AuditRecord struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	ProcessID    string
	Handler      sql.NullString
	Operation    sql.NullString
	Risk         sql.NullString
	ParamsJSON   sql.NullString
	Success      bool
	ErrorMessage sql.NullString
}

// Record persists one audit entry. It satisfies dispatch.Recorder.
func (s *Store) Record(ctx context.Context, entry dispatch.AuditEntry) error {
	var paramsJSON sql.NullString
	if len(entry.Params) > 0 {
		jsonBytes, err := json.Marshal(entry.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal audit params: %w", err)
		}
		paramsJSON = sql.NullString{String: string(jsonBytes), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, process_id, handler, operation, risk, params_json, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, time.Now(), entry.TraceID, entry.ProcessID,
		nullable(entry.Handler), nullable(entry.Operation), nullable(entry.Risk),
		paramsJSON, entry.Success, nullable(entry.Error))
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// RecentAudit retrieves the most recent audit records, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]*AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, process_id, handler, operation, risk, params_json, success, error_message
		FROM audit_log
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()
	return scanAudit(rows)
}

// AuditByTrace retrieves all audit records for one trace, oldest first.
func (s *Store) AuditByTrace(ctx context.Context, traceID string) ([]*AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, process_id, handler, operation, risk, params_json, success, error_message
		FROM audit_log
		WHERE trace_id = ?
		ORDER BY ts ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log by trace: %w", err)
	}
	defer rows.Close()
	return scanAudit(rows)
}

func scanAudit(rows *sql.Rows) ([]*AuditRecord, error) {
	var records []*AuditRecord
	for rows.Next() {
		rec := &AuditRecord{}
		err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.TraceID, &rec.ProcessID,
			&rec.Handler, &rec.Operation, &rec.Risk,
			&rec.ParamsJSON, &rec.Success, &rec.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return records, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
