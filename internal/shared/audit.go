package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in role_audit_logs. Delta carries the
// before/after view of the mutated relation.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Delta    map[string]any
	At       time.Time
}

// AuditLogger writes role and permission mutations into role_audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

const auditInsert = `INSERT INTO role_audit_logs (actor_id, action, entity, entity_id, delta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`

// Record persists the log entry using the pool.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	deltaJSON, err := marshalDelta(log)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, auditInsert, log.ActorID, log.Action, log.Entity, log.EntityID, deltaJSON, log.At)
	return err
}

// RecordTx persists the log entry inside an open transaction so the mutation
// and its audit row commit as one atomic unit.
func (l *AuditLogger) RecordTx(ctx context.Context, tx pgx.Tx, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	deltaJSON, err := marshalDelta(log)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, auditInsert, log.ActorID, log.Action, log.Entity, log.EntityID, deltaJSON, log.At)
	return err
}

func marshalDelta(log AuditLog) ([]byte, error) {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return nil, errors.New("audit log requires action/entity/entity_id")
	}
	return json.Marshal(log.Delta)
}
