// Package pgstore persists an audit trail of accepted access requests.
// Writes are best-effort; the connector never fails an operation on a failed
// audit write.
package pgstore

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-iga/proxykit/core"
)

// AuditStore records access-request receipts in Postgres. It implements
// core.RequestAuditor.
type AuditStore struct {
	pg     *pgxpool.Pool
	schema string
}

// NewAuditStore constructs an AuditStore over pool, writing to
// schema.access_requests. An empty schema defaults to "proxykit".
func NewAuditStore(pg *pgxpool.Pool, schema string) *AuditStore {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "proxykit"
	}
	return &AuditStore{pg: pg, schema: s}
}

func (s *AuditStore) table() string { return s.schema + ".access_requests" }

// LogAccessRequest inserts one receipt row.
func (s *AuditStore) LogAccessRequest(ctx context.Context, receipt core.AccessRequestReceipt) error {
	if s.pg == nil {
		return nil
	}
	_, err := s.pg.Exec(ctx,
		`INSERT INTO `+s.table()+` (id, request_id, subject_id, direction, entitlement_ids, comment, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), receipt.ID, receipt.SubjectID, string(receipt.Direction),
		receipt.EntitlementIDs, receipt.Comment, receipt.SubmittedAt,
	)
	return err
}

// RecentBySubject returns up to limit receipts for one subject, newest first.
func (s *AuditStore) RecentBySubject(ctx context.Context, subjectID string, limit int) ([]core.AccessRequestReceipt, error) {
	if s.pg == nil || subjectID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pg.Query(ctx,
		`SELECT request_id, subject_id, direction, entitlement_ids, comment, submitted_at
		 FROM `+s.table()+` WHERE subject_id=$1 ORDER BY submitted_at DESC LIMIT $2`,
		subjectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.AccessRequestReceipt
	for rows.Next() {
		var r core.AccessRequestReceipt
		var direction string
		if err := rows.Scan(&r.ID, &r.SubjectID, &direction, &r.EntitlementIDs, &r.Comment, &r.SubmittedAt); err != nil {
			return nil, err
		}
		r.Direction = core.RequestDirection(direction)
		out = append(out, r)
	}
	return out, rows.Err()
}
