package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/viant/approval/runtime/instance"
	"github.com/viant/approval/service/dao"
	"github.com/viant/approval/service/dao/criteria"
)

// Schema creates the instance table. Queryable fields are denormalised into
// columns; the full instance is kept in doc.
const Schema = `CREATE TABLE IF NOT EXISTS workflow_instances (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL DEFAULT '',
	definition_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	status TEXT NOT NULL,
	current_node_id TEXT NOT NULL DEFAULT '',
	approver_ids TEXT[] NOT NULL DEFAULT '{}',
	timeout_at TIMESTAMPTZ,
	version BIGINT NOT NULL,
	doc JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS workflow_instances_due ON workflow_instances (status, timeout_at);
CREATE INDEX IF NOT EXISTS workflow_instances_approvers ON workflow_instances USING GIN (approver_ids);`

const (
	insertSQL = `INSERT INTO workflow_instances (id, tenant_id, definition_id, document_id, status, current_node_id, approver_ids, timeout_at, version, doc)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (id) DO NOTHING`
	updateSQL = `UPDATE workflow_instances SET tenant_id = $2, definition_id = $3, document_id = $4, status = $5, current_node_id = $6,
approver_ids = $7, timeout_at = $8, version = $9, doc = $10 WHERE id = $1 AND version = $11`
	selectSQL = `SELECT doc FROM workflow_instances`
)

// Service stores instances in PostgreSQL.
type Service struct {
	db *pgxpool.Pool
}

var _ dao.Service[string, instance.WorkflowInstance] = (*Service)(nil)

// EnsureSchema creates the table and indexes when missing.
func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

func (s *Service) Save(ctx context.Context, inst *instance.WorkflowInstance) error {
	if inst == nil {
		return dao.ErrNilEntity
	}
	if inst.ID == "" {
		return dao.ErrInvalidID
	}
	current := inst.Version
	inst.Version = current + 1
	doc, err := json.Marshal(inst)
	if err != nil {
		inst.Version = current
		return fmt.Errorf("failed to marshal instance %v: %w", inst.ID, err)
	}
	approvers := inst.CurrentApproverIDs
	if approvers == nil {
		approvers = []string{}
	}
	args := []interface{}{inst.ID, inst.TenantID, inst.WorkflowDefinitionID, inst.DocumentID, string(inst.Status),
		inst.CurrentNodeID, approvers, inst.TimeoutAt, inst.Version, doc}
	statement := insertSQL
	if current > 0 {
		statement = updateSQL
		args = append(args, current)
	}
	tag, err := s.db.Exec(ctx, statement, args...)
	if err != nil {
		inst.Version = current
		return fmt.Errorf("failed to save instance %v: %w", inst.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	inst.Version = current
	if current == 0 {
		return dao.ErrConflict
	}
	var exists bool
	if err = s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM workflow_instances WHERE id = $1)`, inst.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check instance %v: %w", inst.ID, err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	return dao.ErrConflict
}

func (s *Service) Load(ctx context.Context, id string) (*instance.WorkflowInstance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var doc []byte
	if err := s.db.QueryRow(ctx, selectSQL+` WHERE id = $1`, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dao.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load instance %v: %w", id, err)
	}
	return decode(doc)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM workflow_instances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance %v: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return dao.ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.WorkflowInstance, error) {
	where, args := conditions(criteria.NewFilter(parameters))
	statement := selectSQL
	if len(where) > 0 {
		statement += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := s.db.Query(ctx, statement+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var result []*instance.WorkflowInstance
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		inst, err := decode(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

func conditions(filter *criteria.Filter) ([]string, []interface{}) {
	var where []string
	var args []interface{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if len(filter.Statuses) > 0 {
		add("status = ANY($%d)", filter.Statuses)
	}
	if filter.ApproverID != "" {
		add("$%d = ANY(approver_ids)", filter.ApproverID)
	}
	if filter.DueBefore != nil {
		add("timeout_at <= $%d", *filter.DueBefore)
	}
	if filter.DefinitionID != "" {
		add("definition_id = $%d", filter.DefinitionID)
	}
	if filter.DocumentID != "" {
		add("document_id = $%d", filter.DocumentID)
	}
	if filter.TenantID != "" {
		add("tenant_id = $%d", filter.TenantID)
	}
	return where, args
}

func decode(doc []byte) (*instance.WorkflowInstance, error) {
	ret := &instance.WorkflowInstance{}
	if err := json.Unmarshal(doc, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return ret, nil
}

// New creates a store over an existing pool.
func New(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Connect opens a pool for dsn.
func Connect(ctx context.Context, dsn string) (*Service, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return New(pool), pool, nil
}
