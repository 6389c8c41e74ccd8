package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyzr/wkflws/pkg/workflow"
)

// store performs the administrative writes that pkg/lookup.Postgres
// only ever reads: it owns the workflow_definition and node_credential
// tables end to end.
type store struct {
	pool     *pgxpool.Pool
	versions *versionHistory
}

func newStore(pool *pgxpool.Pool) *store {
	return &store{pool: pool, versions: newVersionHistory(pool)}
}

type workflowRecord struct {
	WorkflowID      string              `json:"workflow_id"`
	TriggerResource string              `json:"trigger_resource"`
	Definition      *workflow.Definition `json:"definition"`
}

func (s *store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT workflow_id FROM workflow_definition ORDER BY workflow_id`)
	if err != nil {
		return nil, fmt.Errorf("list workflow definitions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workflow id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *store) Get(ctx context.Context, workflowID string) (*workflowRecord, error) {
	var triggerResource string
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT trigger_resource, definition FROM workflow_definition WHERE workflow_id = $1
	`, workflowID).Scan(&triggerResource, &raw)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("workflow %s not found", workflowID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch workflow %s: %w", workflowID, err)
	}
	def, err := workflow.ParseDefinition(raw)
	if err != nil {
		return nil, fmt.Errorf("parse stored definition %s: %w", workflowID, err)
	}
	return &workflowRecord{WorkflowID: workflowID, TriggerResource: triggerResource, Definition: def}, nil
}

func (s *store) Put(ctx context.Context, workflowID, triggerResource string, def *workflow.Definition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode workflow definition: %w", err)
	}

	var previous []byte
	err = s.pool.QueryRow(ctx, `SELECT definition FROM workflow_definition WHERE workflow_id = $1`, workflowID).Scan(&previous)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("fetch previous workflow %s: %w", workflowID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflow_definition (workflow_id, trigger_resource, definition)
		VALUES ($1, $2, $3)
		ON CONFLICT (workflow_id) DO UPDATE
		SET trigger_resource = EXCLUDED.trigger_resource, definition = EXCLUDED.definition
	`, workflowID, triggerResource, raw)
	if err != nil {
		return fmt.Errorf("store workflow %s: %w", workflowID, err)
	}

	if err := s.versions.Record(ctx, workflowID, previous, raw); err != nil {
		return fmt.Errorf("record version history for %s: %w", workflowID, err)
	}
	return nil
}

func (s *store) Delete(ctx context.Context, workflowID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM workflow_definition WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("delete workflow %s: %w", workflowID, err)
	}
	return nil
}

func (s *store) PutCredential(ctx context.Context, nodeID string, creds map[string]interface{}) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO node_credential (node_id, credentials)
		VALUES ($1, $2)
		ON CONFLICT (node_id) DO UPDATE SET credentials = EXCLUDED.credentials
	`, nodeID, raw)
	if err != nil {
		return fmt.Errorf("store credentials for %s: %w", nodeID, err)
	}
	return nil
}
