package lookup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyzr/wkflws/pkg/event"
	"github.com/lyzr/wkflws/pkg/workflow"
)

// Postgres resolves workflows against a table of stored definitions,
// matching rows whose trigger_resource equals initialNodeID. Credentials
// live in a second table keyed by node identifier.
//
//	CREATE TABLE workflow_definition (
//	    workflow_id      text PRIMARY KEY,
//	    trigger_resource text NOT NULL,
//	    definition       jsonb NOT NULL
//	);
//	CREATE TABLE node_credential (
//	    node_id     text PRIMARY KEY,
//	    credentials jsonb NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// GetWorkflows queries workflow_definition for every row bound to
// initialNodeID and builds their per-state credential context.
func (p *Postgres) GetWorkflows(ctx context.Context, initialNodeID string, _ event.Event) ([]WorkflowExecutionData, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT workflow_id, definition
		FROM workflow_definition
		WHERE trigger_resource = $1
	`, initialNodeID)
	if err != nil {
		return nil, fmt.Errorf("query workflow definitions: %w", err)
	}
	defer rows.Close()

	var out []WorkflowExecutionData
	for rows.Next() {
		var workflowID string
		var raw []byte
		if err := rows.Scan(&workflowID, &raw); err != nil {
			return nil, fmt.Errorf("scan workflow definition: %w", err)
		}
		def, err := workflow.ParseDefinition(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored definition %s: %w", workflowID, err)
		}
		stateContext, err := p.stateContext(ctx, def)
		if err != nil {
			return nil, err
		}
		out = append(out, WorkflowExecutionData{
			WorkflowID:         workflowID,
			WorkflowDefinition: def,
			StateContext:       stateContext,
		})
	}
	return out, rows.Err()
}

func (p *Postgres) stateContext(ctx context.Context, def *workflow.Definition) (map[string]interface{}, error) {
	nodeIDs := make(map[string]string) // stateName -> nodeID
	for name, st := range def.States {
		if st.Resource == "" {
			continue
		}
		nodeIDs[name] = firstDotSegment(st.Resource)
	}
	if len(nodeIDs) == 0 {
		return map[string]interface{}{}, nil
	}

	unique := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		unique[id] = struct{}{}
	}
	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT node_id, credentials FROM node_credential WHERE node_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query node credentials: %w", err)
	}
	defer rows.Close()

	creds := make(map[string]map[string]interface{})
	for rows.Next() {
		var nodeID string
		var raw []byte
		if err := rows.Scan(&nodeID, &raw); err != nil {
			return nil, fmt.Errorf("scan node credential: %w", err)
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode credentials for %s: %w", nodeID, err)
		}
		creds[nodeID] = decoded
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(nodeIDs))
	for stateName, nodeID := range nodeIDs {
		if c, ok := creds[nodeID]; ok {
			out[stateName] = c
		} else {
			out[stateName] = map[string]interface{}{}
		}
	}
	return out, nil
}

func firstDotSegment(resource string) string {
	for i, r := range resource {
		if r == '.' {
			return resource[:i]
		}
	}
	return resource
}
