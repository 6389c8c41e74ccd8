package main

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// versionHistory tracks each workflow_definition write as an RFC 7396
// merge patch against the previous stored version, so an older version
// can be recovered without keeping a full copy of every revision.
//
//	CREATE TABLE workflow_definition_version (
//	    workflow_id  text NOT NULL REFERENCES workflow_definition(workflow_id) ON DELETE CASCADE,
//	    seq          int  NOT NULL,
//	    merge_patch  jsonb NOT NULL,
//	    PRIMARY KEY (workflow_id, seq)
//	);
type versionHistory struct {
	pool *pgxpool.Pool
}

func newVersionHistory(pool *pgxpool.Pool) *versionHistory {
	return &versionHistory{pool: pool}
}

// Record diffs previous against next and appends the merge patch as
// the next sequence number for workflowID. previous may be nil for a
// brand-new workflow, in which case seq 1 stores the full document as
// its own "patch" (a merge patch against `null` reproduces the document).
func (v *versionHistory) Record(ctx context.Context, workflowID string, previous, next []byte) error {
	base := previous
	if base == nil {
		base = []byte("null")
	}
	patch, err := jsonpatch.CreateMergePatch(base, next)
	if err != nil {
		return fmt.Errorf("diff workflow versions: %w", err)
	}

	var nextSeq int
	err = v.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM workflow_definition_version WHERE workflow_id = $1
	`, workflowID).Scan(&nextSeq)
	if err != nil {
		return fmt.Errorf("compute next version sequence: %w", err)
	}

	_, err = v.pool.Exec(ctx, `
		INSERT INTO workflow_definition_version (workflow_id, seq, merge_patch)
		VALUES ($1, $2, $3)
	`, workflowID, nextSeq, patch)
	if err != nil {
		return fmt.Errorf("record workflow version: %w", err)
	}
	return nil
}

// versionSummary is one entry of a workflow's patch chain.
type versionSummary struct {
	Seq        int             `json:"seq"`
	MergePatch json.RawMessage `json:"merge_patch"`
}

func (v *versionHistory) List(ctx context.Context, workflowID string) ([]versionSummary, error) {
	rows, err := v.pool.Query(ctx, `
		SELECT seq, merge_patch FROM workflow_definition_version
		WHERE workflow_id = $1 ORDER BY seq
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list workflow versions: %w", err)
	}
	defer rows.Close()

	var out []versionSummary
	for rows.Next() {
		var s versionSummary
		if err := rows.Scan(&s.Seq, &s.MergePatch); err != nil {
			return nil, fmt.Errorf("scan workflow version: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Materialize replays every merge patch up to and including seq and
// returns the resulting document.
func (v *versionHistory) Materialize(ctx context.Context, workflowID string, seq int) ([]byte, error) {
	versions, err := v.List(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	doc := []byte("null")
	found := false
	for _, ver := range versions {
		if ver.Seq > seq {
			break
		}
		doc, err = jsonpatch.MergePatch(doc, ver.MergePatch)
		if err != nil {
			return nil, fmt.Errorf("apply version %d merge patch: %w", ver.Seq, err)
		}
		found = true
	}
	if !found {
		return nil, pgx.ErrNoRows
	}
	return doc, nil
}
