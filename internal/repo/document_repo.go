package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/qrengage/docpipe/internal/model"
	"github.com/qrengage/docpipe/internal/pkg/dbutil"
	appErr "github.com/qrengage/docpipe/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":         doc.ID,
		"tenant_id":  doc.TenantID,
		"file_name":  doc.FileName,
		"source_ref": doc.SourceRef,
		"status":     doc.Status,
		"error_msg":  doc.ErrorMsg,
		"ctime":      doc.Ctime,
		"mtime":      doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsUniqueViolation(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	const query = `
		SELECT id, tenant_id, file_name, source_ref, status, error_msg, ctime, mtime
		FROM documents
		WHERE id = $1 AND tenant_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, docID, tenantID)
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.TenantID, &doc.FileName, &doc.SourceRef,
		&doc.Status, &doc.ErrorMsg, &doc.Ctime, &doc.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) List(ctx context.Context, tenantID string, limit int) ([]model.Document, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "ctime desc",
		"_limit":    []uint{uint(limit)},
	}
	fields := []string{"id", "tenant_id", "file_name", "source_ref", "status", "error_msg", "ctime", "mtime"}
	sqlStr, args, err := builder.BuildSelect("documents", where, fields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.FileName, &doc.SourceRef,
			&doc.Status, &doc.ErrorMsg, &doc.Ctime, &doc.Mtime); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateStatus moves the document to the given status. The document status
// mirrors the latest job outcome and is what other subsystems read.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string, mtime int64) error {
	const query = `
		UPDATE documents
		SET status = $1, error_msg = $2, mtime = $3
		WHERE id = $4 AND tenant_id = $5
	`
	res, err := r.db.ExecContext(ctx, query, status, errMsg, mtime, docID, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Delete removes the document; chunks and jobs cascade via foreign keys.
func (r *DocumentRepo) Delete(ctx context.Context, tenantID, docID string) error {
	const query = `DELETE FROM documents WHERE id = $1 AND tenant_id = $2`
	res, err := r.db.ExecContext(ctx, query, docID, tenantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
