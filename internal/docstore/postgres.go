package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"wishdoc/internal/perrors"
)

// Postgres implements Store on top of a records table with a monotonic
// rev column. Compare-and-swap updates (`WHERE rev = $n`) stand in for
// the document database's revision tokens.
type Postgres struct {
	db       *sqlx.DB
	analyzer string
}

// NewPostgres wraps db. db may be nil when the database was unreachable
// at startup; every operation then fails with a persistence error until
// a reachable store is injected. analyzer names the text search
// configuration used by Search.
func NewPostgres(db *sqlx.DB, analyzer string) *Postgres {
	if analyzer == "" {
		analyzer = "simple"
	}
	return &Postgres{db: db, analyzer: analyzer}
}

type recordRow struct {
	ID   string `db:"id"`
	Rev  int64  `db:"rev"`
	Type string `db:"type"`
	Doc  []byte `db:"doc"`
	TS   int64  `db:"ts"`
}

func (r recordRow) record() Record {
	return Record{ID: r.ID, Rev: r.Rev, Type: r.Type, Doc: r.Doc, TS: r.TS}
}

func (p *Postgres) unavailable() error {
	return perrors.NewErrPersistence("document store is not available", nil)
}

func (p *Postgres) Get(ctx context.Context, id string) (*Record, error) {
	if p.db == nil {
		return nil, p.unavailable()
	}

	var row recordRow
	err := p.db.GetContext(ctx, &row, `SELECT id, rev, type, doc, ts FROM records WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, perrors.NewErrNotFound("record not found", err, map[string]interface{}{"id": id})
		}
		return nil, perrors.NewErrPersistence("failed to get record", err)
	}

	rec := row.record()
	return &rec, nil
}

func (p *Postgres) Insert(ctx context.Context, rec *Record) (int64, error) {
	if p.db == nil {
		return 0, p.unavailable()
	}

	if rec.Rev == 0 {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO records (id, rev, type, doc, ts) VALUES ($1, 1, $2, $3, $4)`,
			rec.ID, rec.Type, rec.Doc, rec.TS)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, perrors.NewErrConflict("record already exists", err, map[string]interface{}{"id": rec.ID})
			}
			return 0, perrors.NewErrPersistence("failed to insert record", err)
		}
		return 1, nil
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE records SET rev = rev + 1, doc = $1, ts = $2 WHERE id = $3 AND rev = $4`,
		rec.Doc, rec.TS, rec.ID, rec.Rev)
	if err != nil {
		return 0, perrors.NewErrPersistence("failed to update record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, perrors.NewErrPersistence("failed to update record", err)
	}
	if n == 0 {
		return 0, perrors.NewErrConflict("stale revision", nil, map[string]interface{}{"id": rec.ID, "rev": rec.Rev})
	}
	return rec.Rev + 1, nil
}

func (p *Postgres) Destroy(ctx context.Context, id string, rev int64) error {
	if p.db == nil {
		return p.unavailable()
	}

	res, err := p.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1 AND rev = $2`, id, rev)
	if err != nil {
		return perrors.NewErrPersistence("failed to delete record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return perrors.NewErrPersistence("failed to delete record", err)
	}
	if n == 0 {
		return perrors.NewErrConflict("stale revision", nil, map[string]interface{}{"id": id, "rev": rev})
	}
	return nil
}

func (p *Postgres) ListAll(ctx context.Context) ([]Record, error) {
	if p.db == nil {
		return nil, p.unavailable()
	}

	var rows []recordRow
	err := p.db.SelectContext(ctx, &rows, `SELECT id, rev, type, doc, ts FROM records ORDER BY ts`)
	if err != nil {
		return nil, perrors.NewErrPersistence("failed to list records", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (p *Postgres) BulkDelete(ctx context.Context, entries []Entry) error {
	if p.db == nil {
		return p.unavailable()
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return perrors.NewErrPersistence("failed to start bulk delete", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = $1 AND rev = $2`, e.ID, e.Rev); err != nil {
			tx.Rollback()
			return perrors.NewErrPersistence("failed to bulk delete records", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return perrors.NewErrPersistence("failed to commit bulk delete", err)
	}
	return nil
}

func (p *Postgres) PutAttachment(ctx context.Context, id, key, contentType string, data []byte) error {
	if p.db == nil {
		return p.unavailable()
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attachments (record_id, key, content_type, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (record_id, key) DO UPDATE SET content_type = $3, data = $4
	`, id, key, contentType, data)
	if err != nil {
		return perrors.NewErrPersistence("failed to store attachment", err)
	}
	return nil
}

func (p *Postgres) GetAttachment(ctx context.Context, id, key string) (*Attachment, error) {
	if p.db == nil {
		return nil, p.unavailable()
	}

	var att struct {
		ContentType string `db:"content_type"`
		Data        []byte `db:"data"`
	}
	err := p.db.GetContext(ctx, &att,
		`SELECT content_type, data FROM attachments WHERE record_id = $1 AND key = $2`, id, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, perrors.NewErrNotFound("attachment not found", err, map[string]interface{}{"id": id, "key": key})
		}
		return nil, perrors.NewErrPersistence("failed to get attachment", err)
	}
	return &Attachment{ContentType: att.ContentType, Data: att.Data}, nil
}

// Search runs a full-text query against one of the named indexes. The
// indexed text mirrors the original design documents: body plus
// filename for documents, name plus email for users.
func (p *Postgres) Search(ctx context.Context, index, query string) ([]Record, error) {
	if p.db == nil {
		return nil, p.unavailable()
	}

	var recType, vector string
	switch index {
	case IndexDocuments:
		recType = TypeDocument
		vector = `coalesce(doc->>'body', '') || ' ' || coalesce(doc->>'filename', '')`
	case IndexUsers:
		recType = TypeUser
		vector = `coalesce(doc->>'name', '') || ' ' || coalesce(doc->>'email', '')`
	default:
		return nil, perrors.NewErrInvalidRequest(fmt.Sprintf("unknown search index %q", index), nil)
	}

	q := fmt.Sprintf(`
		SELECT id, rev, type, doc, ts FROM records
		WHERE type = $1
		  AND to_tsvector($2::regconfig, %s) @@ plainto_tsquery($2::regconfig, $3)
		ORDER BY ts DESC
	`, vector)

	var rows []recordRow
	if err := p.db.SelectContext(ctx, &rows, q, recType, p.analyzer, strings.TrimSpace(query)); err != nil {
		return nil, perrors.NewErrPersistence("failed to search records", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// unique_violation
		return pqErr.Code == "23505"
	}
	return false
}
