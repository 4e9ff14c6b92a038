package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20250901120000",
		up:      mig_20250901120000_records_up,
		down:    mig_20250901120000_records_down,
	})
}

func mig_20250901120000_records_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			rev BIGINT NOT NULL DEFAULT 1,
			type TEXT NOT NULL,
			doc JSONB NOT NULL DEFAULT '{}'::jsonb,
			ts BIGINT NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS attachments (
			record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
			data BYTEA NOT NULL,
			PRIMARY KEY (record_id, key)
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_records_type_ts ON records (type, ts DESC);`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_document_fts ON records
		USING GIN (to_tsvector('simple', coalesce(doc->>'body', '') || ' ' || coalesce(doc->>'filename', '')))
		WHERE type = 'document';
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_user_fts ON records
		USING GIN (to_tsvector('simple', coalesce(doc->>'name', '') || ' ' || coalesce(doc->>'email', '')))
		WHERE type = 'user';
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE OR REPLACE FUNCTION notify_record_change() RETURNS TRIGGER AS $$
		BEGIN
			IF TG_OP = 'DELETE' THEN
				PERFORM pg_notify('record_changes', OLD.type || ':' || TG_OP || ':' || OLD.id);
				RETURN OLD;
			END IF;
			PERFORM pg_notify('record_changes', NEW.type || ':' || TG_OP || ':' || NEW.id);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql;
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TRIGGER records_change_trigger
		AFTER INSERT OR UPDATE OR DELETE ON records
		FOR EACH ROW EXECUTE FUNCTION notify_record_change();
	`)
	if err != nil {
		return err
	}

	// Seed the search design record. Internal ids carry the underscore
	// prefix and are skipped by listings and bulk deletes.
	_, err = tx.Exec(`
		INSERT INTO records (id, rev, type, doc, ts)
		VALUES (
			'_design/documents',
			1,
			'design',
			'{"indexes": {"documents": {"fields": ["body", "filename"]}, "users": {"fields": ["name", "email"]}}}'::jsonb,
			0
		)
		ON CONFLICT (id) DO NOTHING;
	`)
	return err
}

func mig_20250901120000_records_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`DROP TRIGGER IF EXISTS records_change_trigger ON records;`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DROP FUNCTION IF EXISTS notify_record_change;`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DROP TABLE IF EXISTS attachments;`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`DROP TABLE IF EXISTS records;`)
	return err
}
