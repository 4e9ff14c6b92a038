// Package docstore is the adapter for the document database: a flat
// keyspace of typed JSON records guarded by revision tokens, with binary
// attachments and a full-text search index per record type.
package docstore

import "context"

// Record types stored in the single keyspace.
const (
	TypeDocument = "document"
	TypeUser     = "user"
)

// InternalPrefix marks store-internal records (design documents and the
// like). Records whose id starts with it are excluded from listings and
// from every permission check.
const InternalPrefix = "_"

// AttachmentKey is the fixed key a document's binary attachment is
// stored under.
const AttachmentKey = "file"

// Search index names.
const (
	IndexDocuments = "documents"
	IndexUsers     = "users"
)

// Record is a stored entry: a JSON body plus store-level metadata. Rev
// is the optimistic-concurrency token; every write must present the rev
// read at load time.
type Record struct {
	ID   string
	Rev  int64
	Type string
	Doc  []byte
	TS   int64
}

// Entry identifies a record for bulk deletion.
type Entry struct {
	ID  string
	Rev int64
}

// Attachment is a stored binary with its content type.
type Attachment struct {
	ContentType string
	Data        []byte
}

// Store is the contract the rest of the system depends on. Get returns
// a not_found error for absent ids. Insert creates the record when
// rec.Rev is zero and otherwise replaces it via compare-and-swap,
// failing with a conflict error on a stale rev; it returns the new
// revision. Destroy is likewise rev-guarded.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Insert(ctx context.Context, rec *Record) (int64, error)
	Destroy(ctx context.Context, id string, rev int64) error
	ListAll(ctx context.Context) ([]Record, error)
	BulkDelete(ctx context.Context, entries []Entry) error
	PutAttachment(ctx context.Context, id, key, contentType string, data []byte) error
	GetAttachment(ctx context.Context, id, key string) (*Attachment, error)
	Search(ctx context.Context, index, query string) ([]Record, error)
}

// IsInternal reports whether id belongs to a store-internal record.
func IsInternal(id string) bool {
	return len(id) > 0 && id[:1] == InternalPrefix
}
