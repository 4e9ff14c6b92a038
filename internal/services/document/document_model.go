package document

import (
	"wishdoc/internal/services/user"
)

// Status is the document lifecycle state. The only transition is
// Draft to Shared, made by a listed recipient; Shared is terminal.
type Status int

const (
	StatusDraft  Status = 0
	StatusShared Status = 1
)

// Document is a wish shared with named recipients. Owner is a
// denormalized snapshot of the owning user taken at create/edit time;
// later changes to the account do not propagate here. Tos holds
// recipient user ids or screen names, not validated against existing
// accounts.
type Document struct {
	ID          string     `json:"-"`
	Rev         int64      `json:"-"`
	RecordType  string     `json:"-"`
	Owner       *user.User `json:"user,omitempty"`
	Body        string     `json:"body"`
	Tos         []string   `json:"tos,omitempty"`
	Status      Status     `json:"status"`
	Timestamp   int64      `json:"timestamp"`
	Filename    string     `json:"filename,omitempty"`
	ContentHash string     `json:"hash,omitempty"`
}

// Upload is an incoming attachment. Data takes precedence; when only
// Path is set the bytes are read from the temp upload file, which is
// removed after ingestion.
type Upload struct {
	Filename    string
	ContentType string
	Path        string
	Data        []byte
}

// CreateRequest carries the fields for a new draft.
type CreateRequest struct {
	Body       string
	Tos        []string
	Attachment *Upload
}

// UpdateRequest is a partial patch; nil fields are left untouched. Rev,
// when non-zero, is the revision the caller read and arbitrates
// concurrent edits; zero means "the revision loaded now".
type UpdateRequest struct {
	Body       *string
	Tos        []string
	Attachment *Upload
	Rev        int64
}
