package document

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wishdoc/internal/docstore"
	"wishdoc/internal/services/user"
)

func draftDoc(ownerID string, tos ...string) *Document {
	return &Document{
		ID:         "doc-1",
		RecordType: docstore.TypeDocument,
		Owner:      &user.User{ID: ownerID},
		Body:       "a wish",
		Tos:        tos,
		Status:     StatusDraft,
	}
}

func TestReadableDraftOnlyOwner(t *testing.T) {
	doc := draftDoc("alice", "bob")

	assert.True(t, Readable(doc, user.Resolved{ID: "alice"}))
	assert.False(t, Readable(doc, user.Resolved{ID: "bob"}))
	assert.False(t, Readable(doc, user.Resolved{ID: "carol"}))
}

func TestReadableSharedOnlyRecipients(t *testing.T) {
	doc := draftDoc("alice", "bob")
	doc.Status = StatusShared

	// The owner loses read access when they are not also a recipient.
	assert.False(t, Readable(doc, user.Resolved{ID: "alice"}))
	assert.True(t, Readable(doc, user.Resolved{ID: "bob"}))
	assert.False(t, Readable(doc, user.Resolved{ID: "carol"}))
}

func TestReadableSharedOwnerAlsoRecipient(t *testing.T) {
	doc := draftDoc("alice", "alice", "bob")
	doc.Status = StatusShared

	assert.True(t, Readable(doc, user.Resolved{ID: "alice"}))
}

func TestListedMatchesScreenName(t *testing.T) {
	doc := draftDoc("alice", "bobby")
	doc.Status = StatusShared

	assert.True(t, Readable(doc, user.Resolved{ID: "bob", ScreenName: "bobby"}))
	assert.False(t, Readable(doc, user.Resolved{ID: "bob"}))
}

func TestListedEmptyScreenNameNeverMatches(t *testing.T) {
	doc := draftDoc("alice", "")
	doc.Status = StatusShared

	assert.False(t, Readable(doc, user.Resolved{ID: "bob", ScreenName: ""}))
}

func TestEditableOnlyOwnerDraft(t *testing.T) {
	doc := draftDoc("alice", "bob")

	assert.True(t, Editable(doc, user.Resolved{ID: "alice"}))
	assert.False(t, Editable(doc, user.Resolved{ID: "bob"}))

	doc.Status = StatusShared
	assert.False(t, Editable(doc, user.Resolved{ID: "alice"}))
}

func TestStatusChangeableOnlyRecipientDraft(t *testing.T) {
	doc := draftDoc("alice", "bob")

	assert.True(t, StatusChangeable(doc, user.Resolved{ID: "bob"}))
	assert.False(t, StatusChangeable(doc, user.Resolved{ID: "alice"}))
	assert.False(t, StatusChangeable(doc, user.Resolved{ID: "carol"}))

	doc.Status = StatusShared
	assert.False(t, StatusChangeable(doc, user.Resolved{ID: "bob"}))
}

func TestStatusChangeableOwnerListedAsRecipient(t *testing.T) {
	doc := draftDoc("alice", "alice", "bob")

	assert.True(t, StatusChangeable(doc, user.Resolved{ID: "alice"}))
}

func TestPredicatesRejectMalformed(t *testing.T) {
	actor := user.Resolved{ID: "alice"}

	cases := []struct {
		name string
		doc  *Document
	}{
		{"nil document", nil},
		{"internal id", &Document{ID: "_design/documents", RecordType: docstore.TypeDocument, Owner: &user.User{ID: "alice"}}},
		{"wrong record type", &Document{ID: "doc-1", RecordType: docstore.TypeUser, Owner: &user.User{ID: "alice"}}},
		{"nil owner", &Document{ID: "doc-1", RecordType: docstore.TypeDocument}},
		{"empty owner id", &Document{ID: "doc-1", RecordType: docstore.TypeDocument, Owner: &user.User{}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, Readable(tc.doc, actor))
			assert.False(t, Editable(tc.doc, actor))
			assert.False(t, StatusChangeable(tc.doc, actor))
		})
	}
}
