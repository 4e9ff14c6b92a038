package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wishdoc/internal/docstore"
	"wishdoc/internal/perrors"
	"wishdoc/internal/services/user"
)

var (
	alice = user.Resolved{ID: "alice", Role: user.RoleMember}
	bob   = user.Resolved{ID: "bob", Role: user.RoleMember}
	carol = user.Resolved{ID: "carol", Role: user.RoleMember}
)

func newTestService() *DocumentService {
	s := NewDocumentService(docstore.NewMemory())
	ts := int64(0)
	s.now = func() int64 { ts++; return ts }
	return s
}

func TestCreateStartsAsDraft(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "birthday list", Tos: []string{"bob"}})
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.Equal(t, int64(1), doc.Rev)
	assert.Equal(t, "alice", doc.Owner.ID)

	got, err := s.Get(ctx, alice, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "birthday list", got.Body)
}

func TestOwnerSnapshotHasNoPassword(t *testing.T) {
	store := docstore.NewMemory()
	s := NewDocumentService(store)
	ctx := context.Background()

	users := user.NewUserService(store)
	_, err := users.BootstrapAdmin(ctx, &user.CreateUserRequest{Password: "secret"})
	require.NoError(t, err)
	admin := user.Resolved{ID: "admin", Role: user.RoleAdmin}
	_, err = users.Create(ctx, admin, &user.CreateUserRequest{ID: "alice", Password: "pw", Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "Alice", doc.Owner.Name)
	assert.Empty(t, doc.Owner.Password)
}

func TestUpdateOnlyOwner(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "v1", Tos: []string{"bob"}})
	require.NoError(t, err)

	body := "v2"
	_, err = s.Update(ctx, bob, doc.ID, &UpdateRequest{Body: &body})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))

	updated, err := s.Update(ctx, alice, doc.ID, &UpdateRequest{Body: &body})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Body)
	assert.Equal(t, int64(2), updated.Rev)
}

func TestUpdateNilFieldsUntouched(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "keep me", Tos: []string{"bob"}})
	require.NoError(t, err)

	updated, err := s.Update(ctx, alice, doc.ID, &UpdateRequest{Tos: []string{"bob", "carol"}})
	require.NoError(t, err)

	assert.Equal(t, "keep me", updated.Body)
	assert.Equal(t, []string{"bob", "carol"}, updated.Tos)
}

func TestUpdateStaleRevisionConflicts(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "v1"})
	require.NoError(t, err)

	// Two readers hold rev 1; the second write loses.
	first := "from first handle"
	_, err = s.Update(ctx, alice, doc.ID, &UpdateRequest{Body: &first, Rev: doc.Rev})
	require.NoError(t, err)

	second := "from second handle"
	_, err = s.Update(ctx, alice, doc.ID, &UpdateRequest{Body: &second, Rev: doc.Rev})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeConflict))

	got, err := s.Get(ctx, alice, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "from first handle", got.Body)
}

func TestUpdateStaleRevisionKeepsAttachment(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	original := []byte("original bytes")
	doc, err := s.Create(ctx, alice, &CreateRequest{
		Body: "v1",
		Attachment: &Upload{
			Filename:    "a.txt",
			ContentType: "text/plain",
			Data:        original,
		},
	})
	require.NoError(t, err)

	// A plain edit wins the race and bumps the revision.
	winner := "v2"
	_, err = s.Update(ctx, alice, doc.ID, &UpdateRequest{Body: &winner, Rev: doc.Rev})
	require.NoError(t, err)

	// The losing edit carries a replacement file; it must not touch the
	// stored binary.
	loser := "v3"
	_, err = s.Update(ctx, alice, doc.ID, &UpdateRequest{
		Body: &loser,
		Rev:  doc.Rev,
		Attachment: &Upload{
			Filename:    "b.txt",
			ContentType: "text/plain",
			Data:        []byte("loser bytes"),
		},
	})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeConflict))

	att, err := s.FetchAttachment(ctx, alice, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, original, att.Data)

	got, err := s.Get(ctx, alice, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Body)
	assert.Equal(t, "a.txt", got.Filename)
	assert.Equal(t, user.HashSecret(original), got.ContentHash)
}

func TestChangeStatusByRecipient(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "for bob", Tos: []string{"bob"}})
	require.NoError(t, err)

	// The owner can not accept their own document.
	_, err = s.ChangeStatus(ctx, alice, doc.ID)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))

	shared, err := s.ChangeStatus(ctx, bob, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShared, shared.Status)

	// Shared is terminal.
	_, err = s.ChangeStatus(ctx, bob, doc.ID)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))
}

func TestSharingFlipsReadAccess(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "surprise", Tos: []string{"bob"}})
	require.NoError(t, err)

	// Before sharing: owner reads, recipient is told to accept first.
	_, err = s.Get(ctx, alice, doc.ID)
	require.NoError(t, err)
	_, err = s.Get(ctx, bob, doc.ID)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))

	_, err = s.ChangeStatus(ctx, bob, doc.ID)
	require.NoError(t, err)

	// After sharing: recipient reads, owner is locked out.
	_, err = s.Get(ctx, bob, doc.ID)
	require.NoError(t, err)
	_, err = s.Get(ctx, alice, doc.ID)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))
}

func TestSharedDocumentIsImmutable(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "final", Tos: []string{"bob"}})
	require.NoError(t, err)
	_, err = s.ChangeStatus(ctx, bob, doc.ID)
	require.NoError(t, err)

	body := "tampered"
	_, err = s.Update(ctx, alice, doc.ID, &UpdateRequest{Body: &body})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))

	err = s.Remove(ctx, alice, doc.ID)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))
}

func TestRemoveDraftByOwner(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	doc, err := s.Create(ctx, alice, &CreateRequest{Body: "mistake"})
	require.NoError(t, err)

	err = s.Remove(ctx, bob, doc.ID)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))

	require.NoError(t, s.Remove(ctx, alice, doc.ID))

	_, err = s.Get(ctx, alice, doc.ID)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeNotFound))
}

func TestChangeStatusMissingOwner(t *testing.T) {
	store := docstore.NewMemory()
	s := NewDocumentService(store)
	ctx := context.Background()

	_, err := store.Insert(ctx, &docstore.Record{
		ID:   "orphan",
		Type: docstore.TypeDocument,
		Doc:  []byte(`{"body":"no owner","tos":["bob"],"status":0}`),
	})
	require.NoError(t, err)

	_, err = s.ChangeStatus(ctx, bob, "orphan")
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeMalformedDocument))
}

func TestListVisibility(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	mine, err := s.Create(ctx, alice, &CreateRequest{Body: "mine"})
	require.NoError(t, err)
	forBob, err := s.Create(ctx, alice, &CreateRequest{Body: "pending for bob", Tos: []string{"bob"}})
	require.NoError(t, err)
	sharedDoc, err := s.Create(ctx, alice, &CreateRequest{Body: "accepted by bob", Tos: []string{"bob"}})
	require.NoError(t, err)
	_, err = s.ChangeStatus(ctx, bob, sharedDoc.ID)
	require.NoError(t, err)

	// Alice sees her remaining drafts, not the shared one.
	docs, err := s.List(ctx, alice, 0, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{mine.ID, forBob.ID}, ids)

	// Bob sees the pending draft and the shared document.
	docs, err = s.List(ctx, bob, 0, 0)
	require.NoError(t, err)
	ids = ids[:0]
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{forBob.ID, sharedDoc.ID}, ids)

	// Carol sees nothing.
	docs, err = s.List(ctx, carol, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestListOrderAndPaging(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	var ids []string
	for _, body := range []string{"first", "second", "third"} {
		doc, err := s.Create(ctx, alice, &CreateRequest{Body: body})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}

	docs, err := s.List(ctx, alice, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	// Newest first.
	assert.Equal(t, ids[2], docs[0].ID)
	assert.Equal(t, ids[0], docs[2].ID)

	docs, err = s.List(ctx, alice, 1, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, ids[1], docs[0].ID)

	docs, err = s.List(ctx, alice, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestAttachmentHashAndFetch(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	content := []byte("attachment bytes")
	doc, err := s.Create(ctx, alice, &CreateRequest{
		Body: "with file",
		Tos:  []string{"bob"},
		Attachment: &Upload{
			Filename:    "list.txt",
			ContentType: "text/plain",
			Data:        content,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "list.txt", doc.Filename)
	assert.Equal(t, user.HashSecret(content), doc.ContentHash)

	att, err := s.FetchAttachment(ctx, alice, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", att.ContentType)
	assert.Equal(t, content, att.Data)

	// Not readable, no attachment.
	_, err = s.FetchAttachment(ctx, bob, doc.ID)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodePermissionDenied))
}

func TestSearchReturnsMatches(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.Create(ctx, alice, &CreateRequest{Body: "a camera for the trip"})
	require.NoError(t, err)
	_, err = s.Create(ctx, alice, &CreateRequest{Body: "new skates"})
	require.NoError(t, err)

	docs, err := s.Search(ctx, "camera")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a camera for the trip", docs[0].Body)
}

func TestAnonymousActorRejected(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	nobody := user.Resolved{}

	_, err := s.Create(ctx, nobody, &CreateRequest{Body: "x"})
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidCredential))

	_, err = s.List(ctx, nobody, 0, 0)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidCredential))

	_, err = s.Get(ctx, nobody, "whatever")
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidCredential))
}
