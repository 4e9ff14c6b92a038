package document

import (
	"context"
	"os"
	"sort"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/google/uuid"

	"wishdoc/internal/docstore"
	"wishdoc/internal/perrors"
	"wishdoc/internal/services/user"
)

// DocumentService is the document lifecycle controller. It loads
// records from the store, applies the authorization predicates and
// persists the outcome. All failures come back as typed errors; nothing
// escapes this boundary as a panic or a raw store error.
type DocumentService struct {
	store docstore.Store
	now   func() int64
}

func NewDocumentService(store docstore.Store) *DocumentService {
	return &DocumentService{
		store: store,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

func decodeDocument(rec *docstore.Record) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(rec.Doc, &doc); err != nil {
		return nil, perrors.NewErrMalformedDocument("failed to decode document record", err, map[string]interface{}{"id": rec.ID})
	}
	doc.ID = rec.ID
	doc.Rev = rec.Rev
	doc.RecordType = rec.Type
	return &doc, nil
}

func (s *DocumentService) persist(ctx context.Context, doc *Document, rev int64) (int64, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return 0, perrors.NewErrInternalServerError("failed to encode document record", err)
	}

	newRev, err := s.store.Insert(ctx, &docstore.Record{
		ID:   doc.ID,
		Rev:  rev,
		Type: docstore.TypeDocument,
		Doc:  body,
		TS:   doc.Timestamp,
	})
	if err != nil {
		return 0, err
	}
	doc.Rev = newRev
	return newRev, nil
}

// loadUpload returns the upload bytes, reading the temp upload file
// when the bytes were not supplied inline.
func loadUpload(up *Upload) ([]byte, error) {
	if up.Data != nil {
		return up.Data, nil
	}
	if up.Path != "" {
		data, err := os.ReadFile(up.Path)
		if err != nil {
			return nil, perrors.NewErrInvalidRequest("failed to read uploaded file", err)
		}
		return data, nil
	}
	return nil, perrors.NewErrInvalidRequest("attachment has no content", nil)
}

// snapshot resolves the owner snapshot embedded into a document. When
// the actor has a stored account the snapshot mirrors it (minus the
// password digest); OAuth-only identities fall back to what the
// credential carried.
func (s *DocumentService) snapshot(ctx context.Context, actor user.Resolved) *user.User {
	if rec, err := s.store.Get(ctx, actor.ID); err == nil && rec.Type == docstore.TypeUser {
		var u user.User
		if err := json.Unmarshal(rec.Doc, &u); err == nil {
			u.ID = rec.ID
			return u.Snapshot()
		}
	}
	return &user.User{ID: actor.ID, ScreenName: actor.ScreenName, Role: actor.Role}
}

// Create stores a new draft owned by actor and returns it with the
// persisted revision.
func (s *DocumentService) Create(ctx context.Context, actor user.Resolved, req *CreateRequest) (*Document, error) {
	if actor.ID == "" {
		return nil, perrors.NewErrInvalidCredential("no verified identity", nil)
	}

	doc := &Document{
		ID:         uuid.NewString(),
		RecordType: docstore.TypeDocument,
		Owner:      s.snapshot(ctx, actor),
		Body:       req.Body,
		Tos:        req.Tos,
		Status:     StatusDraft,
		Timestamp:  s.now(),
	}

	var attachData []byte
	if req.Attachment != nil {
		data, err := loadUpload(req.Attachment)
		if err != nil {
			return nil, err
		}
		doc.Filename = req.Attachment.Filename
		doc.ContentHash = user.HashSecret(data)
		attachData = data
	}

	if _, err := s.persist(ctx, doc, 0); err != nil {
		return nil, err
	}

	if req.Attachment != nil {
		if err := s.store.PutAttachment(ctx, doc.ID, docstore.AttachmentKey, req.Attachment.ContentType, attachData); err != nil {
			// Do not leave a document whose hash references a binary
			// that was never stored.
			s.store.Destroy(ctx, doc.ID, doc.Rev)
			return nil, err
		}
		if req.Attachment.Path != "" {
			os.Remove(req.Attachment.Path)
		}
	}

	return doc, nil
}

// Update applies a partial patch to a draft. Only the owner may edit,
// and only while the document is a draft. A stale revision in the
// request loses the race and fails with a conflict.
func (s *DocumentService) Update(ctx context.Context, actor user.Resolved, id string, req *UpdateRequest) (*Document, error) {
	if actor.ID == "" {
		return nil, perrors.NewErrInvalidCredential("no verified identity", nil)
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(rec)
	if err != nil {
		return nil, err
	}

	if !Editable(doc, actor) {
		return nil, perrors.NewErrPermissionDenied("no permission", nil, map[string]interface{}{"id": id, "actor": actor.ID})
	}

	if req.Tos != nil {
		doc.Tos = req.Tos
	}
	if req.Body != nil {
		doc.Body = *req.Body
	}
	doc.Timestamp = s.now()

	var attachData []byte
	if req.Attachment != nil {
		data, err := loadUpload(req.Attachment)
		if err != nil {
			return nil, err
		}
		doc.Filename = req.Attachment.Filename
		doc.ContentHash = user.HashSecret(data)
		attachData = data
	}

	// The rev-guarded write decides the race; the stored binary is only
	// replaced once this edit has won.
	rev := rec.Rev
	if req.Rev != 0 {
		rev = req.Rev
	}
	if _, err := s.persist(ctx, doc, rev); err != nil {
		return nil, err
	}

	if req.Attachment != nil {
		if err := s.store.PutAttachment(ctx, id, docstore.AttachmentKey, req.Attachment.ContentType, attachData); err != nil {
			return nil, err
		}
		if req.Attachment.Path != "" {
			os.Remove(req.Attachment.Path)
		}
	}
	return doc, nil
}

// ChangeStatus flips a draft to shared. Only a listed recipient may do
// this; there is no way back.
func (s *DocumentService) ChangeStatus(ctx context.Context, actor user.Resolved, id string) (*Document, error) {
	if actor.ID == "" {
		return nil, perrors.NewErrInvalidCredential("no verified identity", nil)
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(rec)
	if err != nil {
		return nil, err
	}

	if doc.Owner == nil || doc.Owner.ID == "" {
		return nil, perrors.NewErrMalformedDocument("could not find owner", nil, map[string]interface{}{"id": id})
	}
	if !StatusChangeable(doc, actor) {
		return nil, perrors.NewErrPermissionDenied("no permission", nil, map[string]interface{}{"id": id, "actor": actor.ID})
	}

	doc.Status = StatusShared
	if _, err := s.persist(ctx, doc, rec.Rev); err != nil {
		return nil, err
	}
	return doc, nil
}

// Remove deletes a draft. Only the owner may delete, and a shared
// document can not be deleted at all.
func (s *DocumentService) Remove(ctx context.Context, actor user.Resolved, id string) error {
	if actor.ID == "" {
		return perrors.NewErrInvalidCredential("no verified identity", nil)
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	doc, err := decodeDocument(rec)
	if err != nil {
		return err
	}

	if doc.Owner == nil || doc.Owner.ID == "" {
		return perrors.NewErrMalformedDocument("could not find owner", nil, map[string]interface{}{"id": id})
	}
	if !Editable(doc, actor) {
		return perrors.NewErrPermissionDenied("no permission", nil, map[string]interface{}{"id": id, "actor": actor.ID})
	}

	return s.store.Destroy(ctx, rec.ID, rec.Rev)
}

// List returns the documents actor may see: readable ones plus drafts
// awaiting their acceptance. Newest first; offset/limit slice the
// sorted result, limit 0 means no limit.
func (s *DocumentService) List(ctx context.Context, actor user.Resolved, offset, limit int) ([]*Document, error) {
	if actor.ID == "" {
		return nil, perrors.NewErrInvalidCredential("no verified identity", nil)
	}

	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0)
	for i := range records {
		rec := &records[i]
		if docstore.IsInternal(rec.ID) || rec.Type != docstore.TypeDocument {
			continue
		}
		doc, err := decodeDocument(rec)
		if err != nil {
			continue
		}
		if Readable(doc, actor) || StatusChangeable(doc, actor) {
			docs = append(docs, doc)
		}
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Timestamp > docs[j].Timestamp })

	if offset > 0 || limit > 0 {
		if offset >= len(docs) {
			return []*Document{}, nil
		}
		docs = docs[offset:]
		if limit > 0 && limit < len(docs) {
			docs = docs[:limit]
		}
	}
	return docs, nil
}

// Get returns a single document when actor may read it. A recipient of
// a still-draft document gets a permission error telling them to accept
// first; everyone else just gets denied.
func (s *DocumentService) Get(ctx context.Context, actor user.Resolved, id string) (*Document, error) {
	if actor.ID == "" {
		return nil, perrors.NewErrInvalidCredential("no verified identity", nil)
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(rec)
	if err != nil {
		return nil, err
	}

	if Readable(doc, actor) {
		return doc, nil
	}
	if StatusChangeable(doc, actor) {
		return nil, perrors.NewErrPermissionDenied("need to change status first", nil, map[string]interface{}{"id": id})
	}
	return nil, perrors.NewErrPermissionDenied("no permission", nil, map[string]interface{}{"id": id, "actor": actor.ID})
}

// FetchAttachment streams the stored binary of a readable document.
func (s *DocumentService) FetchAttachment(ctx context.Context, actor user.Resolved, id string) (*docstore.Attachment, error) {
	if actor.ID == "" {
		return nil, perrors.NewErrInvalidCredential("no verified identity", nil)
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(rec)
	if err != nil {
		return nil, err
	}
	if !Readable(doc, actor) {
		return nil, perrors.NewErrPermissionDenied("no permission", nil, map[string]interface{}{"id": id, "actor": actor.ID})
	}

	return s.store.GetAttachment(ctx, id, docstore.AttachmentKey)
}

// Search queries the document full-text index over body and filename.
func (s *DocumentService) Search(ctx context.Context, query string) ([]*Document, error) {
	records, err := s.store.Search(ctx, docstore.IndexDocuments, query)
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(records))
	for i := range records {
		doc, err := decodeDocument(&records[i])
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
