package admin

import (
	"context"
	"fmt"

	"wishdoc/internal/docstore"
	"wishdoc/internal/perrors"
	"wishdoc/internal/services/user"
)

// AdminService holds the operations only an admin may run.
type AdminService struct {
	store docstore.Store
}

func NewAdminService(store docstore.Store) *AdminService {
	return &AdminService{store: store}
}

// Reset bulk-deletes every non-internal record, users and documents
// alike. Store-internal records (design documents) survive. Returns the
// number of deleted records.
func (s *AdminService) Reset(ctx context.Context, actor user.Resolved) (int, error) {
	if actor.ID == "" {
		return 0, perrors.NewErrInvalidCredential("no verified identity", nil)
	}
	if actor.Role != user.RoleAdmin {
		return 0, perrors.NewErrPermissionDenied("operation not allowed", nil, map[string]interface{}{"actor": actor.ID})
	}

	records, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	entries := make([]docstore.Entry, 0, len(records))
	for _, rec := range records {
		if docstore.IsInternal(rec.ID) {
			continue
		}
		entries = append(entries, docstore.Entry{ID: rec.ID, Rev: rec.Rev})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := s.store.BulkDelete(ctx, entries); err != nil {
		return 0, perrors.NewErrPersistence(fmt.Sprintf("failed to delete %d records", len(entries)), err)
	}
	return len(entries), nil
}
