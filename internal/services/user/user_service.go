package user

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"time"

	json "github.com/bytedance/sonic"

	"wishdoc/internal/docstore"
	"wishdoc/internal/perrors"
)

// UserService manages account records in the document store. Accounts
// share the keyspace with documents, distinguished by record type.
type UserService struct {
	store docstore.Store
}

func NewUserService(store docstore.Store) *UserService {
	return &UserService{store: store}
}

// HashSecret returns the sha-512 hex digest of data. The same digest
// covers passwords and attachment content hashes.
func HashSecret(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}

func decode(rec *docstore.Record) (*User, error) {
	var u User
	if err := json.Unmarshal(rec.Doc, &u); err != nil {
		return nil, perrors.NewErrMalformedDocument("failed to decode user record", err, map[string]interface{}{"id": rec.ID})
	}
	u.ID = rec.ID
	return &u, nil
}

func (s *UserService) insert(ctx context.Context, u *User) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return perrors.NewErrInternalServerError("failed to encode user record", err)
	}

	_, err = s.store.Insert(ctx, &docstore.Record{
		ID:   u.ID,
		Type: docstore.TypeUser,
		Doc:  doc,
		TS:   u.Timestamp,
	})
	return err
}

// BootstrapAdmin creates the single admin account. It fails once any
// admin exists, whatever its id.
func (s *UserService) BootstrapAdmin(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if req.Password == "" {
		return nil, perrors.NewErrInvalidRequest("no password provided", errors.New("password is required"))
	}

	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if docstore.IsInternal(rec.ID) || rec.Type != docstore.TypeUser {
			continue
		}
		u, err := decode(&rec)
		if err != nil {
			continue
		}
		if u.Role == RoleAdmin {
			return nil, perrors.NewErrConflict("admin user already exists", nil, map[string]interface{}{"id": u.ID})
		}
	}

	id := req.ID
	if id == "" {
		id = "admin"
	}
	name := req.Name
	if name == "" {
		name = id
	}
	email := req.Email
	if email == "" {
		email = "admin@admin"
	}

	admin := &User{
		ID:        id,
		Role:      RoleAdmin,
		Password:  HashSecret([]byte(req.Password)),
		Name:      name,
		Email:     email,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.insert(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// Create adds a member account. Only an admin may create accounts.
func (s *UserService) Create(ctx context.Context, actor Resolved, req *CreateUserRequest) (*User, error) {
	if actor.ID == "" {
		return nil, perrors.NewErrInvalidCredential("no verified identity", nil)
	}
	if actor.Role != RoleAdmin {
		return nil, perrors.NewErrPermissionDenied("only admin may create users", nil, map[string]interface{}{"actor": actor.ID})
	}
	if req.ID == "" || req.Password == "" || req.Name == "" || req.Email == "" {
		return nil, perrors.NewErrInvalidRequest("user_id, password, name and email are required", nil)
	}

	u := &User{
		ID:         req.ID,
		ScreenName: req.ScreenName,
		Role:       RoleMember,
		Password:   HashSecret([]byte(req.Password)),
		Name:       req.Name,
		Email:      req.Email,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks id/password against the stored digest.
func (s *UserService) Authenticate(ctx context.Context, id, password string) (*User, error) {
	if id == "" || password == "" {
		return nil, perrors.NewErrInvalidCredential("not valid user_id or password", nil)
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if perrors.HasCode(err, perrors.ErrCodeNotFound) {
			return nil, perrors.NewErrInvalidCredential("not valid user_id or password", nil)
		}
		return nil, err
	}
	if rec.Type != docstore.TypeUser {
		return nil, perrors.NewErrInvalidCredential("not valid user_id or password", nil)
	}

	u, err := decode(rec)
	if err != nil {
		return nil, perrors.NewErrInvalidCredential("not valid user_id or password", nil)
	}
	if u.Password == "" || u.Password != HashSecret([]byte(password)) {
		return nil, perrors.NewErrInvalidCredential("not valid user_id or password", nil)
	}
	return u, nil
}

// Get returns the account record. Members may only read themselves;
// admins may read anyone. The password digest is never returned.
func (s *UserService) Get(ctx context.Context, actor Resolved, id string) (*User, error) {
	if actor.ID == "" {
		return nil, perrors.NewErrInvalidCredential("no verified identity", nil)
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Type != docstore.TypeUser {
		return nil, perrors.NewErrNotFound("user not found", nil, map[string]interface{}{"id": id})
	}

	u, err := decode(rec)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleAdmin && actor.ID != u.ID {
		return nil, perrors.NewErrPermissionDenied("no permission", nil, map[string]interface{}{"actor": actor.ID, "id": id})
	}
	return u.Snapshot(), nil
}

// Delete removes a member account. Only an admin may delete, and an
// admin account can never be deleted.
func (s *UserService) Delete(ctx context.Context, actor Resolved, id string) error {
	if actor.ID == "" {
		return perrors.NewErrInvalidCredential("no verified identity", nil)
	}
	if actor.Role != RoleAdmin {
		return perrors.NewErrPermissionDenied("only admin may delete users", nil, map[string]interface{}{"actor": actor.ID})
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Type != docstore.TypeUser {
		return perrors.NewErrNotFound("user not found", nil, map[string]interface{}{"id": id})
	}

	u, err := decode(rec)
	if err != nil {
		return err
	}
	if u.Role == RoleAdmin {
		return perrors.NewErrPermissionDenied("can not delete admin user", nil, map[string]interface{}{"id": id})
	}

	return s.store.Destroy(ctx, rec.ID, rec.Rev)
}

// Search queries the user full-text index by name and email. Digests
// are stripped from the results.
func (s *UserService) Search(ctx context.Context, query string) ([]*User, error) {
	records, err := s.store.Search(ctx, docstore.IndexUsers, query)
	if err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(records))
	for _, rec := range records {
		u, err := decode(&rec)
		if err != nil {
			continue
		}
		users = append(users, u.Snapshot())
	}
	return users, nil
}
