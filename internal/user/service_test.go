// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/monostack/internal/core"
)

type fakeRepo struct {
	mu   sync.Mutex
	byID map[string]*User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[string]*User)}
}

func (f *fakeRepo) add(u User) *User {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
		u.UpdatedAt = u.CreatedAt
	}
	f.byID[u.ID] = &u
	return &u
}

func (f *fakeRepo) Create(_ context.Context, user *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.byID {
		if existing.Email == user.Email && !existing.IsDeleted() {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}

	user.IsActive = true
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok || u.IsDeleted() {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetByIDUnscoped(_ context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if u.Email == email && !u.IsDeleted() {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (f *fakeRepo) Update(_ context.Context, user *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.byID[user.ID]
	if !ok || existing.IsDeleted() {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	user.UpdatedAt = time.Now()
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok || u.IsDeleted() {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok || u.IsDeleted() {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (f *fakeRepo) Restore(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok || !u.IsDeleted() {
		return fmt.Errorf("restore user: %w", core.ErrNotFound)
	}
	u.DeletedAt = nil
	return nil
}

func (f *fakeRepo) List(
	_ context.Context,
	params ListUsersParams,
	includeDeleted bool,
) ([]User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []User
	for _, u := range f.byID {
		if u.IsDeleted() && !includeDeleted {
			continue
		}
		if params.Role != "" && u.Role != params.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	return NewService(repo), repo
}

func TestCreate_LowercasesEmail(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()

	info, err := svc.Create(context.Background(), "Ada@Example.COM", "hash", "Ada", "L")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", info.Email)
	assert.Equal(t, RoleUser, info.Role)

	stored, err := repo.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, info.ID, stored.ID)
}

func TestGetByEmail_CaseInsensitiveLookup(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()
	repo.add(User{ID: "u1", Email: "ada@example.com", Role: RoleUser, IsActive: true})

	info, err := svc.GetByEmail(context.Background(), strings.ToUpper("ada@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "u1", info.ID)
}

func TestUpdateUser_PatchesOnlyProvidedFields(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()
	repo.add(User{
		ID: "u1", Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace",
		Role: RoleUser, IsActive: true,
	})

	first := "Grace"
	updated, err := svc.UpdateUser(context.Background(), "u1", UpdateUserRequest{
		FirstName: &first,
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated.FirstName)
	assert.Equal(t, "Lovelace", updated.LastName)
	assert.True(t, updated.IsActive)
}

func TestUpdateMe_IgnoresIsActive(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()
	repo.add(User{ID: "u1", Email: "a@b.com", Role: RoleUser, IsActive: true})

	inactive := false
	first := "Grace"
	updated, err := svc.UpdateMe(context.Background(), "u1", UpdateUserRequest{
		FirstName: &first,
		IsActive:  &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated.FirstName)
	assert.True(t, updated.IsActive, "self-service must not deactivate the account")
}

func TestUpdateMe_EmptyUserID(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()

	_, err := svc.UpdateMe(context.Background(), "", UpdateUserRequest{})
	require.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestUpdateUserRole(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()
	repo.add(User{ID: "u1", Email: "a@b.com", Role: RoleUser, IsActive: true})

	updated, err := svc.UpdateUserRole(context.Background(), "u1", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, updated.Role)

	_, err = svc.UpdateUserRole(context.Background(), "u1", "superuser")
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestDeleteAndRestoreUser(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()
	repo.add(User{ID: "u1", Email: "a@b.com", Role: RoleUser, IsActive: true})

	require.NoError(t, svc.DeleteUser(context.Background(), "u1"))

	_, err := svc.GetUser(context.Background(), "u1")
	require.ErrorIs(t, err, core.ErrNotFound)

	// The unscoped lookup still sees the deleted row.
	hidden, err := svc.GetUserUnscoped(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, hidden.DeletedAt)

	restored, err := svc.RestoreUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	// Restoring a live account reports not found.
	_, err = svc.RestoreUser(context.Background(), "u1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestCanDeleteUser(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()
	repo.add(User{ID: "admin1", Email: "admin@b.com", Role: RoleAdmin, IsActive: true})
	repo.add(User{ID: "admin2", Email: "admin2@b.com", Role: RoleAdmin, IsActive: true})
	repo.add(User{ID: "u1", Email: "u1@b.com", Role: RoleUser, IsActive: true})
	repo.add(User{ID: "u2", Email: "u2@b.com", Role: RoleUser, IsActive: true})

	ctx := context.Background()

	assert.NoError(t, svc.CanDeleteUser(ctx, "u1", "u1"), "self-deletion allowed")
	assert.NoError(t, svc.CanDeleteUser(ctx, "admin1", "u1"), "admin deletes user")

	err := svc.CanDeleteUser(ctx, "u1", "u2")
	require.ErrorIs(t, err, core.ErrForbidden)

	err = svc.CanDeleteUser(ctx, "admin1", "admin2")
	require.ErrorIs(t, err, core.ErrForbidden)
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService()
	repo.add(User{ID: "u1", Email: "a@b.com", Role: RoleUser, IsActive: true})

	me, err := svc.GetMe(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", me.Email)

	_, err = svc.GetMe(context.Background(), "")
	require.ErrorIs(t, err, core.ErrUnauthorized)
}
