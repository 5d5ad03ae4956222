// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/monostack/internal/core"
)

func newRepoWithMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "sqlmock"), nil), mock
}

func userRows(t *testing.T, users ...User) *sqlmock.Rows {
	t.Helper()

	rows := sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name",
		"role", "is_active", "created_at", "updated_at", "deleted_at",
	})
	for _, u := range users {
		rows.AddRow(
			u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
			u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt, u.DeletedAt,
		)
	}
	return rows
}

func TestRepositoryCreate_Duplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &User{
		ID:           "u1",
		Email:        "a@b.com",
		PasswordHash: "hash",
		Role:         RoleUser,
	})
	require.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestRepositoryGetByID_ScopesOutDeleted(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("u1").
		WillReturnRows(userRows(t))

	_, err := repo.GetByID(context.Background(), "u1")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByIDUnscoped_SeesDeleted(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	deleted := now.Add(-time.Hour)
	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE id = \$1$`).
		WithArgs("u1").
		WillReturnRows(userRows(t, User{
			ID: "u1", Email: "a@b.com", PasswordHash: "hash",
			Role: RoleUser, CreatedAt: now, UpdatedAt: now,
			DeletedAt: &deleted,
		}))

	u, err := repo.GetByIDUnscoped(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, u.IsDeleted())
}

func TestRepositorySoftDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE users\s+SET deleted_at = NOW\(\).*WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "u1"))

	// Already deleted row affects nothing and reports not found.
	mock.ExpectExec(`(?s)UPDATE users\s+SET deleted_at = NOW\(\)`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "u1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepositoryList_SearchAndPagination(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	pattern := "%ada%"

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE deleted_at IS NULL AND \(email ILIKE \$1`).
		WithArgs(pattern).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`(?s)SELECT .* FROM users\s+WHERE deleted_at IS NULL AND \(email ILIKE \$1.*ORDER BY created_at DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs(pattern, 20, 0).
		WillReturnRows(userRows(t, User{
			ID: "u1", Email: "ada@b.com", PasswordHash: "hash",
			Role: RoleUser, IsActive: true, CreatedAt: now, UpdatedAt: now,
		}))

	users, total, err := repo.List(
		context.Background(),
		ListUsersParams{Search: "ada"},
		false,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "ada@b.com", users[0].Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryList_EscapesLikeWildcards(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WithArgs(`%100\%\_sure%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectQuery(`(?s)SELECT .* FROM users`).
		WithArgs(`%100\%\_sure%`, 20, 0).
		WillReturnRows(userRows(t))

	_, total, err := repo.List(
		context.Background(),
		ListUsersParams{Search: "100%_sure"},
		false,
	)
	require.NoError(t, err)
	assert.Zero(t, total)
}
