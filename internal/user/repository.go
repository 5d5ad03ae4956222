// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelamos/monostack/internal/core"
)

// Repository persists accounts. Reads and writes are scoped to live rows;
// deletion is a soft delete, and Restore undoes it. Only List with
// IncludeDeleted and GetByIDUnscoped see soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIDUnscoped(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	List(
		ctx context.Context,
		params ListUsersParams,
		includeDeleted bool,
	) ([]User, int, error)
}

type repository struct {
	db  core.DBTX
	obs core.QueryObserver
}

func NewRepository(db core.DBTX, obs core.QueryObserver) Repository {
	if obs == nil {
		obs = core.NopQueryObserver{}
	}
	return &repository{db: db, obs: obs}
}

const userColumns = `id, email, password_hash, first_name, last_name, role,
	is_active, created_at, updated_at, deleted_at`

func (r *repository) Create(ctx context.Context, user *User) (err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "user", "create", start, err) }()

	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, role
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at, is_active`

	err = r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt, &user.IsActive)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (user *User, err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "user", "get_by_id", start, err) }()

	return r.getWhere(ctx, "id = $1 AND deleted_at IS NULL", id)
}

func (r *repository) GetByIDUnscoped(
	ctx context.Context,
	id string,
) (user *User, err error) {
	start := time.Now()
	defer func() {
		core.ObserveQuery(r.obs, "user", "get_by_id_unscoped", start, err)
	}()

	return r.getWhere(ctx, "id = $1", id)
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (user *User, err error) {
	start := time.Now()
	defer func() {
		core.ObserveQuery(r.obs, "user", "get_by_email", start, err)
	}()

	return r.getWhere(ctx, "email = $1 AND deleted_at IS NULL", email)
}

func (r *repository) getWhere(
	ctx context.Context,
	cond string,
	arg any,
) (*User, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM users WHERE %s",
		userColumns, cond,
	)

	var user User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) (err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "user", "update", start, err) }()

	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, role = $4, is_active = $5,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err = r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Role,
		user.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) (err error) {
	start := time.Now()
	defer func() {
		core.ObserveQuery(r.obs, "user", "update_password", start, err)
	}()

	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execExpectingRow(ctx, "update password", query, id, passwordHash)
}

func (r *repository) SoftDelete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() {
		core.ObserveQuery(r.obs, "user", "soft_delete", start, err)
	}()

	query := `
		UPDATE users
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execExpectingRow(ctx, "delete user", query, id)
}

func (r *repository) Restore(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "user", "restore", start, err) }()

	query := `
		UPDATE users
		SET deleted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL`

	return r.execExpectingRow(ctx, "restore user", query, id)
}

func (r *repository) execExpectingRow(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
	includeDeleted bool,
) (users []User, total int, err error) {
	start := time.Now()
	defer func() { core.ObserveQuery(r.obs, "user", "list", start, err) }()

	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	if !includeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	} else {
		conditions = append(conditions, "TRUE")
	}

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	if err = r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	// Sort and Order come from Normalize's allowlist, never raw input.
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause,
		params.Sort, strings.ToUpper(params.Order),
		argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	if err = r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
