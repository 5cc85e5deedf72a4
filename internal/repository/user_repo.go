package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"go-auth-webhook/internal/model"
)

const uniqueViolation = "23505"

// Querier is the subset of *pgxpool.Pool the repository uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository reads and writes Django's auth_user, auth_group and
// auth_user_groups tables.
type UserRepository struct {
	db  Querier
	now func() time.Time
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const userColumns = `u.id, u.username, u.password, u.is_active, u.is_superuser, u.is_staff,
	u.first_name, u.last_name, u.email, u.date_joined, u.last_login`

const selectUser = `SELECT ` + userColumns + `
	FROM auth_user u
	WHERE %s`

const selectUserWithGroups = `SELECT ` + userColumns + `,
	COALESCE(array_agg(g.id ORDER BY g.id) FILTER (WHERE g.id IS NOT NULL), '{}') AS group_ids,
	COALESCE(array_agg(g.name ORDER BY g.id) FILTER (WHERE g.id IS NOT NULL), '{}') AS group_names
	FROM auth_user u
	LEFT JOIN auth_user_groups ug ON ug.user_id = u.id
	LEFT JOIN auth_group g ON g.id = ug.group_id
	WHERE %s
	GROUP BY u.id`

func (r *UserRepository) FindByUsername(ctx context.Context, username string, withGroups bool) (model.User, error) {
	user, err := r.findOne(ctx, "u.username = $1", username, withGroups)
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64, withGroups bool) (model.User, error) {
	user, err := r.findOne(ctx, "u.id = $1", id, withGroups)
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any, withGroups bool) (model.User, error) {
	var (
		u          model.User
		groupIDs   []int64
		groupNames []string
	)

	dest := []any{
		&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &u.IsStaff,
		&u.FirstName, &u.LastName, &u.Email, &u.DateJoined, &u.LastLogin,
	}

	query := fmt.Sprintf(selectUser, where)
	if withGroups {
		query = fmt.Sprintf(selectUserWithGroups, where)
		dest = append(dest, &groupIDs, &groupNames)
	}

	err := r.db.QueryRow(ctx, query, arg).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}

	if len(groupIDs) != len(groupNames) {
		return model.User{}, fmt.Errorf("group columns disagree: %d ids, %d names", len(groupIDs), len(groupNames))
	}
	for i := range groupIDs {
		u.Groups = append(u.Groups, model.Group{ID: groupIDs[i], Name: groupNames[i]})
	}

	return u, nil
}

// Create inserts an active, non-staff account. The nickname is stored in
// first_name.
func (r *UserRepository) Create(ctx context.Context, nu model.NewUser) (model.User, error) {
	u := model.User{
		Username:     nu.Username,
		PasswordHash: nu.PasswordHash,
		IsActive:     true,
		FirstName:    nu.Nickname,
		Email:        nu.Email,
		DateJoined:   r.now(),
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO auth_user (password, is_superuser, username, first_name, last_name, email, is_staff, is_active, date_joined)
		 VALUES ($1, false, $2, $3, '', $4, false, true, $5)
		 RETURNING id`,
		u.PasswordHash, u.Username, u.FirstName, u.Email, u.DateJoined).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.User{}, model.ErrUsernameTaken
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}
