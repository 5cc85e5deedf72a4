package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"go-auth-webhook/internal/model"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, value := range r.values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(value))
	}
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	query string
	args  []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.query = sql
	q.args = args
	return q.row
}

var joined = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func userValues() []any {
	return []any{
		int64(7), "alice", "pbkdf2_sha256$1$salt$key", true, false, true,
		"Al", "Smith", "alice@example.com", joined, (*time.Time)(nil),
	}
}

func TestFindByUsernameWithGroups(t *testing.T) {
	t.Parallel()

	values := append(userValues(), []int64{2, 5}, []string{"editor", "reviewer"})
	db := &fakeQuerier{row: fakeRow{values: values}}
	repo := NewUserRepository(db)

	user, err := repo.FindByUsername(context.Background(), "alice", true)
	require.NoError(t, err)
	require.Equal(t, int64(7), user.ID)
	require.Equal(t, "alice", user.Username)
	require.True(t, user.IsStaff)
	require.Equal(t, "Al", user.Nickname())
	require.Nil(t, user.LastLogin)
	require.Equal(t, []model.Group{{ID: 2, Name: "editor"}, {ID: 5, Name: "reviewer"}}, user.Groups)

	require.Contains(t, db.query, "LEFT JOIN auth_user_groups")
	require.Contains(t, db.query, "u.username = $1")
	require.Equal(t, []any{"alice"}, db.args)
}

func TestFindByIDWithoutGroups(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{row: fakeRow{values: userValues()}}
	repo := NewUserRepository(db)

	user, err := repo.FindByID(context.Background(), 7, false)
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.Empty(t, user.Groups)
	require.False(t, strings.Contains(db.query, "auth_group"))
	require.Equal(t, []any{int64(7)}, db.args)
}

func TestFindMapsNoRows(t *testing.T) {
	t.Parallel()

	repo := NewUserRepository(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})

	_, err := repo.FindByUsername(context.Background(), "ghost", true)
	require.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = repo.FindByID(context.Background(), 99, false)
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestFindWrapsDriverErrors(t *testing.T) {
	t.Parallel()

	driverErr := errors.New("connection reset")
	repo := NewUserRepository(&fakeQuerier{row: fakeRow{err: driverErr}})

	_, err := repo.FindByID(context.Background(), 1, true)
	require.ErrorIs(t, err, driverErr)
	require.NotErrorIs(t, err, model.ErrUserNotFound)
}

func TestCreate(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{row: fakeRow{values: []any{int64(12)}}}
	repo := NewUserRepository(db)
	repo.now = func() time.Time { return joined }

	user, err := repo.Create(context.Background(), model.NewUser{
		Username:     "bob",
		PasswordHash: "pbkdf2_sha256$100000$salt$key",
		Nickname:     "Bobby",
		Email:        "bob@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, int64(12), user.ID)
	require.True(t, user.IsActive)
	require.False(t, user.IsStaff)
	require.Equal(t, "Bobby", user.FirstName)
	require.Equal(t, joined, user.DateJoined)

	require.Contains(t, db.query, "INSERT INTO auth_user")
	require.Equal(t, []any{"pbkdf2_sha256$100000$salt$key", "bob", "Bobby", "bob@example.com", joined}, db.args)
}

func TestCreateDuplicateUsername(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "auth_user_username_key"`}
	repo := NewUserRepository(&fakeQuerier{row: fakeRow{err: fmt.Errorf("insert: %w", dup)}})

	_, err := repo.Create(context.Background(), model.NewUser{Username: "bob", PasswordHash: "x"})
	require.ErrorIs(t, err, model.ErrUsernameTaken)
}

func TestCreateWrapsOtherErrors(t *testing.T) {
	t.Parallel()

	repo := NewUserRepository(&fakeQuerier{row: fakeRow{err: &pgconn.PgError{Code: "23502"}}})

	_, err := repo.Create(context.Background(), model.NewUser{Username: "bob", PasswordHash: "x"})
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrUsernameTaken)
	require.Contains(t, err.Error(), "create user")
}
