package repositories_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/signup-verification/internal/core/domain/verification"
	"github.com/avatarctic/signup-verification/internal/infrastructure/db"
	"github.com/avatarctic/signup-verification/internal/infrastructure/repositories"
)

func newDatabaseWithMock(t *testing.T) (*db.Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &db.Database{DB: sqlx.NewDb(sqlDB, "postgres")}, mock
}

var stagedCols = []string{"id", "identity_key", "token", "attributes", "created_at", "expires_at"}

func TestStagedPostgres_Create(t *testing.T) {
	database, mock := newDatabaseWithMock(t)
	repo := repositories.NewStagedPostgresRepository(database, nil)
	rec := stagedRecord("a@b.com", "tok", time.Now())

	q := `(?s)^\s*INSERT\s+INTO\s+staged_users\s*\(id,\s*identity_key,\s*token,\s*attributes,\s*created_at,\s*expires_at\)`
	mock.ExpectExec(q).
		WithArgs(sqlmock.AnyArg(), "a@b.com", "tok", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStagedPostgres_CreateMapsUniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{"staged_users_identity_key_key", verification.ErrConflict},
		{"staged_users_token_key", verification.ErrTokenCollision},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			database, mock := newDatabaseWithMock(t)
			repo := repositories.NewStagedPostgresRepository(database, nil)
			mock.ExpectExec(`INSERT\s+INTO\s+staged_users`).
				WillReturnError(&pq.Error{Code: "23505", Constraint: tc.constraint})

			err := repo.Create(context.Background(), stagedRecord("a@b.com", "tok", time.Now()))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStagedPostgres_CreateDBError(t *testing.T) {
	database, mock := newDatabaseWithMock(t)
	repo := repositories.NewStagedPostgresRepository(database, nil)
	mock.ExpectExec(`INSERT\s+INTO\s+staged_users`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), stagedRecord("a@b.com", "tok", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NotErrorIs(t, err, verification.ErrConflict)
}

func TestStagedPostgres_GetByToken(t *testing.T) {
	database, mock := newDatabaseWithMock(t)
	repo := repositories.NewStagedPostgresRepository(database, nil)
	id := uuid.New()
	created := time.Now().UTC().Truncate(time.Second)

	rows := sqlmock.NewRows(stagedCols).
		AddRow(id.String(), "a@b.com", "tok", []byte(`{"email":"a@b.com","profile":{"name":"Ann"}}`), created, created.Add(time.Hour))
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*identity_key,\s*token,\s*attributes,\s*created_at,\s*expires_at\s+FROM\s+staged_users\s+WHERE\s+token\s*=\s*\$1\s*$`).
		WithArgs("tok").
		WillReturnRows(rows)

	got, err := repo.GetByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "a@b.com", got.IdentityKey)
	name, ok := got.Attributes.LookupString("profile.name")
	require.True(t, ok)
	assert.Equal(t, "Ann", name)
}

func TestStagedPostgres_GetByIdentityNotFound(t *testing.T) {
	database, mock := newDatabaseWithMock(t)
	repo := repositories.NewStagedPostgresRepository(database, nil)
	mock.ExpectQuery(`FROM\s+staged_users\s+WHERE\s+identity_key\s*=\s*\$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIdentity(context.Background(), "ghost")
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestStagedPostgres_UpdateToken(t *testing.T) {
	database, mock := newDatabaseWithMock(t)
	repo := repositories.NewStagedPostgresRepository(database, nil)
	created := time.Now().UTC().Truncate(time.Second)
	q := `(?s)^\s*UPDATE\s+staged_users\s+SET\s+token\s*=\s*\$3\s+WHERE\s+identity_key\s*=\s*\$1\s+AND\s+token\s*=\s*\$2\s+RETURNING`

	mock.ExpectQuery(q).
		WithArgs("a@b.com", "old", "new").
		WillReturnRows(sqlmock.NewRows(stagedCols).AddRow(uuid.NewString(), "a@b.com", "new", []byte(`{}`), created, created.Add(time.Hour)))
	got, err := repo.UpdateToken(context.Background(), "a@b.com", "old", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Token)
	assert.True(t, created.Equal(got.CreatedAt))

	mock.ExpectQuery(q).WithArgs("a@b.com", "old", "new").WillReturnError(sql.ErrNoRows)
	_, err = repo.UpdateToken(context.Background(), "a@b.com", "old", "new")
	assert.ErrorIs(t, err, verification.ErrNotFound)

	mock.ExpectQuery(q).WithArgs("a@b.com", "old", "new").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "staged_users_token_key"})
	_, err = repo.UpdateToken(context.Background(), "a@b.com", "old", "new")
	assert.ErrorIs(t, err, verification.ErrTokenCollision)
}

func TestStagedPostgres_DeleteExpired(t *testing.T) {
	database, mock := newDatabaseWithMock(t)
	repo := repositories.NewStagedPostgresRepository(database, nil)
	now := time.Now()
	mock.ExpectExec(`^DELETE\s+FROM\s+staged_users\s+WHERE\s+expires_at\s*<\s*\$1$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestUserRepository_CreateConflict(t *testing.T) {
	database, mock := newDatabaseWithMock(t)
	repo := repositories.NewUserRepository(database, nil)
	u := &verification.PermanentUser{ID: uuid.New(), IdentityKey: "a@b.com", Attributes: verification.Attributes{}, CreatedAt: time.Now()}

	mock.ExpectExec(`INSERT\s+INTO\s+users\s*\(id,\s*identity_key,\s*attributes,\s*created_at\)`).
		WithArgs(sqlmock.AnyArg(), "a@b.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), u))

	mock.ExpectExec(`INSERT\s+INTO\s+users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_identity_key_key"})
	assert.ErrorIs(t, repo.Create(context.Background(), u), verification.ErrConflict)
}

func TestUserRepository_GetAndExists(t *testing.T) {
	database, mock := newDatabaseWithMock(t)
	repo := repositories.NewUserRepository(database, nil)
	id := uuid.New()

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*identity_key,\s*attributes,\s*created_at\s+FROM\s+users\s+WHERE\s+identity_key\s*=\s*\$1`).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_key", "attributes", "created_at"}).
			AddRow(id.String(), "a@b.com", []byte(`{"email":"a@b.com"}`), time.Now()))
	got, err := repo.GetByIdentity(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	exists, err := repo.ExistsByIdentity(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(`FROM\s+users`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByIdentity(context.Background(), "ghost")
	assert.ErrorIs(t, err, verification.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
