package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_market/internal/user/domain"
	pg "github.com/fjod/go_market/internal/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := pg.Connect(&pg.Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	})
	require.NoError(t, err)

	repo := NewRepository(db)
	require.NoError(t, repo.RunMigrations("./migrations"))

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newSupplier(t *testing.T, email string) *domain.User {
	t.Helper()
	user, err := domain.NewUser(uuid.New().String(), "Ana", email, "secret123",
		domain.TypeSupplier, "+34600000000", "Valencia", "Ana's Farm", "Camino Real 1")
	require.NoError(t, err)
	return user
}

func TestGetUser_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetUser(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateUser_RoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newSupplier(t, "ana@farm.example")
	require.NoError(t, repo.CreateUser(ctx, user))

	got, err := repo.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@farm.example", got.Email)
	assert.Equal(t, domain.TypeSupplier, got.UserType)
	assert.Equal(t, "Ana's Farm", got.BusinessName)
	assert.True(t, got.CheckPassword("secret123"))
	assert.False(t, got.CheckPassword("wrong"))
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, newSupplier(t, "ana@farm.example")))

	err := repo.CreateUser(ctx, newSupplier(t, "ana@farm.example"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetUserByEmail(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newSupplier(t, "ana@farm.example")
	require.NoError(t, repo.CreateUser(ctx, user))

	got, err := repo.GetUserByEmail(ctx, "ana@farm.example")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetUserByEmail(ctx, "nobody@farm.example")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
