package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/udisondev/wildstar-worldd/internal/ports"
)

var testStore *Store

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("starting postgres container: %v", err)
	}
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("getting container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("getting container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	if err := RunMigrations(ctx, dsn); err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	testStore, err = New(ctx, dsn)
	if err != nil {
		log.Fatalf("connecting test store: %v", err)
	}
	defer testStore.Close()

	os.Exit(m.Run())
}

func seedAccountAndCharacter(t *testing.T, name string) (accountID uint32, characterID uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, testStore.pool.QueryRow(ctx,
		`INSERT INTO accounts (email) VALUES ($1) RETURNING account_id`,
		name+"@example.test").Scan(&accountID))
	require.NoError(t, testStore.pool.QueryRow(ctx,
		`INSERT INTO characters (account_id, name) VALUES ($1, $2) RETURNING character_id`,
		accountID, name).Scan(&characterID))
	return accountID, characterID
}

func TestSaveAndLoadCharacterRoundTrip(t *testing.T) {
	_, charID := seedAccountAndCharacter(t, "loadroundtrip")
	ctx := context.Background()

	snap, err := testStore.LoadCharacter(ctx, charID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Level)

	snap.Level = 5
	snap.Experience = 1200
	snap.PositionX = 10
	snap.ZoneMapID = 2
	require.NoError(t, testStore.SaveCharacter(ctx, snap))

	reloaded, err := testStore.LoadCharacter(ctx, charID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, reloaded.Level)
	assert.EqualValues(t, 1200, reloaded.Experience)
	assert.EqualValues(t, 2, reloaded.ZoneMapID)
}

func TestLoadCharacterNotFound(t *testing.T) {
	_, err := testStore.LoadCharacter(context.Background(), 9_999_999)
	assert.Error(t, err)
}

func TestListCharactersByAccount(t *testing.T) {
	accID, _ := seedAccountAndCharacter(t, "listone")
	ctx := context.Background()
	_, err := testStore.pool.Exec(ctx,
		`INSERT INTO characters (account_id, name) VALUES ($1, $2)`, accID, "listtwo")
	require.NoError(t, err)

	list, err := testStore.ListCharacters(ctx, accID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRecordSessionUpsert(t *testing.T) {
	accID, _ := seedAccountAndCharacter(t, "session")
	ctx := context.Background()
	key := [16]byte{1, 2, 3}

	require.NoError(t, testStore.RecordSession(ctx, accID, key, time.Now().Add(time.Hour)))
	require.NoError(t, testStore.RecordSession(ctx, accID, key, time.Now().Add(2*time.Hour)))

	var count int
	require.NoError(t, testStore.pool.QueryRow(ctx,
		`SELECT count(*) FROM sessions WHERE account_id = $1`, accID).Scan(&count))
	assert.Equal(t, 1, count)
}

var _ ports.Persistence = (*Store)(nil)
