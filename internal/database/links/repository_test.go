package links

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/hardcover-sync/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := "./test_links_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Link{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func TestRepository_PutAndGet(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	link := &entities.Link{BookID: 1, HardcoverBookID: 100, HardcoverSlug: "dune"}
	require.NoError(t, repo.Put(link))

	got, err := repo.Get(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 100, got.HardcoverBookID)
	assert.Equal(t, "dune", got.HardcoverSlug)
}

func TestRepository_Get_Unlinked(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := repo.Get(42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_Put_LastWriteWins(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	first := &entities.Link{BookID: 1, HardcoverBookID: 100, HardcoverSlug: "dune"}
	first.SetSnapshot(map[string]string{"status": "Read"})
	require.NoError(t, repo.Put(first))

	// Relinking to a different book replaces the row and drops the snapshot.
	second := &entities.Link{BookID: 1, HardcoverBookID: 200, HardcoverSlug: "dune-messiah"}
	require.NoError(t, repo.Put(second))

	got, err := repo.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 200, got.HardcoverBookID)
	assert.Empty(t, got.SnapshotMap())

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepository_Put_SameTargetKeepsSnapshot(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	first := &entities.Link{BookID: 1, HardcoverBookID: 100, HardcoverSlug: "dune"}
	first.SetSnapshot(map[string]string{"status": "Read"})
	require.NoError(t, repo.Put(first))

	require.NoError(t, repo.Put(&entities.Link{BookID: 1, HardcoverBookID: 100, HardcoverSlug: "dune", EditionID: 7}))

	got, err := repo.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 7, got.EditionID)
	assert.Equal(t, map[string]string{"status": "Read"}, got.SnapshotMap())
}

func TestRepository_UpdateSnapshot(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Put(&entities.Link{BookID: 1, HardcoverBookID: 100}))

	values := map[string]string{"status": "Read", "rating": "8"}
	require.NoError(t, repo.UpdateSnapshot(1, values))

	got, err := repo.Get(1)
	require.NoError(t, err)
	assert.Equal(t, values, got.SnapshotMap())
}

func TestRepository_UpdateSnapshot_Unlinked(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.UpdateSnapshot(42, map[string]string{"status": "Read"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_Remove(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Put(&entities.Link{BookID: 1, HardcoverBookID: 100}))
	require.NoError(t, repo.Remove(1))

	got, err := repo.Get(1)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Removing an absent link is a no-op.
	require.NoError(t, repo.Remove(1))
}

func TestRepository_GetByHardcoverBookID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Put(&entities.Link{BookID: 1, HardcoverBookID: 100}))
	require.NoError(t, repo.Put(&entities.Link{BookID: 2, HardcoverBookID: 100}))
	require.NoError(t, repo.Put(&entities.Link{BookID: 3, HardcoverBookID: 200}))

	matches, err := repo.GetByHardcoverBookID(100)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, uint(1), matches[0].BookID)
	assert.Equal(t, uint(2), matches[1].BookID)
}

func TestLink_SnapshotMap_Malformed(t *testing.T) {
	link := &entities.Link{Snapshot: "{not json"}
	assert.Empty(t, link.SnapshotMap())
}
