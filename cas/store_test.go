package cas

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
	astest "github.com/axiomata/atomstore/internal/testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(astest.CreateTestDB(t), zap.NewNop().Sugar())
}

func textFactory(content []byte) AtomFactory {
	return func() (*atom.Atom, error) {
		return &atom.Atom{
			Modality: atom.ModalityText,
			Subtype:  "token",
			Value:    content,
		}, nil
	}
}

func TestLookupOrInsertDedup(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	content := []byte("hello atoms")
	digest := atom.ComputeDigest(content)

	id1, dup1, err := store.LookupOrInsert(ctx, digest, textFactory(content))
	require.NoError(t, err)
	assert.False(t, dup1)

	id2, dup2, err := store.LookupOrInsert(ctx, digest, textFactory(content))
	require.NoError(t, err)
	assert.True(t, dup2)
	assert.Equal(t, id1, id2)

	a, err := store.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.ReferenceCount)
	assert.Equal(t, digest, a.ContentHash)
	assert.Equal(t, atom.StateActive, a.State())
}

func TestLookupOrInsertDistinctContent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	a := []byte("content a")
	b := []byte("content b")

	idA, _, err := store.LookupOrInsert(ctx, atom.ComputeDigest(a), textFactory(a))
	require.NoError(t, err)
	idB, _, err := store.LookupOrInsert(ctx, atom.ComputeDigest(b), textFactory(b))
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)
}

func TestConcurrentIngestSameContent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	content := []byte("racy content")
	digest := atom.ComputeDigest(content)

	const n = 16
	ids := make([]atom.ID, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], _, errs[i] = store.LookupOrInsert(ctx, digest, textFactory(content))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	a, err := store.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(n), a.ReferenceCount, "N concurrent ingests must yield one atom with reference_count == N")
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	content := []byte("short-lived")
	id, _, err := store.LookupOrInsert(ctx, atom.ComputeDigest(content), textFactory(content))
	require.NoError(t, err)

	remaining, err := store.Release(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	a, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, atom.StatePendingDeletion, a.State())
	require.NotNil(t, a.GCEligibleAt)

	// Releasing past zero is a caller bug.
	_, err = store.Release(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestReleaseRescue(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	content := []byte("rescued")
	digest := atom.ComputeDigest(content)
	id, _, err := store.LookupOrInsert(ctx, digest, textFactory(content))
	require.NoError(t, err)

	_, err = store.Release(ctx, id)
	require.NoError(t, err)

	// Re-ingestion during the grace window revives the atom.
	id2, dup, err := store.LookupOrInsert(ctx, digest, textFactory(content))
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, id, id2)

	a, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, atom.StateActive, a.State())
	assert.Nil(t, a.GCEligibleAt)
	assert.Equal(t, int64(1), a.ReferenceCount)
}

func TestReleaseNotFound(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	_, err := store.Release(ctx, 9999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetByHash(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	content := []byte("addressable")
	digest := atom.ComputeDigest(content)
	id, _, err := store.LookupOrInsert(ctx, digest, textFactory(content))
	require.NoError(t, err)

	a, err := store.GetByHash(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)

	gotID, err := store.IDByHash(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	_, err = store.GetByHash(ctx, atom.ComputeDigest([]byte("never stored")))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestLookupOrInsertStorageError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("UPDATE atoms").WillReturnError(errors.New("disk I/O error"))

	store := NewStore(mockDB, zap.NewNop().Sugar())
	_, _, err = store.LookupOrInsert(context.Background(), atom.ComputeDigest([]byte("x")), textFactory([]byte("x")))

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorage), "persistence failures must surface as storage errors")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFactoryErrorPropagates(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	boom := errors.New("factory exploded")
	_, _, err := store.LookupOrInsert(ctx, atom.ComputeDigest([]byte("new content")), func() (*atom.Atom, error) {
		return nil, boom
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestRetryGivesUpOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.Mark(errors.New("bad input"), errors.ErrInvalidArgument)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-transient errors must not be retried")
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
