package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/config"
	"github.com/axiomata/atomstore/errors"
)

func gcTestStore(t *testing.T, graceSeconds int) *Store {
	return newTestStore(t, func(cfg *config.Config) {
		cfg.GC.GracePeriodSeconds = graceSeconds
		cfg.GC.SweepRatePerSecond = 0 // unpaced in tests
	})
}

// ingestChain builds a derivation chain and returns the atom ids, first
// element is the root.
func ingestChain(t *testing.T, s *Store, contents ...string) []atom.ID {
	t.Helper()
	ctx := context.Background()
	ids := make([]atom.ID, len(contents))
	for i, content := range contents {
		req := IngestRequest{Content: []byte(content), Modality: atom.ModalityText}
		if i > 0 {
			req.ParentIDs = []atom.ID{ids[i-1]}
		}
		id, err := s.Ingest(ctx, req)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestSweepRespectsGracePeriod(t *testing.T) {
	s := gcTestStore(t, 3600)
	ctx := context.Background()

	ids := ingestChain(t, s, "root", "middle", "leaf")
	_, err := s.Release(ctx, ids[2])
	require.NoError(t, err)

	res, err := s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
	assert.Zero(t, res.Deleted)

	// Still present and recoverable.
	a, err := s.Get(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, atom.StatePendingDeletion, a.State())
}

func TestSweepDeletesAfterGrace(t *testing.T) {
	s := gcTestStore(t, 0)
	ctx := context.Background()

	ids := ingestChain(t, s, "root", "leaf")
	_, err := s.Release(ctx, ids[1])
	require.NoError(t, err)

	res, err := s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	_, err = s.Get(ctx, ids[1])
	assert.True(t, errors.IsNotFound(err))

	// The cascade removed the leaf's edge to the root.
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ProvenanceEdges)
}

func TestSweepProtectsAxioms(t *testing.T) {
	s := gcTestStore(t, 0)
	ctx := context.Background()

	// An atom with no derivation edges is original knowledge.
	id, err := s.Ingest(ctx, IngestRequest{Content: []byte("axiom"), Modality: atom.ModalityText})
	require.NoError(t, err)
	_, err = s.Release(ctx, id)
	require.NoError(t, err)

	res, err := s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedAxiom)
	assert.Zero(t, res.Deleted)

	a, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, atom.StatePendingDeletion, a.State())

	// Force overrides the protection.
	res, err = s.GC().Sweep(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	_, err = s.Get(ctx, id)
	assert.True(t, errors.IsNotFound(err))
}

func TestSweepSkipsAtomsWithLiveDependents(t *testing.T) {
	s := gcTestStore(t, 0)
	ctx := context.Background()

	ids := ingestChain(t, s, "root", "middle", "leaf")

	// The middle atom has a live derived dependent (leaf): refuse.
	_, err := s.Release(ctx, ids[1])
	require.NoError(t, err)

	res, err := s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedLive)
	assert.Zero(t, res.Deleted)

	// Once the leaf is gone the middle atom becomes collectable.
	_, err = s.Release(ctx, ids[2])
	require.NoError(t, err)

	res, err = s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted) // leaf

	res, err = s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted) // middle

	_, err = s.Get(ctx, ids[1])
	assert.True(t, errors.IsNotFound(err))

	// The root survives as an axiom.
	_, err = s.Get(ctx, ids[0])
	require.NoError(t, err)
}

func TestRescueDuringGracePreventsDeletion(t *testing.T) {
	s := gcTestStore(t, 0)
	ctx := context.Background()

	ids := ingestChain(t, s, "root", "leaf")
	_, err := s.Release(ctx, ids[1])
	require.NoError(t, err)

	// Re-reference before the sweep runs.
	again, err := s.Ingest(ctx, IngestRequest{Content: []byte("leaf"), Modality: atom.ModalityText})
	require.NoError(t, err)
	assert.Equal(t, ids[1], again)

	res, err := s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
	assert.Zero(t, res.Deleted)

	a, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ReferenceCount)
}

func TestSweepRemovesEmbeddingFromIndex(t *testing.T) {
	s := gcTestStore(t, 0)
	ctx := context.Background()

	root, err := s.Ingest(ctx, IngestRequest{Content: []byte("root"), Modality: atom.ModalityText})
	require.NoError(t, err)
	leaf, err := s.Ingest(ctx, IngestRequest{
		Content:   []byte("leaf"),
		Modality:  atom.ModalityText,
		Vector:    unitVector(0),
		ParentIDs: []atom.ID{root},
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.IndexedPoints)

	_, err = s.Release(ctx, leaf)
	require.NoError(t, err)

	res, err := s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Deleted)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.IndexedPoints)
	assert.Zero(t, stats.Embeddings)
}

func TestSweepCascadesAcrossPooledConnections(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.Database.Path = filepath.Join(t.TempDir(), "atoms.db")
		cfg.GC.GracePeriodSeconds = 0
		cfg.GC.SweepRatePerSecond = 0
	})
	s, err := Open(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	root, err := s.Ingest(ctx, IngestRequest{Content: []byte("root"), Modality: atom.ModalityText})
	require.NoError(t, err)
	leaf, err := s.Ingest(ctx, IngestRequest{
		Content:   []byte("leaf"),
		Modality:  atom.ModalityText,
		Vector:    unitVector(1),
		ParentIDs: []atom.ID{root},
	})
	require.NoError(t, err)
	_, err = s.Release(ctx, leaf)
	require.NoError(t, err)

	// Pin one pool connection so the sweep's delete runs on a freshly
	// opened one; the cascade must hold there too.
	pinned, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer pinned.Close()

	res, err := s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Deleted)

	var edges, embeddings int
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM provenance_edges WHERE source_id = ? OR target_id = ?",
		int64(leaf), int64(leaf)).Scan(&edges))
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE atom_id = ?",
		int64(leaf)).Scan(&embeddings))
	assert.Zero(t, edges)
	assert.Zero(t, embeddings)
}

func TestSetConfigAdjustsGracePeriod(t *testing.T) {
	s := gcTestStore(t, 3600)
	ctx := context.Background()

	ids := ingestChain(t, s, "root", "leaf")
	_, err := s.Release(ctx, ids[1])
	require.NoError(t, err)

	res, err := s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	require.Zero(t, res.Deleted)

	cfg := testConfig(func(cfg *config.Config) {
		cfg.GC.GracePeriodSeconds = 0
		cfg.GC.SweepRatePerSecond = 0
	})
	s.GC().SetConfig(cfg)

	res, err = s.GC().Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	s := newTestStore(t, func(cfg *config.Config) {
		cfg.GC.SweepIntervalSeconds = 1
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.GC().RunSweeper(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
