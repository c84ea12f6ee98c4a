// Package store wires the content-address layer, the spatial index and the
// provenance graph into the AtomStore: the single entry point callers use
// for ingest, search, lineage and lifecycle management. A Store owns its
// database handle and in-memory index; multiple isolated stores can coexist
// in one process.
package store

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/cas"
	"github.com/axiomata/atomstore/config"
	"github.com/axiomata/atomstore/db"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/logger"
	"github.com/axiomata/atomstore/provenance"
	"github.com/axiomata/atomstore/spatial"
)

// Store is the orchestrating facade over atoms, embeddings, the spatial
// index and the provenance graph.
type Store struct {
	db        *sql.DB
	cfg       *config.Config
	logger    *zap.SugaredLogger
	atoms     *cas.Store
	graph     *provenance.Graph
	projector *spatial.Projector
	index     *spatial.Index
	decomp    Decomposer
	gc        *Collector

	closeOnce sync.Once
}

// Open opens (or creates) the store at the configured database path, runs
// migrations, and rebuilds the in-memory spatial index from the persisted
// embeddings.
func Open(cfg *config.Config, log *zap.SugaredLogger) (*Store, error) {
	conn, err := db.OpenWithMigrations(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}
	s, err := newStore(conn, cfg, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB builds a store over an already-open, migrated database. Used by
// tests with in-memory databases.
func NewWithDB(conn *sql.DB, cfg *config.Config, log *zap.SugaredLogger) (*Store, error) {
	return newStore(conn, cfg, log)
}

func newStore(conn *sql.DB, cfg *config.Config, log *zap.SugaredLogger) (*Store, error) {
	projector, err := spatial.NewProjector(cfg.Embedding.Dimensions, cfg.Spatial.LandmarkSeed)
	if err != nil {
		return nil, err
	}

	atoms := cas.NewStore(conn, log)
	s := &Store{
		db:        conn,
		cfg:       cfg,
		logger:    log,
		atoms:     atoms,
		graph:     provenance.NewGraph(conn, atoms, log, cfg.Provenance.CycleCheckMaxDepth),
		projector: projector,
		index:     spatial.NewIndex(log),
		decomp:    &FixedSizeDecomposer{ChunkSize: cfg.Ingest.MaxAtomBytes},
	}
	s.gc = NewCollector(s, cfg, log)

	if err := s.loadIndex(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// loadIndex rebuilds the spatial index from the embeddings table. Projection
// coordinates and buckets are persisted, so no vectors are re-projected.
func (s *Store) loadIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT atom_id, px, py, pz, bucket FROM embeddings ORDER BY atom_id`)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "store: load spatial index"), errors.ErrStorage)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		var p spatial.Point3D
		var bucket uint32
		if err := rows.Scan(&id, &p.X, &p.Y, &p.Z, &bucket); err != nil {
			return errors.Mark(errors.Wrap(err, "store: scan embedding"), errors.ErrStorage)
		}
		s.index.Insert(atom.ID(id), p, bucket)
		count++
	}
	if err := rows.Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "store: iterate embeddings"), errors.ErrStorage)
	}

	s.logger.Infow("Spatial index rebuilt",
		logger.FieldComponent, "store",
		logger.FieldCount, count,
	)
	return nil
}

// SetDecomposer replaces the oversized-payload decomposition strategy.
func (s *Store) SetDecomposer(d Decomposer) {
	if d != nil {
		s.decomp = d
	}
}

// GC returns the store's garbage collector.
func (s *Store) GC() *Collector {
	return s.gc
}

// Get returns the atom with the given id.
func (s *Store) Get(ctx context.Context, id atom.ID) (*atom.Atom, error) {
	return s.atoms.Get(ctx, id)
}

// GetByHash returns the atom whose content hashes to digest.
func (s *Store) GetByHash(ctx context.Context, digest atom.Digest) (*atom.Atom, error) {
	return s.atoms.GetByHash(ctx, digest)
}

// LookupByHash resolves a content digest to an atom id without loading the
// atom.
func (s *Store) LookupByHash(ctx context.Context, digest atom.Digest) (atom.ID, error) {
	return s.graph.LookupByHash(ctx, digest)
}

// Release decrements the atom's reference count. When the count reaches
// zero the atom enters pending deletion; it stays recoverable until the GC
// grace period elapses.
func (s *Store) Release(ctx context.Context, id atom.ID) (int64, error) {
	return s.atoms.Release(ctx, id)
}

// Close releases the database handle. The in-memory index is discarded; it
// is rebuilt from the embeddings table on the next Open.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}
