package store

import (
	"context"
	"database/sql"
	"time"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/cas"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/logger"
	"github.com/axiomata/atomstore/spatial"
)

// IngestRequest describes one unit of content to store.
type IngestRequest struct {
	Content  []byte
	Modality string
	Subtype  string
	// Vector is the optional embedding. When present its length must match
	// the configured dimensionality.
	Vector []float32
	// ParentIDs name the atoms this content was derived from; a
	// derived-from edge is recorded for each.
	ParentIDs []atom.ID
}

// indexInsert is an embedding staged during ingest and applied to the
// in-memory spatial index only after the transaction commits.
type indexInsert struct {
	id     atom.ID
	point  spatial.Point3D
	bucket uint32
}

// Ingest stores content and returns its atom id. Identical content
// deduplicates to the existing atom with its reference count incremented.
// The atom row, its embedding and its provenance edges commit in one
// transaction: a failure at any step, including a detected cycle or the
// configured timeout, leaves no trace. Content larger than the atomic
// payload cap is decomposed into chunk atoms under a composite parent, and
// the parent's id is returned.
func (s *Store) Ingest(ctx context.Context, req IngestRequest) (atom.ID, error) {
	if err := s.validateIngest(req); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Ingest.Timeout())
	defer cancel()

	opID := uuid.NewString()
	start := time.Now()

	var staged []indexInsert
	var id atom.ID
	var duplicate bool

	// The whole transaction retries on transient lock contention; anything
	// else surfaces immediately.
	attempt := func() error {
		staged = staged[:0]

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "store: begin ingest")
		}
		defer tx.Rollback()

		if len(req.Content) > s.cfg.Ingest.MaxAtomBytes {
			id, duplicate, err = s.ingestDecomposed(ctx, tx, req, &staged)
		} else {
			id, duplicate, err = s.ingestAtomic(ctx, tx, req, &staged)
		}
		if err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return errors.Mark(errors.Wrap(err, "store: commit ingest"), errors.ErrStorage)
		}
		return nil
	}
	if err := cas.Retry(ctx, 3, 50*time.Millisecond, attempt); err != nil {
		return 0, ingestErr(ctx, err)
	}

	// Index updates happen strictly after commit so a rollback can never
	// leave a phantom point behind.
	for _, ins := range staged {
		s.index.Insert(ins.id, ins.point, ins.bucket)
	}

	s.logger.Infow("Ingest complete",
		logger.FieldOpID, opID,
		logger.FieldAtomID, id,
		logger.FieldDuplicate, duplicate,
		logger.FieldSize, len(req.Content),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return id, nil
}

func (s *Store) validateIngest(req IngestRequest) error {
	if len(req.Content) == 0 {
		return errors.Mark(errors.New("store: empty content"), errors.ErrInvalidArgument)
	}
	if req.Modality == "" {
		return errors.Mark(errors.New("store: missing modality"), errors.ErrInvalidArgument)
	}
	if req.Vector != nil && len(req.Vector) != s.cfg.Embedding.Dimensions {
		return errors.Mark(
			errors.Newf("store: embedding has %d dimensions, store configured for %d",
				len(req.Vector), s.cfg.Embedding.Dimensions),
			errors.ErrDimensionMismatch)
	}
	return nil
}

// ingestAtomic stores content that fits under the payload cap: one atom,
// its optional embedding, and derived-from edges to the given parents.
func (s *Store) ingestAtomic(ctx context.Context, tx *sql.Tx, req IngestRequest, staged *[]indexInsert) (atom.ID, bool, error) {
	atoms := s.atoms.WithTx(tx)
	graph := s.graph.WithTx(tx)

	digest := atom.ComputeDigest(req.Content)
	id, duplicate, err := atoms.LookupOrInsert(ctx, digest, func() (*atom.Atom, error) {
		return &atom.Atom{
			ContentHash: digest,
			Modality:    req.Modality,
			Subtype:     req.Subtype,
			Value:       req.Content,
			CreatedAt:   time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return 0, false, err
	}
	if duplicate {
		// The existing atom already carries its embedding and lineage;
		// this ingest only added a reference.
		return id, true, nil
	}

	if req.Vector != nil {
		if err := s.insertEmbedding(ctx, tx, id, req.Vector, staged); err != nil {
			return 0, false, err
		}
	}
	for _, parent := range req.ParentIDs {
		if _, err := graph.AddEdge(ctx, id, parent, atom.RelDerivedFrom, 1.0); err != nil {
			return 0, false, err
		}
	}
	return id, false, nil
}

// ingestDecomposed splits oversized content into chunk atoms under a
// synthetic composite parent. The composite's payload is the digest of the
// full content, which keeps the whole blob content-addressable: re-ingesting
// the same bytes finds the same composite. The embedding and the parent
// edges attach to the composite.
func (s *Store) ingestDecomposed(ctx context.Context, tx *sql.Tx, req IngestRequest, staged *[]indexInsert) (atom.ID, bool, error) {
	atoms := s.atoms.WithTx(tx)
	graph := s.graph.WithTx(tx)

	fullDigest := atom.ComputeDigest(req.Content)
	compositeValue := fullDigest.Bytes()
	compositeDigest := atom.ComputeDigest(compositeValue)

	parentID, duplicate, err := atoms.LookupOrInsert(ctx, compositeDigest, func() (*atom.Atom, error) {
		return &atom.Atom{
			ContentHash: compositeDigest,
			Modality:    req.Modality,
			Subtype:     atom.SubtypeComposite,
			Value:       compositeValue,
			CreatedAt:   time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return 0, false, err
	}
	if duplicate {
		return parentID, true, nil
	}

	chunks, err := s.decomp.Decompose(req.Content, s.cfg.Ingest.MaxAtomBytes)
	if err != nil {
		return 0, false, err
	}

	s.logger.Debugw("Decomposing oversized payload",
		logger.FieldAtomID, parentID,
		logger.FieldSize, len(req.Content),
		logger.FieldBatchSize, len(chunks),
	)

	for _, chunk := range chunks {
		if len(chunk) > s.cfg.Ingest.MaxAtomBytes {
			return 0, false, errors.Mark(
				errors.Newf("store: decomposer produced %d-byte chunk over %d-byte cap",
					len(chunk), s.cfg.Ingest.MaxAtomBytes),
				errors.ErrInvalidArgument)
		}
		chunkDigest := atom.ComputeDigest(chunk)
		chunkValue := append([]byte(nil), chunk...)
		chunkID, _, err := atoms.LookupOrInsert(ctx, chunkDigest, func() (*atom.Atom, error) {
			return &atom.Atom{
				ContentHash: chunkDigest,
				Modality:    req.Modality,
				Subtype:     req.Subtype,
				Value:       chunkValue,
				CreatedAt:   time.Now().UTC(),
			}, nil
		})
		if err != nil {
			return 0, false, err
		}
		if _, err := graph.AddEdge(ctx, parentID, chunkID, atom.RelComposedOf, 1.0); err != nil {
			return 0, false, err
		}
	}

	if req.Vector != nil {
		if err := s.insertEmbedding(ctx, tx, parentID, req.Vector, staged); err != nil {
			return 0, false, err
		}
	}
	for _, p := range req.ParentIDs {
		if _, err := graph.AddEdge(ctx, parentID, p, atom.RelDerivedFrom, 1.0); err != nil {
			return 0, false, err
		}
	}
	return parentID, false, nil
}

// insertEmbedding projects the vector, persists the embedding row inside
// the transaction, and stages the spatial-index insert for after commit.
func (s *Store) insertEmbedding(ctx context.Context, tx cas.DBTX, id atom.ID, vector []float32, staged *[]indexInsert) error {
	point, err := s.projector.Project(vector)
	if err != nil {
		return err
	}
	hilbert, err := spatial.EncodeHilbert(point, s.cfg.Spatial.HilbertOrder)
	if err != nil {
		return err
	}
	bucket := spatial.Bucket(point, s.cfg.Spatial.BucketGrid)

	blob, err := sqlitevec.SerializeFloat32(vector)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "store: serialize vector"), errors.ErrStorage)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO embeddings (atom_id, kind, dimensions, vector, px, py, pz, hilbert_index, bucket)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(id), s.cfg.Embedding.Kind, len(vector), blob,
		point.X, point.Y, point.Z, int64(hilbert), int64(bucket))
	if err != nil {
		return errors.Mark(errors.Wrap(err, "store: insert embedding"), errors.ErrStorage)
	}

	s.logger.Debugw("Embedding projected",
		logger.FieldAtomID, id,
		logger.FieldHilbertIndex, hilbert,
		logger.FieldBucket, bucket,
	)

	*staged = append(*staged, indexInsert{id: id, point: point, bucket: bucket})
	return nil
}

// ingestErr converts a deadline expiry into the timeout error the caller
// contract promises. Caller cancellation is not a timeout and passes
// through, as does every other failure.
func ingestErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, errors.ErrTimeout) {
		return errors.Mark(
			errors.Wrap(err, "store: ingest deadline exceeded"),
			errors.ErrTimeout)
	}
	return err
}
