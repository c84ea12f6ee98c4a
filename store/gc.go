package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/config"
	"github.com/axiomata/atomstore/db"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/logger"
	"github.com/axiomata/atomstore/spatial"
)

// Collector reclaims atoms whose reference count has been zero for longer
// than the grace period. Deletion cascades to the atom's embeddings and to
// every provenance edge touching it.
//
// Two protections apply unless force is set:
//   - axioms (atoms not derived from anything via a cycle-sensitive edge)
//     are never collected;
//   - atoms with live derived dependents are skipped, so an interior node
//     of a derivation chain outlives everything derived from it.
type Collector struct {
	store   *Store
	logger  *zap.SugaredLogger
	limiter *rate.Limiter

	mu  sync.RWMutex
	cfg *config.Config
}

// SweepResult summarizes one garbage collection pass.
type SweepResult struct {
	Scanned        int `json:"scanned"`
	Deleted        int `json:"deleted"`
	SkippedAxiom   int `json:"skipped_axiom"`
	SkippedLive    int `json:"skipped_live_dependents"`
	SkippedRescued int `json:"skipped_rescued"`
}

// NewCollector creates a collector paced at the configured deletions per
// second.
func NewCollector(s *Store, cfg *config.Config, log *zap.SugaredLogger) *Collector {
	return &Collector{
		store:   s,
		cfg:     cfg,
		logger:  log,
		limiter: rate.NewLimiter(sweepLimit(cfg.GC.SweepRatePerSecond), 1),
	}
}

func sweepLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

// SetConfig swaps the GC tuning at runtime. Grace period, batch size, pace
// and sweep interval take effect on the next sweep cycle.
func (c *Collector) SetConfig(cfg *config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.limiter.SetLimit(sweepLimit(cfg.GC.SweepRatePerSecond))

	c.logger.Infow("GC configuration updated",
		logger.FieldComponent, "gc",
	)
}

func (c *Collector) config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Sweep deletes up to one batch of eligible atoms. Only atoms whose grace
// period has fully elapsed are candidates; the grace period holds even under
// force. Force overrides the axiom and live-dependent protections.
func (c *Collector) Sweep(ctx context.Context, force bool) (SweepResult, error) {
	var res SweepResult
	cutoff := time.Now().UTC().Add(-c.config().GC.GracePeriod())

	candidates, err := c.candidates(ctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Scanned = len(candidates)

	for _, id := range candidates {
		if err := c.limiter.Wait(ctx); err != nil {
			return res, errors.Mark(
				errors.Wrap(err, "gc: sweep cancelled"),
				errors.ErrTimeout)
		}

		deleted, skip, err := c.collect(ctx, id, force)
		if err != nil {
			return res, err
		}
		switch {
		case deleted:
			res.Deleted++
		case skip == skipAxiom:
			res.SkippedAxiom++
		case skip == skipLiveDependents:
			res.SkippedLive++
		case skip == skipRescued:
			res.SkippedRescued++
		}
	}

	c.logger.Infow("GC sweep complete",
		logger.FieldComponent, "gc",
		logger.FieldCount, res.Deleted,
		logger.FieldBatchSize, res.Scanned,
		logger.FieldForced, force,
	)
	return res, nil
}

// RunSweeper sweeps periodically until the context is cancelled. Intended
// to run as a goroutine alongside a long-lived store. Interval changes via
// SetConfig take effect after the current wait.
func (c *Collector) RunSweeper(ctx context.Context) {
	timer := time.NewTimer(c.config().GC.SweepInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := c.Sweep(ctx, false); err != nil && ctx.Err() == nil {
				if db.IsDatabaseClosed(err) {
					return
				}
				c.logger.Errorw("GC sweep failed",
					logger.FieldComponent, "gc",
					logger.FieldError, err,
				)
			}
			timer.Reset(c.config().GC.SweepInterval())
		}
	}
}

func (c *Collector) candidates(ctx context.Context, cutoff time.Time) ([]atom.ID, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT id FROM atoms
		 WHERE reference_count = 0
		   AND gc_eligible_at IS NOT NULL
		   AND datetime(gc_eligible_at) <= datetime(?)
		 ORDER BY gc_eligible_at ASC
		 LIMIT ?`,
		cutoff.Format(time.RFC3339Nano), c.config().GC.SweepBatchSize)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "gc: list candidates"), errors.ErrStorage)
	}
	defer rows.Close()

	var ids []atom.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "gc: scan candidate"), errors.ErrStorage)
		}
		ids = append(ids, atom.ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "gc: iterate candidates"), errors.ErrStorage)
	}
	return ids, nil
}

type skipReason int

const (
	skipNone skipReason = iota
	skipAxiom
	skipLiveDependents
	skipRescued
)

// collect deletes a single candidate after re-checking its protections.
func (c *Collector) collect(ctx context.Context, id atom.ID, force bool) (bool, skipReason, error) {
	if !force {
		axiom, err := c.isAxiom(ctx, id)
		if err != nil {
			return false, skipNone, err
		}
		if axiom {
			c.logger.Debugw("GC skipping axiom", logger.FieldAtomID, id)
			return false, skipAxiom, nil
		}

		live, err := c.hasLiveDependents(ctx, id)
		if err != nil {
			return false, skipNone, err
		}
		if live {
			c.logger.Debugw("GC skipping atom with live dependents", logger.FieldAtomID, id)
			return false, skipLiveDependents, nil
		}
	}

	// Grab the spatial location before the row disappears.
	point, bucket, hasEmbedding, err := c.embeddingLocation(ctx, id)
	if err != nil {
		return false, skipNone, err
	}

	// The refcount guard makes deletion lose gracefully against a
	// concurrent rescue. Embeddings and edges go with the atom via the
	// foreign key cascades.
	result, err := c.store.db.ExecContext(ctx,
		`DELETE FROM atoms WHERE id = ? AND reference_count = 0`, int64(id))
	if err != nil {
		return false, skipNone, errors.Mark(
			errors.Wrapf(err, "gc: delete atom %d", id), errors.ErrStorage)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, skipNone, errors.Mark(
			errors.Wrap(err, "gc: rows affected"), errors.ErrStorage)
	}
	if affected == 0 {
		return false, skipRescued, nil
	}

	if hasEmbedding {
		c.store.index.Remove(id, point, bucket)
	}

	c.logger.Debugw("Atom collected",
		logger.FieldAtomID, id,
		logger.FieldForced, force,
	)
	return true, skipNone, nil
}

// isAxiom reports whether the atom is original knowledge: nothing it was
// derived from via a cycle-sensitive edge.
func (c *Collector) isAxiom(ctx context.Context, id atom.ID) (bool, error) {
	var n int
	err := c.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM provenance_edges
		 WHERE source_id = ? AND relationship IN (?, ?)`,
		int64(id), string(atom.RelDerivedFrom), string(atom.RelComposedOf)).Scan(&n)
	if err != nil {
		return false, errors.Mark(errors.Wrap(err, "gc: axiom check"), errors.ErrStorage)
	}
	return n == 0, nil
}

// hasLiveDependents reports whether any atom with a positive reference
// count derives from this one via a cycle-sensitive edge.
func (c *Collector) hasLiveDependents(ctx context.Context, id atom.ID) (bool, error) {
	var n int
	err := c.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM provenance_edges e
		 JOIN atoms a ON a.id = e.source_id
		 WHERE e.target_id = ?
		   AND e.relationship IN (?, ?)
		   AND a.reference_count > 0`,
		int64(id), string(atom.RelDerivedFrom), string(atom.RelComposedOf)).Scan(&n)
	if err != nil {
		return false, errors.Mark(errors.Wrap(err, "gc: dependent check"), errors.ErrStorage)
	}
	return n > 0, nil
}

func (c *Collector) embeddingLocation(ctx context.Context, id atom.ID) (spatial.Point3D, uint32, bool, error) {
	var p spatial.Point3D
	var bucket uint32
	err := c.store.db.QueryRowContext(ctx,
		`SELECT px, py, pz, bucket FROM embeddings WHERE atom_id = ? LIMIT 1`,
		int64(id)).Scan(&p.X, &p.Y, &p.Z, &bucket)
	if errors.Is(err, sql.ErrNoRows) {
		return p, 0, false, nil
	}
	if err != nil {
		return p, 0, false, errors.Mark(
			errors.Wrap(err, "gc: embedding lookup"), errors.ErrStorage)
	}
	return p, bucket, true, nil
}
