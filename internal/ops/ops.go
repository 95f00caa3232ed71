// Package ops runs a compute operation over every dataset of a collection:
// consolidate, then assemble and compute each dataset in input order.
package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"daops/internal/config"
	"daops/internal/consolidate"
	"daops/internal/dataset"
	"daops/internal/dsref"
	"daops/internal/logging"
	"daops/internal/metrics"
	"daops/internal/timeparam"
)

// Operation computes a result from one assembled dataset.
type Operation interface {
	Name() string
	Compute(ctx context.Context, id string, ds *dataset.Dataset, params config.Options) (any, error)
}

// Func adapts a function to Operation.
type Func struct {
	OpName string
	Fn     func(ctx context.Context, id string, ds *dataset.Dataset, params config.Options) (any, error)
}

func (f Func) Name() string { return f.OpName }

func (f Func) Compute(ctx context.Context, id string, ds *dataset.Dataset, params config.Options) (any, error) {
	return f.Fn(ctx, id, ds, params)
}

// Mode selects how datasets are dispatched.
type Mode string

const (
	Serial   Mode = "serial"
	Parallel Mode = "parallel"
)

// ParseMode maps a config value onto a Mode. Empty means Serial.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Serial:
		return Serial, nil
	case Parallel:
		return Parallel, nil
	}
	return "", fmt.Errorf("ops: unknown mode %q; expected serial or parallel", s)
}

// Consolidator resolves references into per-dataset file lists.
type Consolidator interface {
	Consolidate(ctx context.Context, refs []dsref.Reference, tf timeparam.Filter) ([]consolidate.Entry, error)
}

// Assembler opens one dataset from its files.
type Assembler interface {
	Open(ctx context.Context, id string, files []string, applyFixes bool) (*dataset.Dataset, error)
}

// Request is one orchestrated call.
type Request struct {
	Collection []dsref.Reference
	Time       timeparam.Filter
	ApplyFixes bool
	Params     config.Options
}

// Orchestrator sequences consolidation, assembly and the operation.
type Orchestrator struct {
	consolidator Consolidator
	assembler    Assembler
	mode         Mode
	log          *zap.Logger
}

// New returns an Orchestrator.
func New(c Consolidator, a Assembler, mode Mode, log *zap.Logger) *Orchestrator {
	if mode == "" {
		mode = Serial
	}
	return &Orchestrator{consolidator: c, assembler: a, mode: mode, log: logging.OrNop(log)}
}

// Run applies op to every dataset of req. The first error aborts the call and
// no partial result set is returned.
func (o *Orchestrator) Run(ctx context.Context, op Operation, req Request) (*ResultSet, error) {
	runID := uuid.NewString()
	log := o.log.With(zap.String("run_id", runID), zap.String("op", op.Name()))
	job := op.Name()

	start := time.Now()
	entries, err := o.consolidator.Consolidate(ctx, req.Collection, req.Time)
	metrics.RecordStep(job, metrics.StepConsolidate, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	metrics.RecordDatasets(job, "consolidated", int64(len(entries)))
	files := 0
	for _, e := range entries {
		files += len(e.Files)
	}
	metrics.RecordFiles(job, int64(files))
	log.Info("collection consolidated", zap.Int("datasets", len(entries)), zap.Int("files", files), zap.Stringer("time", req.Time))

	if o.mode == Parallel {
		log.Info("parallel mode is not implemented; dispatching serially")
	}
	return o.serial(ctx, log, op, req, entries)
}

func (o *Orchestrator) serial(ctx context.Context, log *zap.Logger, op Operation, req Request, entries []consolidate.Entry) (*ResultSet, error) {
	job := op.Name()
	rs := NewResultSet()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dsStart := time.Now()

		start := time.Now()
		ds, err := o.assembler.Open(ctx, e.ID, e.Files, req.ApplyFixes)
		metrics.RecordStep(job, metrics.StepAssemble, err, time.Since(start))
		if err != nil {
			return nil, err
		}
		metrics.RecordDatasets(job, "assembled", 1)

		start = time.Now()
		res, err := op.Compute(ctx, e.ID, ds, req.Params)
		metrics.RecordStep(job, metrics.StepCompute, err, time.Since(start))
		if err != nil {
			return nil, err
		}
		rs.Add(e.ID, res)
		log.Info("dataset processed",
			zap.String("ds_id", e.ID),
			zap.Int("files", len(e.Files)),
			zap.Duration("elapsed", time.Since(dsStart)))
	}
	return rs, nil
}
