package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"postcardhub/pkg/models"
)

// Store is the catalog surface the reconciler writes through.
type Store interface {
	FindByNumber(ctx context.Context, number string) (*models.CardRecord, error)
	Create(ctx context.Context, rec models.CardRecord) error
	Update(ctx context.Context, number string, rec models.CardRecord) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// StoreTx is a Store bound to one transaction scope. Rollback after Commit
// must be a harmless no-op so scopes can be closed with a deferred Rollback.
type StoreTx interface {
	Store
	Commit() error
	Rollback() error
}

// StoreOpener opens one transaction scope per run, or one per worker when
// rows are partitioned.
type StoreOpener interface {
	Begin(ctx context.Context) (StoreTx, error)
}

// Policy controls how one run applies records to the store.
type Policy struct {
	// UpdateExisting overwrites records that already exist instead of
	// skipping them.
	UpdateExisting bool
	// ClearFirst deletes every record before applying. Ignored under
	// DryRun.
	ClearFirst bool
	// DryRun opens the same transaction scope as a real run, computes the
	// same counts, and rolls back unconditionally.
	DryRun bool
	// Strict rolls the scope back when any row errored, so either every
	// row lands or none does. Off, the historical behavior holds: rows
	// succeed and fail independently. With Workers > 1 strictness applies
	// per partition.
	Strict bool
	// Limit stops the run after this many source rows. Zero means all.
	Limit int
	// Workers partitions rows by number hash across this many appliers,
	// each with its own transaction scope. Values below 2 mean sequential.
	Workers int
}

// DefaultMaxErrors caps how many row error messages a report keeps.
const DefaultMaxErrors = 10

// Report sums up one run.
type Report struct {
	Created     int      `json:"created"`
	Updated     int      `json:"updated"`
	Skipped     int      `json:"skipped"`
	ErrorCount  int      `json:"error_count"`
	FirstErrors []string `json:"first_errors,omitempty"`
	// Rows counts the source rows handed to the pipeline, including the
	// skipped ones.
	Rows int `json:"rows"`
	// StoreTotal is the store-wide record count at the end of the run. A
	// sequential dry run reports the total the run would have produced.
	StoreTotal int64 `json:"store_total"`
	DryRun     bool  `json:"dry_run"`
	// Applied is false when the scope was rolled back, by a dry run or by
	// Strict after row errors.
	Applied bool `json:"applied"`
}

func (r *Report) addError(max int, msg string) {
	r.ErrorCount++
	if len(r.FirstErrors) < max {
		r.FirstErrors = append(r.FirstErrors, msg)
	}
}

func (r *Report) merge(o Report, max int) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Skipped += o.Skipped
	r.ErrorCount += o.ErrorCount
	r.Rows += o.Rows
	for _, msg := range o.FirstErrors {
		if len(r.FirstErrors) >= max {
			break
		}
		r.FirstErrors = append(r.FirstErrors, msg)
	}
	r.Applied = r.Applied && o.Applied
}

// Row is one normalized record tagged with its position in the source.
type Row struct {
	Line int
	Rec  models.CardRecord
}

// Reconciler applies normalized records to the catalog store.
type Reconciler struct {
	Store     StoreOpener
	MaxErrors int
}

func (rc *Reconciler) maxErrors() int {
	if rc.MaxErrors > 0 {
		return rc.MaxErrors
	}
	return DefaultMaxErrors
}

// Apply runs one reconciliation pass. Rows sharing a number apply in order,
// last write wins. Row failures are counted and reported; only transaction
// scope failures abort with an error.
func (rc *Reconciler) Apply(ctx context.Context, rows []Row, pol Policy) (Report, error) {
	if pol.Workers <= 1 {
		return rc.applyScope(ctx, rows, pol, true)
	}

	// One committed clear up front so worker scopes all see the empty
	// store.
	if pol.ClearFirst && !pol.DryRun {
		if err := rc.clearAll(ctx); err != nil {
			return Report{DryRun: pol.DryRun}, err
		}
	}

	parts := partitionRows(rows, pol.Workers)
	reports := make([]Report, len(parts))
	errs := make([]error, len(parts))
	var wg sync.WaitGroup
	for i := range parts {
		if len(parts[i]) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := pol
			p.ClearFirst = false
			reports[i], errs[i] = rc.applyScope(ctx, parts[i], p, false)
		}(i)
	}
	wg.Wait()

	total := Report{DryRun: pol.DryRun, Applied: true}
	for i := range parts {
		if len(parts[i]) == 0 {
			continue
		}
		if errs[i] != nil {
			return total, errs[i]
		}
		total.merge(reports[i], rc.maxErrors())
	}
	count, err := rc.storeCount(ctx)
	if err != nil {
		return total, err
	}
	total.StoreTotal = count
	return total, nil
}

func (rc *Reconciler) applyScope(ctx context.Context, rows []Row, pol Policy, withClear bool) (Report, error) {
	rep := Report{DryRun: pol.DryRun}

	tx, err := rc.Store.Begin(ctx)
	if err != nil {
		return rep, &StoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if withClear && pol.ClearFirst && !pol.DryRun {
		if _, err := tx.DeleteAll(ctx); err != nil {
			return rep, &StoreError{Op: "clear", Err: err}
		}
	}

	max := rc.maxErrors()
	for _, row := range rows {
		existing, err := tx.FindByNumber(ctx, row.Rec.Number)
		if err != nil {
			rep.addError(max, fmt.Sprintf("line %d (card %s): lookup: %v", row.Line, row.Rec.Number, err))
			continue
		}
		switch {
		case existing == nil:
			if err := tx.Create(ctx, row.Rec); err != nil {
				rep.addError(max, fmt.Sprintf("line %d (card %s): create: %v", row.Line, row.Rec.Number, err))
				continue
			}
			rep.Created++
		case pol.UpdateExisting:
			if err := tx.Update(ctx, row.Rec.Number, row.Rec); err != nil {
				rep.addError(max, fmt.Sprintf("line %d (card %s): update: %v", row.Line, row.Rec.Number, err))
				continue
			}
			rep.Updated++
		default:
			rep.Skipped++
		}
	}

	total, err := tx.Count(ctx)
	if err != nil {
		return rep, &StoreError{Op: "count", Err: err}
	}
	rep.StoreTotal = total

	if pol.DryRun || (pol.Strict && rep.ErrorCount > 0) {
		return rep, nil
	}
	if err := tx.Commit(); err != nil {
		return rep, &StoreError{Op: "commit", Err: err}
	}
	rep.Applied = true
	return rep, nil
}

func (rc *Reconciler) clearAll(ctx context.Context) error {
	tx, err := rc.Store.Begin(ctx)
	if err != nil {
		return &StoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback()
	if _, err := tx.DeleteAll(ctx); err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "commit", Err: err}
	}
	return nil
}

func (rc *Reconciler) storeCount(ctx context.Context) (int64, error) {
	tx, err := rc.Store.Begin(ctx)
	if err != nil {
		return 0, &StoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback()
	count, err := tx.Count(ctx)
	if err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return count, nil
}

// partitionRows assigns rows to workers by number hash, so rows sharing a
// number always land on the same worker and keep their source order.
func partitionRows(rows []Row, workers int) [][]Row {
	parts := make([][]Row, workers)
	for _, row := range rows {
		h := fnv.New32a()
		h.Write([]byte(row.Rec.Number))
		i := int(h.Sum32() % uint32(workers))
		parts[i] = append(parts[i], row)
	}
	return parts
}
