package sync

import (
	"sort"
	stdsync "sync"
	"time"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

// accumulator is the run's owned, mutex-guarded accounting state. Workers
// report outcomes here; the final SyncRun is read only after every worker
// has finished, so the partition attempted = success + error always holds.
type accumulator struct {
	mu      stdsync.Mutex
	success int
	errs    []domain.SyncError
}

func (a *accumulator) ok() {
	a.mu.Lock()
	a.success++
	a.mu.Unlock()
}

func (a *accumulator) fail(recordID string, err error) {
	a.mu.Lock()
	a.errs = append(a.errs, domain.SyncError{
		RecordID: recordID,
		Reason:   domain.ErrorReason(err),
		Detail:   err.Error(),
	})
	a.mu.Unlock()
}

// finalize builds the SyncRun summary. Errors are ordered by record id so a
// run's report does not depend on worker scheduling.
func (a *accumulator) finalize(started time.Time) *domain.SyncRun {
	a.mu.Lock()
	defer a.mu.Unlock()

	errs := make([]domain.SyncError, len(a.errs))
	copy(errs, a.errs)
	sort.Slice(errs, func(i, j int) bool { return errs[i].RecordID < errs[j].RecordID })

	return &domain.SyncRun{
		Attempted:    a.success + len(errs),
		SuccessCount: a.success,
		ErrorCount:   len(errs),
		Errors:       errs,
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
	}
}
