package uninstall

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gruntwork-io/lz-teardown/internal/broker"
	"github.com/gruntwork-io/lz-teardown/internal/organization"
	"github.com/gruntwork-io/lz-teardown/internal/reaper"
)

// RunState is the mutable record threaded through one execution of an immutable plan.
type RunState struct {
	Started    time.Time
	Management *broker.ManagementAccountContext
	// CallerAccount is the account the teardown runs as.
	CallerAccount string
	// MemberRoleName is assumed into every account other than the caller and the management account.
	MemberRoleName string
	Accounts       []organization.Account

	deferred   []reaper.PersistentResourceRef
	deferredMu sync.Mutex

	deleted  atomic.Int32
	notFound atomic.Int32
	failed   atomic.Int32
	skipped  atomic.Int32
}

// Defer queues refs to be reaped once every step has completed.
func (state *RunState) Defer(refs ...reaper.PersistentResourceRef) {
	state.deferredMu.Lock()
	defer state.deferredMu.Unlock()

	state.deferred = append(state.deferred, refs...)
}

// TakeDeferred returns and clears the deferred queue.
func (state *RunState) TakeDeferred() []reaper.PersistentResourceRef {
	state.deferredMu.Lock()
	defer state.deferredMu.Unlock()

	refs := state.deferred
	state.deferred = nil

	return refs
}

// Summary returns the counters of the run.
func (state *RunState) Summary() Summary {
	return Summary{
		Elapsed:  time.Since(state.Started),
		Deleted:  int(state.deleted.Load()),
		NotFound: int(state.notFound.Load()),
		Failed:   int(state.failed.Load()),
		Skipped:  int(state.skipped.Load()),
	}
}

// Summary is the outcome of a run.
type Summary struct {
	Elapsed  time.Duration
	Deleted  int
	NotFound int
	Failed   int
	Skipped  int
}

func (summary Summary) String() string {
	return fmt.Sprintf("%d stacks deleted, %d already absent, %d failed, %d skipped in %s",
		summary.Deleted, summary.NotFound, summary.Failed, summary.Skipped, summary.Elapsed.Round(time.Second))
}
