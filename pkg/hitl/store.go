package hitl

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Failure reasons returned by Store mutation methods. Returning typed
// errors instead of bare booleans lets callers (and the REST surface)
// report why a decision was refused.
var (
	// ErrNotFound means no operation exists with the given id.
	ErrNotFound = errors.New("hitl: operation not found")

	// ErrNotPending means the operation has already left the pending
	// state, so approve/reject can no longer act on it.
	ErrNotPending = errors.New("hitl: operation is not pending")

	// ErrExpired means the approval deadline passed before a decision
	// arrived. The operation is marked expired as a side effect.
	ErrExpired = errors.New("hitl: operation expired")

	// ErrNotApproved means the operation is not in the approved state, so
	// the executor cannot claim it.
	ErrNotApproved = errors.New("hitl: operation is not approved")

	// ErrNotExecuting means the operation was never claimed for execution
	// (or a racing claimant already recorded its outcome).
	ErrNotExecuting = errors.New("hitl: operation is not executing")
)

const (
	// DefaultTimeout is how long an operation waits for a decision.
	DefaultTimeout = 30 * time.Minute

	// DefaultRetention is how long resolved operations are kept before
	// cleanup removes them.
	DefaultRetention = time.Hour
)

// Listener receives store events. Calls happen after the store's lock is
// released, and after the triggering mutation is durably recorded.
type Listener interface {
	OperationAdded(op *Operation)
	StatusChanged(op *Operation)
}

// StoreConfig tunes operation lifetimes.
type StoreConfig struct {
	// DefaultTimeout is applied when AddOperation gets no explicit
	// timeout. Zero means DefaultTimeout.
	DefaultTimeout time.Duration

	// Retention is how long resolved operations survive before
	// CleanupExpired removes them. Zero means DefaultRetention.
	Retention time.Duration
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	return c
}

// Store is the single source of truth for operation state. One mutex
// serializes every read-modify-write; throughput is bounded by human
// approval latency, not by lock contention.
type Store struct {
	cfg       StoreConfig
	mu        sync.Mutex
	ops       map[string]*Operation
	listeners []Listener
}

// NewStore creates a store. Listeners are fixed at construction; the
// notification hub and the blocking gate register here.
func NewStore(cfg StoreConfig, listeners ...Listener) *Store {
	return &Store{
		cfg:       cfg.withDefaults(),
		ops:       make(map[string]*Operation),
		listeners: listeners,
	}
}

// AddParams describes a new operation awaiting approval.
type AddParams struct {
	SessionID  string
	ToolName   string
	ToolArgs   map[string]any
	FilePath   string
	OldContent string
	NewContent string

	// Timeout overrides the store default when positive.
	Timeout time.Duration
}

// AddOperation queues a new pending operation and returns a copy of it.
// The added-listener fires after the operation is stored and the lock is
// released, so slow notification I/O never blocks state mutation.
func (s *Store) AddOperation(p AddParams) *Operation {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	now := time.Now()
	op := &Operation{
		OperationID: uuid.NewString(),
		SessionID:   p.SessionID,
		ToolName:    p.ToolName,
		ToolArgs:    p.ToolArgs,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(timeout),
		FilePath:    p.FilePath,
		OldContent:  p.OldContent,
		NewContent:  p.NewContent,
	}

	s.mu.Lock()
	s.ops[op.OperationID] = op
	out := op.clone()
	s.mu.Unlock()

	for _, l := range s.listeners {
		l.OperationAdded(out)
	}
	return out
}

// Get returns a copy of an operation. A pending operation past its
// deadline is flipped to expired before being returned; expiry is checked
// on read, not pushed by a timer.
func (s *Store) Get(id string) (*Operation, bool) {
	s.mu.Lock()
	op, ok := s.ops[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	s.expireLocked(op, time.Now())
	out := op.clone()
	s.mu.Unlock()
	return out, true
}

// PendingBySession returns pending operations for a session ordered by
// creation time, oldest first. Each candidate gets the lazy expiry check
// before filtering.
func (s *Store) PendingBySession(sessionID string) []*Operation {
	s.mu.Lock()
	now := time.Now()
	var result []*Operation
	for _, op := range s.ops {
		if op.SessionID != sessionID {
			continue
		}
		s.expireLocked(op, now)
		if op.Status == StatusPending {
			result = append(result, op.clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// AllBySession returns every operation for a session, newest first.
func (s *Store) AllBySession(sessionID string) []*Operation {
	s.mu.Lock()
	var result []*Operation
	for _, op := range s.ops {
		if op.SessionID == sessionID {
			result = append(result, op.clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Approve transitions a pending operation to approved. modifiedArgs, when
// non-nil, is merged over the stored tool args so the approver can edit a
// call before it runs. Expiry is enforced here as well as on reads: an
// expired operation can never be approved, even if nothing read it since
// the deadline passed.
func (s *Store) Approve(id string, modifiedArgs map[string]any) error {
	s.mu.Lock()
	op, ok := s.ops[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if op.Status != StatusPending {
		s.mu.Unlock()
		return ErrNotPending
	}
	now := time.Now()
	if s.expireLocked(op, now) {
		s.mu.Unlock()
		return ErrExpired
	}

	op.Status = StatusApproved
	op.ResolvedAt = &now
	for k, v := range modifiedArgs {
		if op.ToolArgs == nil {
			op.ToolArgs = make(map[string]any)
		}
		op.ToolArgs[k] = v
	}
	out := op.clone()
	s.mu.Unlock()

	s.notifyStatus(out)
	return nil
}

// Reject transitions a pending operation to rejected and records the
// reason. Same preconditions as Approve.
func (s *Store) Reject(id, reason string) error {
	s.mu.Lock()
	op, ok := s.ops[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if op.Status != StatusPending {
		s.mu.Unlock()
		return ErrNotPending
	}
	now := time.Now()
	if s.expireLocked(op, now) {
		s.mu.Unlock()
		return ErrExpired
	}

	op.Status = StatusRejected
	op.RejectionReason = reason
	op.ResolvedAt = &now
	out := op.clone()
	s.mu.Unlock()

	s.notifyStatus(out)
	return nil
}

// BatchApprove applies Approve to each id independently. A nil map entry
// means success; partial failure is expected and reported per id.
func (s *Store) BatchApprove(ids []string) map[string]error {
	results := make(map[string]error, len(ids))
	for _, id := range ids {
		results[id] = s.Approve(id, nil)
	}
	return results
}

// BatchReject applies Reject to each id independently.
func (s *Store) BatchReject(ids []string, reason string) map[string]error {
	results := make(map[string]error, len(ids))
	for _, id := range ids {
		results[id] = s.Reject(id, reason)
	}
	return results
}

// ClaimForExecution atomically moves an approved operation to executing
// and returns a copy. This is the executor's entry point: the check and
// the claim happen under one lock acquisition, so of any number of
// concurrent claimants exactly one wins and the rest get ErrNotApproved.
func (s *Store) ClaimForExecution(id string) (*Operation, error) {
	s.mu.Lock()
	op, ok := s.ops[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if op.Status != StatusApproved {
		s.mu.Unlock()
		return nil, ErrNotApproved
	}
	op.Status = StatusExecuting
	out := op.clone()
	s.mu.Unlock()

	s.notifyStatus(out)
	return out, nil
}

// UpdateExecutionStatus records the executor's outcome (completed or
// failed) for an operation claimed via ClaimForExecution. Anything not in
// the executing state is refused, so a caller that lost the claim race
// cannot overwrite the winner's record.
func (s *Store) UpdateExecutionStatus(id string, status Status, result, execErr string) error {
	s.mu.Lock()
	op, ok := s.ops[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if op.Status != StatusExecuting {
		s.mu.Unlock()
		return ErrNotExecuting
	}
	op.Status = status
	if result != "" {
		op.Result = result
	}
	if execErr != "" {
		op.Error = execErr
	}
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now()
		op.ResolvedAt = &now
	}
	out := op.clone()
	s.mu.Unlock()

	s.notifyStatus(out)
	return nil
}

// CleanupExpired removes resolved operations older than maxAge (the
// configured retention when maxAge <= 0) and flips any stale pending
// entries to expired, removing those too once past retention. Returns the
// number removed.
func (s *Store) CleanupExpired(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = s.cfg.Retention
	}
	now := time.Now()
	cutoff := now.Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, op := range s.ops {
		switch {
		case op.Status != StatusPending && op.CreatedAt.Before(cutoff):
			delete(s.ops, id)
			removed++
		case op.Status == StatusPending && s.expireLocked(op, now):
			if op.CreatedAt.Before(cutoff) {
				delete(s.ops, id)
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of stored operations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

// expireLocked flips a stale pending operation to expired. Caller holds
// the lock. Reports whether the operation is now expired.
func (s *Store) expireLocked(op *Operation, now time.Time) bool {
	if op.Status == StatusExpired {
		return true
	}
	if op.Status == StatusPending && now.After(op.ExpiresAt) {
		op.Status = StatusExpired
		resolved := now
		op.ResolvedAt = &resolved
		return true
	}
	return false
}

func (s *Store) notifyStatus(op *Operation) {
	for _, l := range s.listeners {
		l.StatusChanged(op)
	}
}
