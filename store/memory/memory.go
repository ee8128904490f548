// Package memory provides in-memory store implementations for tests and
// development. All implementations are safe for concurrent use and honor
// the same optimistic-concurrency contracts as the SQLite store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore implements ledger.Store.
type LedgerStore struct {
	mu           sync.RWMutex
	balances     map[ledger.Key]ledger.Balance
	reservations map[string]ledger.Reservation
	journal      []ledger.Entry
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		balances:     make(map[ledger.Key]ledger.Balance),
		reservations: make(map[string]ledger.Reservation),
	}
}

func (s *LedgerStore) GetBalance(_ context.Context, key ledger.Key) (ledger.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[key]
	if !ok {
		return ledger.Balance{}, leave.ErrNotFound
	}
	return b, nil
}

func (s *LedgerStore) CreateBalance(_ context.Context, b ledger.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.balances[b.Key]; exists {
		return leave.ErrConcurrentModification
	}
	s.balances[b.Key] = b
	return nil
}

func (s *LedgerStore) UpdateBalance(_ context.Context, b ledger.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.balances[b.Key]
	if !ok || current.Version != b.Version-1 {
		return leave.ErrConcurrentModification
	}
	s.balances[b.Key] = b
	return nil
}

func (s *LedgerStore) CreateReservation(_ context.Context, r ledger.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
	return nil
}

func (s *LedgerStore) GetReservation(_ context.Context, id string) (ledger.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return ledger.Reservation{}, leave.ErrNotFound
	}
	return r, nil
}

func (s *LedgerStore) SettleReservation(_ context.Context, id string, outcome ledger.ReservationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok || r.State != ledger.ReservationOpen {
		return leave.ErrUnknownReservation
	}
	r.State = outcome
	s.reservations[id] = r
	return nil
}

func (s *LedgerStore) AppendJournal(_ context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, e)
	return nil
}

func (s *LedgerStore) Journal(_ context.Context, employeeID string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range s.journal {
		if e.Key.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	return out, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestStore implements approval.RequestStore with CAS updates.
type RequestStore struct {
	mu       sync.RWMutex
	requests map[string]*leave.LeaveRequest
}

func NewRequestStore() *RequestStore {
	return &RequestStore{requests: make(map[string]*leave.LeaveRequest)}
}

func (s *RequestStore) Create(_ context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return leave.ErrConcurrentModification
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *RequestStore) Get(_ context.Context, id string) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, leave.ErrNotFound
	}
	return req.Clone(), nil
}

func (s *RequestStore) Update(_ context.Context, req *leave.LeaveRequest, expectedStatus leave.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[req.ID]
	if !ok {
		return leave.ErrNotFound
	}
	if current.Status != expectedStatus || current.Version != req.Version-1 {
		return leave.ErrConcurrentModification
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *RequestStore) ListByEmployee(_ context.Context, employeeID string) ([]*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*leave.LeaveRequest
	for _, req := range s.requests {
		if req.EmployeeID == employeeID {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// DIRECTORY AND REGISTRY
// =============================================================================

// Directory implements approval.EmployeeDirectory over a fixed map.
type Directory struct {
	mu        sync.RWMutex
	employees map[string]leave.Employee
}

func NewDirectory(employees ...leave.Employee) *Directory {
	d := &Directory{employees: make(map[string]leave.Employee)}
	for _, e := range employees {
		d.employees[e.ID] = e
	}
	return d
}

func (d *Directory) Add(e leave.Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ID] = e
}

func (d *Directory) Employee(_ context.Context, id string) (leave.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.employees[id]
	if !ok {
		return leave.Employee{}, leave.ErrNotFound
	}
	return e, nil
}

// Registry implements approval.TypeRegistry over a fixed map.
type Registry struct {
	mu    sync.RWMutex
	types map[string]leave.LeaveType
}

func NewRegistry(types ...leave.LeaveType) *Registry {
	r := &Registry{types: make(map[string]leave.LeaveType)}
	for _, t := range types {
		r.types[t.ID] = t
	}
	return r
}

func (r *Registry) Add(t leave.LeaveType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.ID] = t
}

func (r *Registry) LeaveType(_ context.Context, id string) (leave.LeaveType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	if !ok {
		return leave.LeaveType{}, leave.ErrNotFound
	}
	return t, nil
}
