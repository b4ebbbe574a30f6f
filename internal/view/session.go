// Package view owns one loaded snapshot of the console's data: the
// normalized record stream plus the reference caches it resolves against.
// A session has a single logical owner; reloads replace the snapshot
// wholesale, and a superseded or cancelled load never commits its partial
// results.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/wealthops/engine/internal/domain"
	"github.com/wealthops/engine/internal/normalize"
	"github.com/wealthops/engine/internal/refcache"
)

// ErrSuperseded is returned by a load that finished after a newer load had
// already started; its results are discarded.
var ErrSuperseded = errors.New("load superseded by a newer reload")

// ErrNotLoaded is returned when a query arrives before the first
// successful load.
var ErrNotLoaded = errors.New("no snapshot loaded yet")

// Fetcher is the slice of the backend client the session pulls the four
// kind streams through.
type Fetcher interface {
	ListTrades(ctx context.Context, skip, limit int, accountID *int64) ([]json.RawMessage, error)
	ListCashJournals(ctx context.Context, skip, limit int, accountID *int64) ([]json.RawMessage, error)
	ListFxTransactions(ctx context.Context, skip, limit int, accountID *int64) ([]json.RawMessage, error)
	ListCorporateActions(ctx context.Context, skip, limit int, accountID *int64) ([]json.RawMessage, error)
}

// ReferenceLoader builds a fresh reference set. *refcache.Builder is the
// production implementation.
type ReferenceLoader interface {
	Build(ctx context.Context) (*domain.ReferenceSet, error)
}

// Snapshot is an immutable view of one completed load. Query passes read
// it without locks.
type Snapshot struct {
	Generation uint64
	Records    []domain.TaggedRecord
	Refs       *domain.ReferenceSet
	LoadedAt   time.Time
}

// FindRecord looks a record up by its stream id.
func (s *Snapshot) FindRecord(id string) (domain.TaggedRecord, bool) {
	for _, rec := range s.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return domain.TaggedRecord{}, false
}

// Status describes the session for the UI's per-section error states.
type Status struct {
	Generation  uint64    `json:"generation"`
	Loaded      bool      `json:"loaded"`
	LoadedAt    time.Time `json:"loadedAt,omitempty"`
	RecordCount int       `json:"recordCount"`
	Assets      int       `json:"assets"`
	Accounts    int       `json:"accounts"`
	Portfolios  int       `json:"portfolios"`
	Users       int       `json:"users"`
	Dropped     int       `json:"dropped"`
	LastError   string    `json:"lastError,omitempty"`
}

type Session struct {
	fetcher   Fetcher
	refLoader ReferenceLoader
	batchSize int
	maxItems  int
	accountID *int64

	mu         sync.Mutex
	snap       *Snapshot
	generation uint64
	cancelLoad context.CancelFunc
	lastErr    error
	lastReport normalize.Report
}

type SessionOption func(*Session)

// WithBatchSize sets the page size used when draining the kind endpoints.
func WithBatchSize(size int) SessionOption {
	return func(s *Session) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithMaxItems caps how many records one kind drain may accumulate.
func WithMaxItems(max int) SessionOption {
	return func(s *Session) {
		if max > 0 {
			s.maxItems = max
		}
	}
}

// WithAccountScope restricts the kind fetchers to a single account.
func WithAccountScope(accountID int64) SessionOption {
	return func(s *Session) {
		s.accountID = &accountID
	}
}

func NewSession(fetcher Fetcher, refLoader ReferenceLoader, opts ...SessionOption) *Session {
	session := &Session{
		fetcher:   fetcher,
		refLoader: refLoader,
		batchSize: refcache.DefaultBatchSize,
		maxItems:  refcache.DefaultMaxItems,
	}
	for _, opt := range opts {
		opt(session)
	}
	return session
}

// Snapshot returns the last committed snapshot. It reports false before
// the first successful load; queries against a loading session answer from
// the previous snapshot, or not at all.
func (s *Session) Snapshot() (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.snap != nil
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{Generation: s.generation}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	status.Dropped = s.lastReport.Unmatched + s.lastReport.Ambiguous + s.lastReport.Malformed
	if s.snap != nil {
		status.Loaded = true
		status.LoadedAt = s.snap.LoadedAt
		status.RecordCount = len(s.snap.Records)
		status.Assets = len(s.snap.Refs.Assets)
		status.Accounts = len(s.snap.Refs.Accounts)
		status.Portfolios = len(s.snap.Refs.Portfolios)
		status.Users = len(s.snap.Refs.Users)
	}
	return status
}

// Load fetches the four kind streams and the reference caches concurrently,
// normalizes, and commits a fresh snapshot. Starting a new load cancels any
// load still in flight; the older load returns ErrSuperseded and leaves the
// previous snapshot untouched (last-good policy, same as a failed load).
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	generation := s.generation
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.mu.Unlock()
	defer cancel()

	var (
		wg       sync.WaitGroup
		refs     *domain.ReferenceSet
		refsErr  error
		raw      [4][]json.RawMessage
		fetchErr [4]error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		refs, refsErr = s.refLoader.Build(loadCtx)
	}()

	fetchers := [4]func(context.Context, int, int, *int64) ([]json.RawMessage, error){
		s.fetcher.ListTrades,
		s.fetcher.ListCashJournals,
		s.fetcher.ListFxTransactions,
		s.fetcher.ListCorporateActions,
	}
	for i, fetch := range fetchers {
		wg.Add(1)
		go func(slot int, fetch func(context.Context, int, int, *int64) ([]json.RawMessage, error)) {
			defer wg.Done()
			raw[slot], fetchErr[slot] = refcache.Drain(loadCtx,
				func(ctx context.Context, skip, limit int) ([]json.RawMessage, error) {
					return fetch(ctx, skip, limit, s.accountID)
				}, s.batchSize, s.maxItems)
		}(i, fetch)
	}
	wg.Wait()

	loadErr := refsErr
	for _, err := range fetchErr[:] {
		if loadErr == nil && err != nil {
			loadErr = err
		}
	}
	if loadErr != nil {
		s.mu.Lock()
		if s.generation == generation {
			s.lastErr = loadErr
		}
		s.mu.Unlock()
		return loadErr
	}

	records, report := normalize.Normalize(raw[0], raw[1], raw[2], raw[3])
	if !report.Empty() {
		// Reported once per load, not per record.
		log.Printf("[VIEW] dropped defective records during normalization: %s", report)
	}

	snapshot := &Snapshot{
		Generation: generation,
		Records:    records,
		Refs:       refs,
		LoadedAt:   time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return ErrSuperseded
	}
	s.snap = snapshot
	s.lastErr = nil
	s.lastReport = report
	return nil
}

// Close cancels any in-flight load.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
}
