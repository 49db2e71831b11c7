package requestlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/getmockd/wiretap/pkg/codec"
	"github.com/getmockd/wiretap/pkg/logging"
	"github.com/getmockd/wiretap/pkg/metrics"
	"github.com/getmockd/wiretap/pkg/recording"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxRequestCount = 100
	DefaultQueueSize       = 1024
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("requestlog: store closed")
	// ErrInvalidCapacity is returned for a non-positive capacity.
	ErrInvalidCapacity = errors.New("requestlog: capacity must be positive")
)

// Options configures a Store.
type Options struct {
	// MaxRequestCount bounds the number of retained records. Default 100.
	MaxRequestCount int
	// QueueSize bounds pending mutations. Default 1024.
	QueueSize int
	// Persister stores snapshots. Defaults to an in-memory persister.
	Persister Persister
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opClear
	opResize
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	case opClear:
		return "clear"
	case opResize:
		return "resize"
	default:
		return "barrier"
	}
}

type op struct {
	kind opKind
	rec  recording.Record
	comp recording.Completion
	n    int
	done chan error
}

// Store is the bounded, persisted, newest-first log of records.
type Store struct {
	persister Persister
	log       *slog.Logger
	metrics   *metrics.Metrics

	// ops is never closed. Senders select on closing instead, so none of
	// them holds a lock while waiting for room in the queue.
	ops       chan op
	closing   chan struct{} // closed by Close
	closedCh  chan struct{} // closed when the consumer has exited
	closeOnce sync.Once

	loadOnce sync.Once

	mu      sync.RWMutex
	records []recording.Record
	max     int

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}
}

// New creates a Store and starts its consumer goroutine. The persisted
// collection is not read until the store is first used.
func New(opts Options) *Store {
	if opts.MaxRequestCount <= 0 {
		opts.MaxRequestCount = DefaultMaxRequestCount
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Persister == nil {
		opts.Persister = NewMemoryPersister()
	}

	s := &Store{
		persister:   opts.Persister,
		log:         logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		ops:         make(chan op, opts.QueueSize),
		closing:     make(chan struct{}),
		closedCh:    make(chan struct{}),
		records:     make([]recording.Record, 0, opts.MaxRequestCount),
		max:         opts.MaxRequestCount,
		subscribers: make(map[Subscriber]struct{}),
	}
	go s.run()
	return s
}

// Insert queues rec for insertion at the front of the log. It never blocks;
// if the queue is full the record is dropped.
func (s *Store) Insert(rec recording.Record) {
	s.trySend(op{kind: opInsert, rec: rec.Clone()})
}

// ApplyUpdate queues a completion for the record with the same id. Unknown
// ids are ignored when the update is applied.
func (s *Store) ApplyUpdate(c recording.Completion) {
	s.trySend(op{kind: opUpdate, comp: c})
}

// Clear empties the log and persists the empty collection. It returns once
// the clear has been applied.
func (s *Store) Clear() error {
	return s.send(context.Background(), op{kind: opClear})
}

// SetMaxRequestCount changes the capacity. Records beyond the new bound are
// dropped immediately, oldest first.
func (s *Store) SetMaxRequestCount(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, n)
	}
	return s.send(context.Background(), op{kind: opResize, n: n})
}

// MaxRequestCount returns the current capacity.
func (s *Store) MaxRequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.max
}

// Sync waits until every mutation queued before the call has been applied.
func (s *Store) Sync(ctx context.Context) error {
	return s.send(ctx, op{kind: opBarrier})
}

// GetAll returns a snapshot of every record, newest first.
func (s *Store) GetAll() []recording.Record {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.records)
}

// Filter returns the records matching text, newest first. See Matches.
func (s *Store) Filter(text string) []recording.Record {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(filterRecords(s.records, text))
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (recording.Record, bool) {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return recording.Record{}, false
}

// Count returns the number of records held.
func (s *Store) Count() int {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Export encodes the current snapshot with the persistence codec.
func (s *Store) Export() ([]byte, error) {
	return codec.Encode(s.GetAll())
}

// Close applies every queued mutation, stops the consumer and releases the
// persister. Later mutations are dropped.
func (s *Store) Close() error {
	first := false
	s.closeOnce.Do(func() {
		first = true
		close(s.closing)
	})
	<-s.closedCh
	if !first {
		return nil
	}

	s.subMu.Lock()
	for sub := range s.subscribers {
		close(sub)
	}
	s.subscribers = nil
	s.subMu.Unlock()

	if c, ok := s.persister.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

func (s *Store) trySend(o op) {
	if s.isClosing() {
		s.log.Debug("store closed, dropping operation", "op", o.kind.String())
		return
	}
	select {
	case s.ops <- o:
	default:
		s.metrics.OpDropped(o.kind.String())
		s.log.Warn("request log queue full, dropping operation", "op", o.kind.String(), "id", o.id())
	}
}

func (s *Store) send(ctx context.Context, o op) error {
	o.done = make(chan error, 1)

	if s.isClosing() {
		return ErrClosed
	}
	select {
	case s.ops <- o:
	case <-s.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-o.done:
		return err
	case <-s.closedCh:
		// Enqueued as the consumer drained for the last time.
		select {
		case err := <-o.done:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o op) id() string {
	if o.kind == opInsert {
		return o.rec.ID
	}
	return o.comp.ID
}

// run is the single consumer applying queued mutations in order.
func (s *Store) run() {
	defer close(s.closedCh)
	s.ensureLoaded()
	for {
		select {
		case o := <-s.ops:
			s.handle(o)
		case <-s.closing:
			for {
				select {
				case o := <-s.ops:
					s.handle(o)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) handle(o op) {
	err := s.apply(o)
	if o.done != nil {
		o.done <- err
	}
}

func (s *Store) apply(o op) error {
	var (
		ev      Event
		changed bool
	)

	s.mu.Lock()
	switch o.kind {
	case opInsert:
		s.records = append(s.records, recording.Record{})
		copy(s.records[1:], s.records)
		s.records[0] = o.rec
		s.trimLocked()
		ev, changed = Event{Type: EventInserted, ID: o.rec.ID}, true

	case opUpdate:
		changed = s.updateLocked(o.comp)
		ev = Event{Type: EventUpdated, ID: o.comp.ID}

	case opClear:
		s.records = make([]recording.Record, 0, s.max)
		ev, changed = Event{Type: EventCleared}, true

	case opResize:
		s.max = o.n
		changed = s.trimLocked() > 0
		ev = Event{Type: EventTrimmed}

	case opBarrier:
	}
	ev.Count = len(s.records)
	var snapshot []recording.Record
	if changed {
		snapshot = append([]recording.Record(nil), s.records...)
	}
	s.mu.Unlock()

	if !changed {
		return nil
	}
	s.metrics.StoreSize(ev.Count)
	s.persist(snapshot)
	s.notify(ev)
	return nil
}

// updateLocked applies c to the matching pending record in place.
func (s *Store) updateLocked(c recording.Completion) bool {
	for i := range s.records {
		if s.records[i].ID != c.ID {
			continue
		}
		if s.records[i].IsCompleted() {
			s.log.Debug("record already completed, ignoring update", "id", c.ID)
			return false
		}
		s.records[i] = s.records[i].Apply(c)
		return true
	}
	s.metrics.CorrelationMiss()
	return false
}

// trimLocked drops the oldest records beyond capacity and returns how many
// were dropped.
func (s *Store) trimLocked() int {
	if len(s.records) <= s.max {
		return 0
	}
	dropped := len(s.records) - s.max
	clear(s.records[s.max:])
	s.records = s.records[:s.max]
	return dropped
}

// persist saves the snapshot. Failures are logged; the in-memory state is
// kept regardless.
func (s *Store) persist(records []recording.Record) {
	start := time.Now()
	data, err := codec.Encode(records)
	if err == nil {
		err = s.persister.Save(context.Background(), data)
	}
	s.metrics.Persisted(time.Since(start), err)
	if err != nil {
		s.log.Warn("failed to persist request log", "error", err, "records", len(records))
	}
}

func (s *Store) ensureLoaded() {
	s.loadOnce.Do(s.load)
}

// load reads the persisted collection, restores newest-first order and the
// capacity bound, and saves the result back if anything was trimmed.
func (s *Store) load() {
	data, err := s.persister.Load(context.Background())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("failed to read request log, starting empty", "error", err)
		}
		return
	}
	records, err := codec.Decode(data)
	if err != nil {
		s.log.Warn("failed to decode request log, starting empty", "error", err)
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ObservedAt.After(records[j].ObservedAt)
	})

	s.mu.Lock()
	s.records = records
	trimmed := s.trimLocked()
	count := len(s.records)
	snapshot := append([]recording.Record(nil), s.records...)
	s.mu.Unlock()

	s.log.Debug("request log loaded", "records", count, "trimmed", trimmed)
	s.metrics.StoreSize(count)
	if trimmed > 0 {
		s.persist(snapshot)
	}
	s.notify(Event{Type: EventLoaded, Count: count})
}

func cloneAll(records []recording.Record) []recording.Record {
	out := make([]recording.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
