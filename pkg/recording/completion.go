package recording

import (
	"container/list"
	"net/http"
	"sync"
	"time"
)

// Completion is the update instruction produced when a captured request
// finishes. It is applied to the record with the same ID exactly once.
type Completion struct {
	ID              string
	ResponseCode    *int
	ResponseHeaders map[string]string
	ResponseBody    []byte
	Duration        *time.Duration
	ErrorText       *string
}

// Outcome is what the transport produced for a captured request.
type Outcome struct {
	ID         string
	StatusCode *int
	Header     http.Header
	Body       []byte
	Err        error
}

// DefaultInflightLimit bounds the requests a Correlator tracks at once.
const DefaultInflightLimit = 4096

// Correlator tracks in-flight requests by correlation id and turns their
// outcomes into Completions. Each id resolves at most once.
//
// Tracking is bounded: a response whose body is dropped without being read
// to the end or closed never resolves, so once the limit is reached the
// oldest id is forgotten to make room.
type Correlator struct {
	mu       sync.Mutex
	inflight map[string]*list.Element
	order    *list.List // of inflightEntry, oldest first
	limit    int
	now      func() time.Time
}

type inflightEntry struct {
	id string
	at time.Time
}

// NewCorrelator creates an empty correlator tracking at most
// DefaultInflightLimit ids.
func NewCorrelator() *Correlator {
	return &Correlator{
		inflight: make(map[string]*list.Element),
		order:    list.New(),
		limit:    DefaultInflightLimit,
		now:      time.Now,
	}
}

// SetLimit changes how many ids are tracked, forgetting the oldest ones
// if more are in flight. Values below 1 are treated as 1.
func (c *Correlator) SetLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = max(n, 1)
	for c.order.Len() > c.limit {
		c.evictOldestLocked()
	}
}

// Observe registers id as in flight, observed at the given time. It returns
// the id that was forgotten to stay within the limit, or "".
func (c *Correlator) Observe(id string, at time.Time) (evicted string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.inflight[id]; ok {
		c.order.Remove(el)
	}
	c.inflight[id] = c.order.PushBack(inflightEntry{id: id, at: at})
	if c.order.Len() > c.limit {
		evicted = c.evictOldestLocked()
	}
	return evicted
}

func (c *Correlator) evictOldestLocked() string {
	el := c.order.Front()
	if el == nil {
		return ""
	}
	e := c.order.Remove(el).(inflightEntry)
	delete(c.inflight, e.id)
	return e.id
}

// Pending returns the number of observed ids not yet resolved.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Resolve builds the Completion for an outcome and forgets the id.
// The duration is the delta between the observation time and now.
// It returns false when the id was never observed, was already resolved
// or was forgotten.
func (c *Correlator) Resolve(o Outcome) (Completion, bool) {
	c.mu.Lock()
	el, ok := c.inflight[o.ID]
	var observedAt time.Time
	if ok {
		observedAt = c.order.Remove(el).(inflightEntry).at
		delete(c.inflight, o.ID)
	}
	c.mu.Unlock()

	if !ok {
		return Completion{}, false
	}

	elapsed := c.now().Sub(observedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return NewCompletion(o, &elapsed), true
}

// NewCompletion converts an outcome into a Completion. Missing headers
// default to an empty map; a non-nil error populates ErrorText.
func NewCompletion(o Outcome, duration *time.Duration) Completion {
	c := Completion{
		ID:              o.ID,
		ResponseHeaders: FlattenHeader(o.Header),
		ResponseBody:    o.Body,
		Duration:        duration,
	}
	if o.StatusCode != nil {
		code := *o.StatusCode
		c.ResponseCode = &code
	}
	if o.Err != nil {
		text := o.Err.Error()
		c.ErrorText = &text
	}
	return c
}
