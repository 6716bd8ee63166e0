package mcpmgr

import (
	"sync"

	"github.com/google/uuid"
)

// handles are the resources owned by a connected server.
type handles struct {
	session   ToolSession
	transport *TransportHandle
	// release cancels the context the session was opened under.
	release func()
}

// inflight identifies the connect attempt currently responsible for a record.
type inflight struct {
	id    string
	abort func()
}

// serverRecord is never mutated after it is stored; every write replaces the
// record pointer under the registry lock.
type serverRecord struct {
	name    string
	config  ServerConfig
	enabled bool
	status  Status
	conn    *handles // non-nil iff status is Connected
	attempt *inflight
}

func (r *serverRecord) info() ServerInfo {
	return ServerInfo{
		Name:      r.name,
		Config:    r.config,
		Status:    r.status,
		Transport: TransportOf(r.config),
		Enabled:   r.enabled,
	}
}

func initialStatus(enabled bool) Status {
	if enabled {
		return Connecting{}
	}
	return Disabled{}
}

// registry maps server names to records in insertion order. Reads are safe to
// interleave with writes for any name.
type registry struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*serverRecord
}

func newRegistry() *registry {
	return &registry{records: make(map[string]*serverRecord)}
}

// put inserts or replaces the record for name and returns whatever the
// previous record still owned.
func (r *registry) put(name string, cfg ServerConfig) (*serverRecord, *handles, *inflight) {
	enabled := cfg.IsEnabled()
	rec := &serverRecord{
		name:    name,
		config:  cfg,
		enabled: enabled,
		status:  initialStatus(enabled),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.records[name]
	if !ok {
		r.order = append(r.order, name)
	}
	r.records[name] = rec
	if !ok {
		return rec, nil, nil
	}
	return rec, prev.conn, prev.attempt
}

func (r *registry) get(name string) (*serverRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

func (r *registry) snapshot() []*serverRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*serverRecord, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.records[name])
	}
	return out
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

type attemptStart struct {
	id       string
	config   ServerConfig
	disabled bool
	previous *handles
	replaced *inflight
}

// begin moves name to Connecting under a fresh attempt id. A disabled record
// is left untouched.
func (r *registry) begin(name string, abort func()) (attemptStart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[name]
	if !ok {
		return attemptStart{}, &UnknownServerError{Server: name}
	}
	if !cur.enabled {
		return attemptStart{disabled: true, config: cur.config}, nil
	}
	next := *cur
	next.status = Connecting{}
	next.conn = nil
	next.attempt = &inflight{id: uuid.NewString(), abort: abort}
	r.records[name] = &next
	return attemptStart{
		id:       next.attempt.id,
		config:   cur.config,
		previous: cur.conn,
		replaced: cur.attempt,
	}, nil
}

// finish records the outcome of attempt id. It reports false, recording
// nothing, when the attempt was superseded or the record removed; the
// returned status is then whatever the record currently holds.
func (r *registry) finish(name, id string, status Status, conn *handles) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[name]
	if !ok {
		return failedWith(ErrServerRemoved), false
	}
	if cur.attempt == nil || cur.attempt.id != id {
		return cur.status, false
	}
	next := *cur
	next.status = status
	next.conn = conn
	next.attempt = nil
	r.records[name] = &next
	return status, true
}

// detach strips the handles of name and abandons any in-flight attempt. A
// record that was connected or connecting under an attempt becomes Failed.
func (r *registry) detach(name string) (conn *handles, attempt *inflight, status Status, changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[name]
	if !ok {
		return nil, nil, nil, false, &UnknownServerError{Server: name}
	}
	if cur.conn == nil && cur.attempt == nil {
		return nil, nil, cur.status, false, nil
	}
	next := *cur
	next.conn = nil
	next.attempt = nil
	next.status = failedWith(ErrDisconnected)
	r.records[name] = &next
	return cur.conn, cur.attempt, next.status, true, nil
}

// enable sets the effective enabled flag and reports whether the record was
// Disabled beforehand.
func (r *registry) enable(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[name]
	if !ok {
		return false, &UnknownServerError{Server: name}
	}
	_, wasDisabled := cur.status.(Disabled)
	if cur.enabled {
		return wasDisabled, nil
	}
	next := *cur
	next.enabled = true
	r.records[name] = &next
	return wasDisabled, nil
}

// disable forces name to Disabled, returning anything it owned.
func (r *registry) disable(name string) (conn *handles, attempt *inflight, changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[name]
	if !ok {
		return nil, nil, false, &UnknownServerError{Server: name}
	}
	_, wasDisabled := cur.status.(Disabled)
	next := *cur
	next.enabled = false
	next.status = Disabled{}
	next.conn = nil
	next.attempt = nil
	r.records[name] = &next
	return cur.conn, cur.attempt, !wasDisabled, nil
}

// session returns the live session of a connected server.
func (r *registry) session(name string) (ToolSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cur, ok := r.records[name]
	if !ok {
		return nil, &ToolNotConnectedError{Server: name}
	}
	if _, connected := cur.status.(Connected); !connected || cur.conn == nil {
		return nil, &ToolNotConnectedError{Server: name, Status: cur.status.Kind()}
	}
	return cur.conn.session, nil
}

// clear empties the registry and returns the handles and attempts that were
// still live.
func (r *registry) clear() ([]*handles, []*inflight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var conns []*handles
	var attempts []*inflight
	for _, name := range r.order {
		rec := r.records[name]
		if rec.conn != nil {
			conns = append(conns, rec.conn)
		}
		if rec.attempt != nil {
			attempts = append(attempts, rec.attempt)
		}
	}
	r.order = nil
	r.records = make(map[string]*serverRecord)
	return conns, attempts
}
