// Package middleware implements the fixed request pipeline: request id,
// user-agent parsing, flash buffer, session resolution, CSRF, rate
// limiting, and the metrics/access-log wrapper. Stages communicate through
// the request context and the per-request kvLog.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cloudykangaroo/orchestrate/internal/auth"
)

type contextKey string

const (
	recordKey   contextKey = "request_record"
	identityKey contextKey = "identity"
	csrfKey     contextKey = "csrf_token"
)

// ClientInfo holds the parsed user-agent fields attached to every request.
type ClientInfo struct {
	Source   string
	OS       string
	Browser  string
	Version  string
	Platform string
	Bot      bool
	Mobile   bool
	Desktop  bool
}

// Record is the per-request transient state: the generated id, the start
// timestamp, the parsed user-agent fields and the accumulating
// structured-log field map. The completion hook creates it and shares the
// pointer through the context so inner stages populate it in place; it is
// owned by exactly one request and dropped when the response finishes.
type Record struct {
	Start time.Time

	mu     sync.Mutex
	id     string
	route  string
	client ClientInfo
	kvLog  map[string]interface{}
}

func newRecord() *Record {
	return &Record{
		Start: time.Now(),
		kvLog: make(map[string]interface{}),
	}
}

// SetID records the assigned request id.
func (r *Record) SetID(id string) {
	r.mu.Lock()
	r.id = id
	r.mu.Unlock()
}

// ID returns the assigned request id.
func (r *Record) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// SetRoute records the matched route's path template.
func (r *Record) SetRoute(route string) {
	r.mu.Lock()
	r.route = route
	r.mu.Unlock()
}

// Route returns the matched route template, or "" for unmatched requests.
func (r *Record) Route() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}

// SetClient records the parsed user-agent fields.
func (r *Record) SetClient(info ClientInfo) {
	r.mu.Lock()
	r.client = info
	r.mu.Unlock()
}

// Client returns the parsed user-agent fields.
func (r *Record) Client() ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// LogField adds a field to the request's kvLog. Keys already set by an
// earlier stage are left untouched; only the completion hook may overwrite,
// via finalField.
func (r *Record) LogField(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kvLog[key]; exists {
		return
	}
	r.kvLog[key] = value
}

// finalField sets a completion field (status, timing), overwriting any
// earlier value.
func (r *Record) finalField(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kvLog[key] = value
}

// Fields returns a copy of the accumulated kvLog.
func (r *Record) Fields() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]interface{}, len(r.kvLog))
	for k, v := range r.kvLog {
		out[k] = v
	}
	return out
}

// RequestRecord returns the pipeline record for the request, or nil when
// the request bypassed the pipeline (tests exercising bare handlers).
func RequestRecord(r *http.Request) *Record {
	rec, _ := r.Context().Value(recordKey).(*Record)
	return rec
}

func withRecord(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, recordKey, rec)
}

// IdentityFromRequest returns the authenticated identity, or nil.
func IdentityFromRequest(r *http.Request) *auth.Identity {
	id, _ := r.Context().Value(identityKey).(*auth.Identity)
	return id
}

func withIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// ClientInfoFromRequest returns the parsed user-agent fields.
func ClientInfoFromRequest(r *http.Request) ClientInfo {
	if rec := RequestRecord(r); rec != nil {
		return rec.Client()
	}
	return ClientInfo{}
}

// CSRFToken returns the per-session CSRF token issued for this request.
func CSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfKey).(string)
	return token
}

func withCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfKey, token)
}
