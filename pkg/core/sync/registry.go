package sync

import (
	gosync "sync"

	"github.com/google/uuid"
)

// Registry tracks companies with a sync in flight, so overlapping triggers
// for the same company collapse into one run.
type Registry struct {
	mu   gosync.Mutex
	jobs map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: map[string]string{}}
}

// Begin registers a sync for corpCode and returns its job id. ok is false
// when a sync for the company is already running.
func (r *Registry) Begin(corpCode string) (jobID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, exists := r.jobs[corpCode]; exists {
		return id, false
	}
	id := uuid.NewString()
	r.jobs[corpCode] = id
	return id, true
}

// Finish releases the company's slot.
func (r *Registry) Finish(corpCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, corpCode)
}

// InFlight lists the companies currently being synced.
func (r *Registry) InFlight() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.jobs))
	for code := range r.jobs {
		out = append(out, code)
	}
	return out
}
