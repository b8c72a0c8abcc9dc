// Package jobs tracks active fetch jobs for the lifetime of the process.
package jobs

import (
	"sync"

	"github.com/karlosatvar19/movies-app/internal/logger"
)

// Registry is a mutex-guarded set of active job identifiers. It is shared
// between long-running orchestrator goroutines and inbound cancellation
// requests; nothing is persisted. All operations are total: there are no
// error conditions over the identifier space.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
	logger logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		active: make(map[string]struct{}),
		logger: log,
	}
}

// Register marks jobID active. Registering an already-active job is a no-op.
func (r *Registry) Register(jobID string) {
	r.mu.Lock()
	r.active[jobID] = struct{}{}
	r.mu.Unlock()

	r.logger.Info("Job registered", logger.String("job_id", jobID))
}

// IsActive reports whether jobID is currently registered.
func (r *Registry) IsActive(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.active[jobID]
	return ok
}

// Cancel deactivates jobID and returns true if it was active, false
// otherwise. Cancellation is advisory: the orchestrator observes it at its
// next cooperative check, in-flight calls are not interrupted.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	_, ok := r.active[jobID]
	if ok {
		delete(r.active, jobID)
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("Job cancelled", logger.String("job_id", jobID))
	}
	return ok
}

// Remove unconditionally deactivates jobID. Removing an unknown job is a
// no-op.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	delete(r.active, jobID)
	r.mu.Unlock()

	r.logger.Info("Job removed", logger.String("job_id", jobID))
}

// ActiveJobs returns a snapshot of the active job identifiers. Later
// registry changes do not affect the returned slice.
func (r *Registry) ActiveJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}
