package work

import (
	"sort"
	"sync"
)

// Registry holds the jobs of the process by analysis name. Each run owns its
// state, so several analyses can coexist without sharing counters.
type Registry struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// Register adds a job to the registry.
// If a job with the same name already exists, it will be replaced.
func (r *Registry) Register(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.Name] = job
}

// Get returns a job by name, or nil if not found.
func (r *Registry) Get(name string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.jobs[name]
}

// Has returns true if a job with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.jobs[name]
	return exists
}

// List returns all jobs ordered by name.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Count returns the number of registered jobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.jobs)
}
