package biometric

import (
	"sort"
	"sync"

	"github.com/pulse-dna/PulseDNA/internal/model"
)

// TemplateRegistry owns the set of enrolled templates for the lifetime
// of the process. It is an explicitly constructed value passed into the
// matcher and service, never ambient package state. All access is
// serialized; callers receive copies so templates are never mutated in
// place.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]model.BiometricTemplate
}

// NewTemplateRegistry returns an empty registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]model.BiometricTemplate),
	}
}

// Add registers a template, replacing any prior template for the same
// user.
func (r *TemplateRegistry) Add(t *model.BiometricTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.UserID] = *t
}

// Delete removes a template. Subsequent matches simply skip it.
// Returns false when no template exists for the user.
func (r *TemplateRegistry) Delete(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[userID]; !ok {
		return false
	}
	delete(r.templates, userID)
	return true
}

// Export returns the serializable record for one enrolled user.
func (r *TemplateRegistry) Export(userID string) (*model.BiometricTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[userID]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}

// Import re-ingests a previously exported record, typically at process
// start. Returns false for records too malformed to match against.
func (r *TemplateRegistry) Import(t *model.BiometricTemplate) bool {
	if t == nil || t.UserID == "" {
		return false
	}
	if t.ConfidenceThreshold < minTemplateThreshold || t.ConfidenceThreshold > maxTemplateThreshold {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.UserID] = *t
	return true
}

// Count reports the number of enrolled templates.
func (r *TemplateRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Snapshot returns a copy of every enrolled template ordered by
// enrollment time (then user ID for a stable order). Scoring runs over
// the snapshot outside the registry lock.
func (r *TemplateRegistry) Snapshot() []model.BiometricTemplate {
	r.mu.RLock()
	out := make([]model.BiometricTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
