package grading

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/icitysystems/academia-sub002/internal/exam"
)

type loadedModel struct {
	modelID string
	version int
	model   *Model
}

// Registry holds the loaded model per exam. It replaces ambient process-wide
// model state with an explicit lifecycle: Sync pulls the store's active
// model in, Unload drops it, Active serves concurrent readers.
type Registry struct {
	mu     sync.RWMutex
	byExam map[string]loadedModel
}

func NewRegistry() *Registry {
	return &Registry{byExam: map[string]loadedModel{}}
}

// Sync loads the store's active model for the exam, replacing whatever was
// loaded before. A missing active model simply unloads; a corrupt artifact
// unloads and reports the error so the caller can log it — grading continues
// on the rule path either way.
func (r *Registry) Sync(ctx context.Context, store exam.Store, examID string) error {
	row, err := store.ActiveModel(ctx, examID)
	if errors.Is(err, exam.ErrNotFound) {
		r.Unload(examID)
		return nil
	}
	if err != nil {
		return err
	}
	m, err := LoadModel(row.ArtifactJSON)
	if err != nil {
		r.Unload(examID)
		log.Printf("grading: model %s (v%d) rejected, falling back to rules: %v", row.ID, row.Version, err)
		return err
	}
	r.mu.Lock()
	r.byExam[examID] = loadedModel{modelID: row.ID, version: row.Version, model: m}
	r.mu.Unlock()
	log.Printf("grading: model %s (v%d) active for exam %s", row.ID, row.Version, examID)
	return nil
}

func (r *Registry) Unload(examID string) {
	r.mu.Lock()
	delete(r.byExam, examID)
	r.mu.Unlock()
}

// Active returns the loaded model for the exam, if any.
func (r *Registry) Active(examID string) (*Model, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lm, ok := r.byExam[examID]
	if !ok {
		return nil, "", false
	}
	return lm.model, lm.modelID, true
}

// Loaded reports how many exam contexts currently hold a model.
func (r *Registry) Loaded() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byExam)
}
