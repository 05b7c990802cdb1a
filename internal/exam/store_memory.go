package exam

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-memory Store used by tests and offline tooling.
type MemoryStore struct {
	mu        sync.RWMutex
	exams     map[string]Exam
	sheets    map[string]Sheet
	sheetSeq  []string // upload order
	responses map[string]Response
	respSeq   int64
	sessions  map[string]GradingSession
	models    map[string]Model
	trainings map[string]TrainingSession
	samples   map[string]ModerationSample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		exams:     map[string]Exam{},
		sheets:    map[string]Sheet{},
		responses: map[string]Response{},
		sessions:  map[string]GradingSession{},
		models:    map[string]Model{},
		trainings: map[string]TrainingSession{},
		samples:   map[string]ModerationSample{},
	}
}

func (m *MemoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	m.exams[e.ID] = e
	return nil
}

func (m *MemoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) SetExamGradingActive(_ context.Context, examID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return ErrNotFound
	}
	e.GradingActive = active
	m.exams[examID] = e
	return nil
}

func (m *MemoryStore) PutSheet(_ context.Context, s Sheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().Unix()
	}
	if _, ok := m.sheets[s.ID]; !ok {
		m.sheetSeq = append(m.sheetSeq, s.ID)
	}
	m.sheets[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSheet(_ context.Context, id string) (Sheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sheets[id]
	if !ok {
		return Sheet{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListSheets(_ context.Context, examID string, statuses ...SheetStatus) ([]Sheet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := map[SheetStatus]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	var out []Sheet
	for _, id := range m.sheetSeq {
		s := m.sheets[id]
		if s.ExamID != examID {
			continue
		}
		if len(want) > 0 && !want[s.Status] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryStore) SetSheetStatus(_ context.Context, sheetID string, status SheetStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sheets[sheetID]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	m.sheets[sheetID] = s
	return nil
}

func (m *MemoryStore) FinishSheet(_ context.Context, sheetID string, total, percentage float64, letter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sheets[sheetID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().Unix()
	s.Status = SheetGraded
	s.TotalScore = total
	s.Percentage = percentage
	s.LetterGrade = letter
	s.GradedAt = &now
	m.sheets[sheetID] = s
	return nil
}

func (m *MemoryStore) PutResponse(_ context.Context, r Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, old := range m.responses {
		if old.SheetID == r.SheetID && old.QuestionID == r.QuestionID {
			if old.Overridden() {
				return nil // teacher override wins over automated rewrite
			}
			r.ID = old.ID
			r.CreatedAt = old.CreatedAt
			m.responses[id] = r
			return nil
		}
	}
	if r.CreatedAt == 0 {
		m.respSeq++
		r.CreatedAt = m.respSeq
	}
	m.responses[r.ID] = r
	return nil
}

func (m *MemoryStore) GetResponse(_ context.Context, id string) (Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.responses[id]
	if !ok {
		return Response{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ResponsesForSheet(_ context.Context, sheetID string) ([]Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Response
	for _, r := range m.responses {
		if r.SheetID == sheetID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (m *MemoryStore) ResponsesNeedingReview(_ context.Context, examID string, opts ReviewOpts) ([]Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Response
	for _, r := range m.responses {
		if r.ExamID != examID || !r.NeedsReview {
			continue
		}
		if opts.QuestionID != "" && r.QuestionID != opts.QuestionID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence < out[j].Confidence
		}
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ApplyOverride(_ context.Context, responseID string, ov Override) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[responseID]
	if !ok {
		return Response{}, ErrNotFound
	}
	now := time.Now().Unix()
	r.OverrideScore = ov.Score
	if ov.Comment != "" {
		c := ov.Comment
		r.OverrideComment = &c
	}
	nr := ov.NeedsReview
	r.OverrideNeedsReview = &nr
	by := ov.By
	r.OverrideBy = &by
	r.ReviewedAt = &now
	r.NeedsReview = ov.NeedsReview
	m.responses[responseID] = r
	return r, nil
}

func (m *MemoryStore) ApproveHighConfidence(_ context.Context, examID string, minConfidence float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, r := range m.responses {
		if r.ExamID != examID || !r.NeedsReview || r.Overridden() {
			continue
		}
		if r.Confidence >= minConfidence {
			r.NeedsReview = false
			m.responses[id] = r
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s GradingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.StartedAt == 0 {
		s.StartedAt = time.Now().Unix()
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (GradingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return GradingSession{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) LatestSession(_ context.Context, examID string) (GradingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest GradingSession
	found := false
	for _, s := range m.sessions {
		if s.ExamID != examID {
			continue
		}
		if !found || s.StartedAt > latest.StartedAt {
			latest = s
			found = true
		}
	}
	if !found {
		return GradingSession{}, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) SetSessionStatus(_ context.Context, id string, status SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) UpdateSessionProgress(_ context.Context, id string, processed, graded int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Processed = processed
	s.Graded = graded
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) FinishSession(_ context.Context, id string, status SessionStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().Unix()
	s.Status = status
	s.Error = errMsg
	s.FinishedAt = &now
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) PutModel(_ context.Context, mo Model) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mo.CreatedAt == 0 {
		mo.CreatedAt = time.Now().Unix()
	}
	m.models[mo.ID] = mo
	return nil
}

func (m *MemoryStore) ActivateModel(_ context.Context, examID, modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.models[modelID]
	if !ok || target.ExamID != examID {
		return ErrNotFound
	}
	for id, mo := range m.models {
		if mo.ExamID != examID {
			continue
		}
		mo.Active = id == modelID
		m.models[id] = mo
	}
	return nil
}

func (m *MemoryStore) ActiveModel(_ context.Context, examID string) (Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mo := range m.models {
		if mo.ExamID == examID && mo.Active {
			return mo, nil
		}
	}
	return Model{}, ErrNotFound
}

func (m *MemoryStore) ListModels(_ context.Context, examID string) ([]Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Model
	for _, mo := range m.models {
		if mo.ExamID == examID {
			out = append(out, mo)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *MemoryStore) NextModelVersion(_ context.Context, examID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, mo := range m.models {
		if mo.ExamID == examID && mo.Version > max {
			max = mo.Version
		}
	}
	return max + 1, nil
}

func (m *MemoryStore) CreateTrainingSession(_ context.Context, s TrainingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.StartedAt == 0 {
		s.StartedAt = time.Now().Unix()
	}
	m.trainings[s.ID] = s
	return nil
}

func (m *MemoryStore) FinishTrainingSession(_ context.Context, id string, status TrainingStatus, metricsJSON, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.trainings[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().Unix()
	s.Status = status
	s.MetricsJSON = metricsJSON
	s.Error = errMsg
	s.FinishedAt = &now
	m.trainings[id] = s
	return nil
}

// TrainingSession returns a training session by id. Not part of the Store
// interface; used by tests to inspect final status.
func (m *MemoryStore) TrainingSession(id string) (TrainingSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.trainings[id]
	return s, ok
}

func (m *MemoryStore) PutModerationSample(_ context.Context, s ModerationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().Unix()
	}
	m.samples[s.ID] = s
	return nil
}

func (m *MemoryStore) VerifiedSamples(_ context.Context, examID string) ([]ModerationSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ModerationSample
	for _, s := range m.samples {
		if s.ExamID == examID && s.Verified {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}
