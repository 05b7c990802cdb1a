package review

import (
	"context"

	"github.com/icitysystems/academia-sub002/internal/config"
	"github.com/icitysystems/academia-sub002/internal/exam"
)

// Priority is the triage bucket, inverse to confidence: the less sure the
// classifier, the more attention the response needs.
type Priority string

const (
	PriorityLow    Priority = "LOW"    // auto-approvable
	PriorityMedium Priority = "MEDIUM" // quick review
	PriorityHigh   Priority = "HIGH"   // detailed review
)

// PriorityFor buckets a confidence value against the configured thresholds.
func PriorityFor(confidence float64, t config.Thresholds) Priority {
	switch {
	case confidence >= t.AutoApprove:
		return PriorityLow
	case confidence >= t.MediumReview:
		return PriorityMedium
	default:
		return PriorityHigh
	}
}

// Opts filters the review queue.
type Opts struct {
	Priority   Priority // optional bucket filter
	QuestionID string
	Limit      int
}

// Queue is the prioritized review listing: the (capped) ordered responses,
// the same responses grouped by bucket, and bucket counts over the full
// uncapped queue.
type Queue struct {
	Responses          []exam.Response              `json:"responses"`
	Grouped            map[Priority][]exam.Response `json:"grouped"`
	TotalNeedingReview int                          `json:"total_needing_review"`
	ByPriority         map[Priority]int             `json:"by_priority"`
}

type Service struct {
	store      exam.Store
	thresholds config.Thresholds
}

func NewService(store exam.Store, t config.Thresholds) *Service {
	return &Service{store: store, thresholds: t}
}

// ListNeedingReview returns responses flagged for review, most uncertain
// first, with counts per priority bucket computed before any cap.
func (s *Service) ListNeedingReview(ctx context.Context, examID string, opts Opts) (Queue, error) {
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return Queue{}, err
	}
	all, err := s.store.ResponsesNeedingReview(ctx, examID, exam.ReviewOpts{QuestionID: opts.QuestionID})
	if err != nil {
		return Queue{}, err
	}

	q := Queue{
		Grouped:    map[Priority][]exam.Response{},
		ByPriority: map[Priority]int{},
	}
	q.TotalNeedingReview = len(all)
	for _, r := range all {
		q.ByPriority[PriorityFor(r.Confidence, s.thresholds)]++
	}

	for _, r := range all {
		p := PriorityFor(r.Confidence, s.thresholds)
		if opts.Priority != "" && p != opts.Priority {
			continue
		}
		if opts.Limit > 0 && len(q.Responses) >= opts.Limit {
			break
		}
		q.Responses = append(q.Responses, r)
		q.Grouped[p] = append(q.Grouped[p], r)
	}
	return q, nil
}

// BatchApprove clears the review flag on every response at or above the
// auto-approve threshold that no teacher has touched. Zero matches is a
// normal outcome, not an error.
func (s *Service) BatchApprove(ctx context.Context, examID string) (int, error) {
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return 0, err
	}
	return s.store.ApproveHighConfidence(ctx, examID, s.thresholds.AutoApprove)
}

// Review applies a teacher's decision. This is the only path that clears
// needs_review below the auto-approve threshold, and once applied the
// response is closed to automated rewrites.
func (s *Service) Review(ctx context.Context, responseID string, ov exam.Override) (exam.Response, error) {
	if ov.By == "" {
		return exam.Response{}, exam.Validationf("reviewer identity required")
	}
	r, err := s.store.GetResponse(ctx, responseID)
	if err != nil {
		return exam.Response{}, err
	}
	if ov.Score != nil {
		ex, err := s.store.GetExam(ctx, r.ExamID)
		if err != nil {
			return exam.Response{}, err
		}
		q, ok := ex.Question(r.QuestionID)
		if !ok {
			return exam.Response{}, exam.Validationf("question %s no longer on exam %s", r.QuestionID, r.ExamID)
		}
		if *ov.Score < 0 || *ov.Score > q.Points {
			return exam.Response{}, exam.Validationf("override score %.2f outside [0, %.2f]", *ov.Score, q.Points)
		}
	}
	return s.store.ApplyOverride(ctx, responseID, ov)
}
