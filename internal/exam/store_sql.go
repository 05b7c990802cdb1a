package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore persists grading state in sqlite or postgres. Nested structures
// (questions, regions, sample scores) are stored as JSON in TEXT columns.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	qj, err := json.Marshal(e.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams (id,title,questions_json,grading_active,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, questions_json=EXCLUDED.questions_json`,
		e.ID, e.Title, string(qj), e.GradingActive, time.Now().Unix())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,questions_json,grading_active,created_at FROM exams WHERE id=$1`, id)
	var e Exam
	var qjson string
	if err := row.Scan(&e.ID, &e.Title, &qjson, &e.GradingActive, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrNotFound
		}
		return Exam{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &e.Questions); err != nil {
		return Exam{}, fmt.Errorf("questions json: %w", err)
	}
	return e, nil
}

func (s *SQLStore) SetExamGradingActive(ctx context.Context, examID string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET grading_active=$1 WHERE id=$2`, active, examID)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *SQLStore) PutSheet(ctx context.Context, sh Sheet) error {
	rj, err := json.Marshal(sh.Regions)
	if err != nil {
		return err
	}
	if sh.Status == "" {
		sh.Status = SheetUploaded
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sheets (id,exam_id,student_ref,status,regions_json,total_score,percentage,letter_grade,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET student_ref=EXCLUDED.student_ref, status=EXCLUDED.status, regions_json=EXCLUDED.regions_json`,
		sh.ID, sh.ExamID, sh.StudentRef, string(sh.Status), string(rj), sh.TotalScore, sh.Percentage, sh.LetterGrade, time.Now().Unix())
	return err
}

func (s *SQLStore) GetSheet(ctx context.Context, id string) (Sheet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,exam_id,student_ref,status,regions_json,total_score,percentage,letter_grade,created_at,graded_at
		FROM sheets WHERE id=$1`, id)
	return scanSheet(row)
}

func (s *SQLStore) ListSheets(ctx context.Context, examID string, statuses ...SheetStatus) ([]Sheet, error) {
	q := `SELECT id,exam_id,student_ref,status,regions_json,total_score,percentage,letter_grade,created_at,graded_at
		FROM sheets WHERE exam_id=$1`
	args := []interface{}{examID}
	if len(statuses) > 0 {
		q += ` AND status IN (`
		for i, st := range statuses {
			if i > 0 {
				q += `,`
			}
			q += fmt.Sprintf("$%d", len(args)+1)
			args = append(args, string(st))
		}
		q += `)`
	}
	q += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sheet
	for rows.Next() {
		sh, err := scanSheet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetSheetStatus(ctx context.Context, sheetID string, status SheetStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sheets SET status=$1 WHERE id=$2`, string(status), sheetID)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *SQLStore) FinishSheet(ctx context.Context, sheetID string, total, percentage float64, letter string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sheets SET status=$1, total_score=$2, percentage=$3, letter_grade=$4, graded_at=$5 WHERE id=$6`,
		string(SheetGraded), total, percentage, letter, time.Now().Unix(), sheetID)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *SQLStore) PutResponse(ctx context.Context, r Response) error {
	// Keep teacher-reviewed rows untouched: the override wins over any later
	// automated write for the same (sheet, question).
	var existingID string
	var overrideBy sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, override_by FROM responses WHERE sheet_id=$1 AND question_id=$2`,
		r.SheetID, r.QuestionID).Scan(&existingID, &overrideBy)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, `INSERT INTO responses
			(id,sheet_id,exam_id,question_id,ordinal,extracted_text,label,confidence,assigned_score,explanation,needs_review,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			r.ID, r.SheetID, r.ExamID, r.QuestionID, r.Ordinal, r.ExtractedText,
			string(r.Label), r.Confidence, r.AssignedScore, r.Explanation, r.NeedsReview, time.Now().Unix())
		return err
	case err != nil:
		return err
	case overrideBy.Valid:
		return nil
	default:
		_, err = s.db.ExecContext(ctx, `UPDATE responses SET
			extracted_text=$1, label=$2, confidence=$3, assigned_score=$4, explanation=$5, needs_review=$6
			WHERE id=$7`,
			r.ExtractedText, string(r.Label), r.Confidence, r.AssignedScore, r.Explanation, r.NeedsReview, existingID)
		return err
	}
}

const responseCols = `id,sheet_id,exam_id,question_id,ordinal,extracted_text,label,confidence,assigned_score,explanation,needs_review,
	override_score,override_comment,override_needs_review,override_by,reviewed_at,created_at`

func (s *SQLStore) GetResponse(ctx context.Context, id string) (Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseCols+` FROM responses WHERE id=$1`, id)
	return scanResponse(row)
}

func (s *SQLStore) ResponsesForSheet(ctx context.Context, sheetID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+responseCols+` FROM responses WHERE sheet_id=$1 ORDER BY ordinal`, sheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ResponsesNeedingReview(ctx context.Context, examID string, opts ReviewOpts) ([]Response, error) {
	q := `SELECT ` + responseCols + ` FROM responses WHERE exam_id=$1 AND needs_review=TRUE`
	args := []interface{}{examID}
	if s.driver == "sqlite" {
		q = `SELECT ` + responseCols + ` FROM responses WHERE exam_id=$1 AND needs_review=1`
	}
	if opts.QuestionID != "" {
		q += fmt.Sprintf(" AND question_id=$%d", len(args)+1)
		args = append(args, opts.QuestionID)
	}
	q += ` ORDER BY confidence ASC, created_at ASC, ordinal ASC`
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ApplyOverride(ctx context.Context, responseID string, ov Override) (Response, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE responses SET
		override_score=$1, override_comment=$2, override_needs_review=$3, override_by=$4, reviewed_at=$5, needs_review=$6
		WHERE id=$7`,
		ov.Score, nullIfEmpty(ov.Comment), ov.NeedsReview, ov.By, time.Now().Unix(), ov.NeedsReview, responseID)
	if err != nil {
		return Response{}, err
	}
	if err := oneRow(res); err != nil {
		return Response{}, err
	}
	return s.GetResponse(ctx, responseID)
}

func (s *SQLStore) ApproveHighConfidence(ctx context.Context, examID string, minConfidence float64) (int, error) {
	q := `UPDATE responses SET needs_review=FALSE
		WHERE exam_id=$1 AND needs_review=TRUE AND confidence>=$2 AND override_by IS NULL`
	if s.driver == "sqlite" {
		q = `UPDATE responses SET needs_review=0
			WHERE exam_id=$1 AND needs_review=1 AND confidence>=$2 AND override_by IS NULL`
	}
	res, err := s.db.ExecContext(ctx, q, examID, minConfidence)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLStore) CreateSession(ctx context.Context, gs GradingSession) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO grading_sessions (id,exam_id,status,total,processed,graded,error,started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		gs.ID, gs.ExamID, string(gs.Status), gs.Total, gs.Processed, gs.Graded, gs.Error, time.Now().Unix())
	return err
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (GradingSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,exam_id,status,total,processed,graded,error,started_at,finished_at
		FROM grading_sessions WHERE id=$1`, id)
	return scanSession(row)
}

func (s *SQLStore) LatestSession(ctx context.Context, examID string) (GradingSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,exam_id,status,total,processed,graded,error,started_at,finished_at
		FROM grading_sessions WHERE exam_id=$1 ORDER BY started_at DESC, id DESC LIMIT 1`, examID)
	return scanSession(row)
}

func (s *SQLStore) SetSessionStatus(ctx context.Context, id string, status SessionStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE grading_sessions SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *SQLStore) UpdateSessionProgress(ctx context.Context, id string, processed, graded int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE grading_sessions SET processed=$1, graded=$2 WHERE id=$3`, processed, graded, id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *SQLStore) FinishSession(ctx context.Context, id string, status SessionStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE grading_sessions SET status=$1, error=$2, finished_at=$3 WHERE id=$4`,
		string(status), errMsg, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *SQLStore) PutModel(ctx context.Context, m Model) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO models (id,exam_id,version,accuracy,active,artifact_json,training_session_id,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.ExamID, m.Version, m.Accuracy, m.Active, m.ArtifactJSON, m.TrainingSessionID, time.Now().Unix())
	return err
}

func (s *SQLStore) ActivateModel(ctx context.Context, examID, modelID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE models SET active=FALSE WHERE exam_id=$1`, examID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE models SET active=TRUE WHERE id=$1 AND exam_id=$2`, modelID, examID)
	if err != nil {
		return err
	}
	if err := oneRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) ActiveModel(ctx context.Context, examID string) (Model, error) {
	q := `SELECT id,exam_id,version,accuracy,active,artifact_json,training_session_id,created_at
		FROM models WHERE exam_id=$1 AND active=TRUE`
	if s.driver == "sqlite" {
		q = `SELECT id,exam_id,version,accuracy,active,artifact_json,training_session_id,created_at
			FROM models WHERE exam_id=$1 AND active=1`
	}
	row := s.db.QueryRowContext(ctx, q, examID)
	return scanModel(row)
}

func (s *SQLStore) ListModels(ctx context.Context, examID string) ([]Model, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,exam_id,version,accuracy,active,artifact_json,training_session_id,created_at
		FROM models WHERE exam_id=$1 ORDER BY version`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) NextModelVersion(ctx context.Context, examID string) (int, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM models WHERE exam_id=$1`, examID).Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

func (s *SQLStore) CreateTrainingSession(ctx context.Context, ts TrainingSession) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO training_sessions (id,exam_id,status,config_json,metrics_json,error,started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ts.ID, ts.ExamID, string(ts.Status), ts.ConfigJSON, ts.MetricsJSON, ts.Error, time.Now().Unix())
	return err
}

func (s *SQLStore) FinishTrainingSession(ctx context.Context, id string, status TrainingStatus, metricsJSON, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE training_sessions SET status=$1, metrics_json=$2, error=$3, finished_at=$4 WHERE id=$5`,
		string(status), metricsJSON, errMsg, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return oneRow(res)
}

func (s *SQLStore) PutModerationSample(ctx context.Context, ms ModerationSample) error {
	sj, err := json.Marshal(ms.Scores)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO moderation_samples (id,exam_id,scores_json,verified,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET scores_json=EXCLUDED.scores_json, verified=EXCLUDED.verified`,
		ms.ID, ms.ExamID, string(sj), ms.Verified, time.Now().Unix())
	return err
}

func (s *SQLStore) VerifiedSamples(ctx context.Context, examID string) ([]ModerationSample, error) {
	q := `SELECT id,exam_id,scores_json,verified,created_at FROM moderation_samples
		WHERE exam_id=$1 AND verified=TRUE ORDER BY created_at, id`
	if s.driver == "sqlite" {
		q = `SELECT id,exam_id,scores_json,verified,created_at FROM moderation_samples
			WHERE exam_id=$1 AND verified=1 ORDER BY created_at, id`
	}
	rows, err := s.db.QueryContext(ctx, q, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ModerationSample
	for rows.Next() {
		var ms ModerationSample
		var sj string
		if err := rows.Scan(&ms.ID, &ms.ExamID, &sj, &ms.Verified, &ms.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sj), &ms.Scores); err != nil {
			return nil, fmt.Errorf("scores json: %w", err)
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSheet(row rowScanner) (Sheet, error) {
	var sh Sheet
	var status, rjson string
	var gradedAt sql.NullInt64
	if err := row.Scan(&sh.ID, &sh.ExamID, &sh.StudentRef, &status, &rjson,
		&sh.TotalScore, &sh.Percentage, &sh.LetterGrade, &sh.CreatedAt, &gradedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Sheet{}, ErrNotFound
		}
		return Sheet{}, err
	}
	sh.Status = SheetStatus(status)
	if gradedAt.Valid {
		v := gradedAt.Int64
		sh.GradedAt = &v
	}
	if err := json.Unmarshal([]byte(rjson), &sh.Regions); err != nil {
		sh.Regions = map[string]Region{}
	}
	return sh, nil
}

func scanResponse(row rowScanner) (Response, error) {
	var r Response
	var label string
	var ovScore sql.NullFloat64
	var ovComment, ovBy sql.NullString
	var ovNeeds sql.NullBool
	var reviewedAt sql.NullInt64
	if err := row.Scan(&r.ID, &r.SheetID, &r.ExamID, &r.QuestionID, &r.Ordinal, &r.ExtractedText,
		&label, &r.Confidence, &r.AssignedScore, &r.Explanation, &r.NeedsReview,
		&ovScore, &ovComment, &ovNeeds, &ovBy, &reviewedAt, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Response{}, ErrNotFound
		}
		return Response{}, err
	}
	r.Label = Label(label)
	if ovScore.Valid {
		v := ovScore.Float64
		r.OverrideScore = &v
	}
	if ovComment.Valid {
		v := ovComment.String
		r.OverrideComment = &v
	}
	if ovNeeds.Valid {
		v := ovNeeds.Bool
		r.OverrideNeedsReview = &v
	}
	if ovBy.Valid {
		v := ovBy.String
		r.OverrideBy = &v
	}
	if reviewedAt.Valid {
		v := reviewedAt.Int64
		r.ReviewedAt = &v
	}
	return r, nil
}

func scanSession(row rowScanner) (GradingSession, error) {
	var gs GradingSession
	var status string
	var finishedAt sql.NullInt64
	if err := row.Scan(&gs.ID, &gs.ExamID, &status, &gs.Total, &gs.Processed, &gs.Graded, &gs.Error, &gs.StartedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GradingSession{}, ErrNotFound
		}
		return GradingSession{}, err
	}
	gs.Status = SessionStatus(status)
	if finishedAt.Valid {
		v := finishedAt.Int64
		gs.FinishedAt = &v
	}
	return gs, nil
}

func scanModel(row rowScanner) (Model, error) {
	var m Model
	if err := row.Scan(&m.ID, &m.ExamID, &m.Version, &m.Accuracy, &m.Active, &m.ArtifactJSON, &m.TrainingSessionID, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Model{}, ErrNotFound
		}
		return Model{}, err
	}
	return m, nil
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
