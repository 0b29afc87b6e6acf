package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/shotcoach/internal/analysis"
)

// Analysis is a saved shot analysis.
type Analysis struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	UserName            string    `json:"userName"`
	AverageElbowAngle   float64   `json:"averageElbowAngle"`
	AverageFeetDistance float64   `json:"averageFeetDistance"`
	Tips                []string  `json:"tips"`
	FrameCount          int       `json:"frameCount"`
	CreatedAt           time.Time `json:"createdAt"`
}

// AnalysisRepository stores analyses and their frames.
type AnalysisRepository struct {
	db *sql.DB
}

// Analyses returns the analysis repository.
func (s *Store) Analyses() *AnalysisRepository {
	return &AnalysisRepository{db: s.db}
}

// Create saves a for user together with frames in one transaction. ID and
// CreatedAt are assigned when empty.
func (r *AnalysisRepository) Create(user *User, a *Analysis, frames []analysis.FrameMetric) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UserID = user.ID
	a.UserName = user.Name
	if a.Tips == nil {
		a.Tips = []string{}
	}

	tips, err := json.Marshal(a.Tips)
	if err != nil {
		return fmt.Errorf("encode tips: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO analyses (id, user_id, avg_elbow_angle, avg_feet_distance, tips, frame_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.AverageElbowAngle, a.AverageFeetDistance, string(tips), a.FrameCount, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO analysis_frames (analysis_id, frame_index, elbow_angle, feet_distance) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range frames {
		if _, err := stmt.Exec(a.ID, f.FrameIndex, f.ElbowAngle, f.FeetDistance); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const analysisColumns = `a.id, a.user_id, u.name, a.avg_elbow_angle, a.avg_feet_distance, a.tips, a.frame_count, a.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	a := &Analysis{}
	var tips string
	err := row.Scan(&a.ID, &a.UserID, &a.UserName, &a.AverageElbowAngle, &a.AverageFeetDistance,
		&tips, &a.FrameCount, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tips), &a.Tips); err != nil {
		return nil, fmt.Errorf("decode tips of %s: %w", a.ID, err)
	}
	return a, nil
}

// GetByID returns one analysis.
func (r *AnalysisRepository) GetByID(id string) (*Analysis, error) {
	row := r.db.QueryRow(
		`SELECT `+analysisColumns+` FROM analyses a JOIN users u ON u.id = a.user_id WHERE a.id = ?`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListByUser returns a user's analyses, newest first. limit <= 0 means all.
func (r *AnalysisRepository) ListByUser(userID string, limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT `+analysisColumns+` FROM analyses a JOIN users u ON u.id = a.user_id
		 WHERE a.user_id = ? ORDER BY a.rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Frames returns the stored frames of an analysis in capture order.
func (r *AnalysisRepository) Frames(id string) ([]analysis.FrameMetric, error) {
	var exists int
	err := r.db.QueryRow(`SELECT 1 FROM analyses WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT frame_index, elbow_angle, feet_distance FROM analysis_frames
		 WHERE analysis_id = ? ORDER BY frame_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	frames := []analysis.FrameMetric{}
	for rows.Next() {
		var f analysis.FrameMetric
		if err := rows.Scan(&f.FrameIndex, &f.ElbowAngle, &f.FeetDistance); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Delete removes an analysis and its frames.
func (r *AnalysisRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// Record saves agg and its frames under the registered user named userName.
// It returns ErrNotFound when no user has that name.
func (s *Store) Record(userName string, agg analysis.SessionAggregate, frames []analysis.FrameMetric) (*Analysis, error) {
	user, err := s.Users().GetByName(userName)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		AverageElbowAngle:   agg.AverageElbowAngle,
		AverageFeetDistance: agg.AverageFeetDistance,
		Tips:                agg.Tips,
		FrameCount:          agg.FrameCount,
	}
	if err := s.Analyses().Create(user, a, frames); err != nil {
		return nil, fmt.Errorf("save analysis for %s: %w", user.Name, err)
	}
	return a, nil
}
