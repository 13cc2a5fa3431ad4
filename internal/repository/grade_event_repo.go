package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gradeledger-api/internal/models"
)

// ErrHeadMoved indicates a conditional append lost the race: another event
// claimed the lane's next sequence number first.
var ErrHeadMoved = errors.New("lane head moved")

// GradeEventRepository is the append-only store behind the grade ledger.
// Events are inserted, never updated or deleted.
type GradeEventRepository interface {
	// Append inserts the event. The caller assigns event.Sequence as the
	// successor of the head it validated against; if that slot is already
	// taken the append fails with ErrHeadMoved and nothing is written.
	Append(ctx context.Context, event *models.GradeEvent) error
	// ListOrdered returns every event in the lane in causal order.
	ListOrdered(ctx context.Context, lane models.LaneKey) ([]models.GradeEvent, error)
	// Head returns the most recent event in the lane, or gorm.ErrRecordNotFound.
	Head(ctx context.Context, lane models.LaneKey) (models.GradeEvent, error)
	// GetByID fetches a single event by identifier.
	GetByID(ctx context.Context, id string) (models.GradeEvent, error)
}

type gradeEventRepository struct {
	db *gorm.DB
}

// NewGradeEventRepository instantiates the repository.
func NewGradeEventRepository(db *gorm.DB) GradeEventRepository {
	return &gradeEventRepository{db: db}
}

func (r *gradeEventRepository) laneQuery(ctx context.Context, lane models.LaneKey) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.GradeEvent{}).
		Where("student_id = ?", lane.StudentID).
		Where("class_subject_id = ?", lane.ClassSubjectID).
		Where("term_id = ?", lane.TermID)
}

func (r *gradeEventRepository) Append(ctx context.Context, event *models.GradeEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrHeadMoved
		}
		return err
	}

	return nil
}

func (r *gradeEventRepository) ListOrdered(ctx context.Context, lane models.LaneKey) ([]models.GradeEvent, error) {
	var events []models.GradeEvent
	if err := r.laneQuery(ctx, lane).Order("sequence ASC").Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

func (r *gradeEventRepository) Head(ctx context.Context, lane models.LaneKey) (models.GradeEvent, error) {
	var event models.GradeEvent
	if err := r.laneQuery(ctx, lane).Order("sequence DESC").First(&event).Error; err != nil {
		return models.GradeEvent{}, err
	}

	return event, nil
}

func (r *gradeEventRepository) GetByID(ctx context.Context, id string) (models.GradeEvent, error) {
	var event models.GradeEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return models.GradeEvent{}, err
	}

	return event, nil
}
