package service

import (
	"github.com/noah-isme/gradeledger-api/internal/models"
)

// Project folds a lane's ordered event chain into its CurrentGrade snapshot.
// It is a pure fold: no I/O, no mutation of its input, and running it twice
// over the same chain yields the identical snapshot. The event log remains
// the sole source of truth; the returned value is always rebuildable.
func Project(events []models.GradeEvent) (models.CurrentGrade, error) {
	if len(events) == 0 {
		return models.CurrentGrade{}, ErrLaneNotFound
	}

	lane := events[0].Lane()
	grade := models.CurrentGrade{
		StudentID:      lane.StudentID,
		ClassSubjectID: lane.ClassSubjectID,
		TermID:         lane.TermID,
		Status:         models.GradeStatusDraft,
	}

	for _, event := range events {
		switch event.EventType {
		case models.GradeEventDraft:
			grade.CurrentScore = event.Score
			grade.CurrentGradeLetter = event.GradeLetter
			grade.Status = models.GradeStatusDraft
		case models.GradeEventSubmit:
			grade.CurrentScore = event.Score
			grade.CurrentGradeLetter = event.GradeLetter
			grade.Status = models.GradeStatusSubmitted
		case models.GradeEventLock:
			grade.Status = models.GradeStatusLocked
		case models.GradeEventModifyRequest:
			// Still locked while the request is pending.
			grade.Status = models.GradeStatusLocked
		case models.GradeEventModifyApproved:
			// Approval only reopens editing; values change with the next draft.
			grade.Status = models.GradeStatusDraft
		case models.GradeEventModifyRejected:
			grade.Status = models.GradeStatusLocked
		}

		grade.LastEventID = event.ID
	}

	return grade, nil
}
