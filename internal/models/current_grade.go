package models

// GradeStatus is the derived snapshot state of a lane, produced by folding
// the event chain. It answers "what is true now", never "what happened".
type GradeStatus string

const (
	// GradeStatusDraft means the grade is editable.
	GradeStatusDraft GradeStatus = "draft"
	// GradeStatusSubmitted means the grade awaits locking.
	GradeStatusSubmitted GradeStatus = "submitted"
	// GradeStatusLocked means the grade is final unless a modification is approved.
	GradeStatusLocked GradeStatus = "locked"
)

// CurrentGrade is the projection of a lane's event chain. It is derived
// state: the event log stays the sole source of truth and the projection is
// rebuilt, never edited in place.
type CurrentGrade struct {
	StudentID          string      `json:"student_id"`
	ClassSubjectID     string      `json:"class_subject_id"`
	TermID             string      `json:"term_id"`
	CurrentScore       float64     `json:"current_score"`
	CurrentGradeLetter string      `json:"current_grade_letter,omitempty"`
	Status             GradeStatus `json:"status"`
	LastEventID        string      `json:"last_event_id"`
}

// Lane returns the chain key this snapshot was derived from.
func (g CurrentGrade) Lane() LaneKey {
	return LaneKey{
		StudentID:      g.StudentID,
		ClassSubjectID: g.ClassSubjectID,
		TermID:         g.TermID,
	}
}
