package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gradeledger-api/internal/models"
)

// GradeEventRequest is the payload for admitting a draft, submit or lock
// event into a lane. The acting principal comes from the auth middleware,
// never from the body.
type GradeEventRequest struct {
	StudentID      string   `json:"student_id" validate:"required"`
	ClassSubjectID string   `json:"class_subject_id" validate:"required"`
	TermID         string   `json:"term_id" validate:"required"`
	EventType      string   `json:"event_type" validate:"required,oneof=draft submit lock"`
	Score          *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
	GradeLetter    string   `json:"grade_letter" validate:"omitempty,max=4"`
	Remarks        string   `json:"remarks" validate:"omitempty,max=2000"`
}

// ModificationRequestCreate asks to change a locked grade.
type ModificationRequestCreate struct {
	Reason             string          `json:"reason" validate:"required,min=3,max=2000"`
	SupportingEvidence json.RawMessage `json:"supporting_evidence" validate:"omitempty"`
}

// ModificationResolveRequest settles a pending modification request.
type ModificationResolveRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
}

// GradeEventResponse serializes a ledger entry for API clients.
type GradeEventResponse struct {
	ID                 string          `json:"id"`
	StudentID          string          `json:"student_id"`
	ClassSubjectID     string          `json:"class_subject_id"`
	TermID             string          `json:"term_id"`
	Sequence           uint64          `json:"sequence"`
	EventType          string          `json:"event_type"`
	Score              float64         `json:"score"`
	GradeLetter        string          `json:"grade_letter,omitempty"`
	Remarks            string          `json:"remarks,omitempty"`
	RecordedBy         string          `json:"recorded_by"`
	RecordedAt         time.Time       `json:"recorded_at"`
	ModificationReason string          `json:"modification_reason,omitempty"`
	SupportingEvidence json.RawMessage `json:"supporting_evidence,omitempty"`
	PreviousEventID    *string         `json:"previous_event_id"`
	Hash               string          `json:"hash"`
}

// NewGradeEventResponse maps a stored event to its API representation.
func NewGradeEventResponse(event models.GradeEvent) GradeEventResponse {
	return GradeEventResponse{
		ID:                 event.ID,
		StudentID:          event.StudentID,
		ClassSubjectID:     event.ClassSubjectID,
		TermID:             event.TermID,
		Sequence:           event.Sequence,
		EventType:          string(event.EventType),
		Score:              event.Score,
		GradeLetter:        event.GradeLetter,
		Remarks:            event.Remarks,
		RecordedBy:         event.RecordedBy,
		RecordedAt:         event.RecordedAt,
		ModificationReason: event.ModificationReason,
		SupportingEvidence: json.RawMessage(event.SupportingEvidence),
		PreviousEventID:    event.PreviousEventID,
		Hash:               event.Hash,
	}
}

// ChainResponse returns a lane's full causal history.
type ChainResponse struct {
	Events []GradeEventResponse `json:"events"`
	Length int                  `json:"length"`
}

// NewChainResponse maps an ordered event slice.
func NewChainResponse(events []models.GradeEvent) ChainResponse {
	out := make([]GradeEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, NewGradeEventResponse(event))
	}

	return ChainResponse{Events: out, Length: len(out)}
}

// ChainVerificationResponse reports the outcome of an integrity check.
type ChainVerificationResponse struct {
	Valid         bool   `json:"valid"`
	EventsChecked int    `json:"events_checked"`
	FailedEventID string `json:"failed_event_id,omitempty"`
}

// CurrentGradeResponse serializes the projected snapshot of a lane.
type CurrentGradeResponse struct {
	StudentID          string  `json:"student_id"`
	ClassSubjectID     string  `json:"class_subject_id"`
	TermID             string  `json:"term_id"`
	CurrentScore       float64 `json:"current_score"`
	CurrentGradeLetter string  `json:"current_grade_letter,omitempty"`
	Status             string  `json:"status"`
	LastEventID        string  `json:"last_event_id"`
}

// NewCurrentGradeResponse maps a projection to its API representation.
func NewCurrentGradeResponse(grade models.CurrentGrade) CurrentGradeResponse {
	return CurrentGradeResponse{
		StudentID:          grade.StudentID,
		ClassSubjectID:     grade.ClassSubjectID,
		TermID:             grade.TermID,
		CurrentScore:       grade.CurrentScore,
		CurrentGradeLetter: grade.CurrentGradeLetter,
		Status:             string(grade.Status),
		LastEventID:        grade.LastEventID,
	}
}
