package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GradeEventType enumerates the lifecycle actions that can be appended to a
// grade lane. This is the alphabet of the append-only log, distinct from the
// derived GradeStatus.
type GradeEventType string

const (
	// GradeEventDraft records a working score that can still be overwritten.
	GradeEventDraft GradeEventType = "draft"
	// GradeEventSubmit marks the working score as handed in for review.
	GradeEventSubmit GradeEventType = "submit"
	// GradeEventLock freezes the grade; further edits require the modification workflow.
	GradeEventLock GradeEventType = "lock"
	// GradeEventModifyRequest asks for permission to change a locked grade.
	GradeEventModifyRequest GradeEventType = "modify_request"
	// GradeEventModifyApproved grants a pending modification request and reopens editing.
	GradeEventModifyApproved GradeEventType = "modify_approved"
	// GradeEventModifyRejected denies a pending modification request.
	GradeEventModifyRejected GradeEventType = "modify_rejected"
)

// Valid reports whether the event type is part of the known alphabet.
func (t GradeEventType) Valid() bool {
	switch t {
	case GradeEventDraft, GradeEventSubmit, GradeEventLock,
		GradeEventModifyRequest, GradeEventModifyApproved, GradeEventModifyRejected:
		return true
	}
	return false
}

// LaneKey identifies the independent event chain holding one student's grade
// for one class subject in one term.
type LaneKey struct {
	StudentID      string `json:"student_id"`
	ClassSubjectID string `json:"class_subject_id"`
	TermID         string `json:"term_id"`
}

// String renders a stable representation suitable for mutex and cache keys.
func (k LaneKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.StudentID, k.ClassSubjectID, k.TermID)
}

// IsZero reports whether any component of the key is missing.
func (k LaneKey) IsZero() bool {
	return k.StudentID == "" || k.ClassSubjectID == "" || k.TermID == ""
}

// GradeEvent is one immutable entry in a grade lane. Rows are only ever
// inserted; the unique (lane, sequence) index is what makes concurrent
// appends race safely.
type GradeEvent struct {
	ID                 string         `gorm:"primaryKey;size:36" json:"id"`
	StudentID          string         `gorm:"size:36;not null;uniqueIndex:idx_grade_lane_seq,priority:1" json:"student_id"`
	ClassSubjectID     string         `gorm:"size:36;not null;uniqueIndex:idx_grade_lane_seq,priority:2" json:"class_subject_id"`
	TermID             string         `gorm:"size:36;not null;uniqueIndex:idx_grade_lane_seq,priority:3" json:"term_id"`
	Sequence           uint64         `gorm:"not null;uniqueIndex:idx_grade_lane_seq,priority:4" json:"sequence"`
	EventType          GradeEventType `gorm:"size:32;not null" json:"event_type"`
	Score              float64        `gorm:"not null" json:"score"`
	GradeLetter        string         `gorm:"size:4" json:"grade_letter,omitempty"`
	Remarks            string         `gorm:"type:text" json:"remarks,omitempty"`
	RecordedBy         string         `gorm:"size:36;not null" json:"recorded_by"`
	RecordedAt         time.Time      `gorm:"not null" json:"recorded_at"`
	ModificationReason string         `gorm:"type:text" json:"modification_reason,omitempty"`
	SupportingEvidence datatypes.JSON `json:"supporting_evidence,omitempty"`
	PreviousEventID    *string        `gorm:"size:36" json:"previous_event_id"`
	Hash               string         `gorm:"size:64;not null" json:"hash"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Lane returns the chain key this event belongs to.
func (e GradeEvent) Lane() LaneKey {
	return LaneKey{
		StudentID:      e.StudentID,
		ClassSubjectID: e.ClassSubjectID,
		TermID:         e.TermID,
	}
}
