package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gradeledger-api/internal/dto"
	"github.com/noah-isme/gradeledger-api/internal/models"
	"github.com/noah-isme/gradeledger-api/internal/observability"
	"github.com/noah-isme/gradeledger-api/internal/repository"
	"github.com/noah-isme/gradeledger-api/pkg/hashchain"
)

// ErrInvalidTransition indicates the event type is not admissible in the
// lane's current state.
var ErrInvalidTransition = errors.New("event type not admissible in current lane state")

// ErrScoreOutOfRange indicates a score outside the 0-100 grading scale.
var ErrScoreOutOfRange = errors.New("score outside allowed bounds")

// ErrScoreRequired indicates a draft event arrived without a score.
var ErrScoreRequired = errors.New("score is required for draft events")

// ErrLaneConflict indicates a concurrent admission advanced the lane head
// after the candidate was validated. Callers should re-read and retry.
var ErrLaneConflict = errors.New("concurrent admission advanced the lane head")

// ErrLaneNotFound indicates the lane has no events yet.
var ErrLaneNotFound = errors.New("grade lane not found")

// scoreMin and scoreMax bound the grading scale.
const (
	scoreMin = 0.0
	scoreMax = 100.0
)

// Principal identifies the authenticated actor behind an admission. It is
// supplied by the auth middleware; the ledger records it and nothing more.
type Principal struct {
	ID   string
	Role string
}

// EventCandidate is a not-yet-admitted grade event. The ledger assigns
// identity, ordering and the link hash during admission.
type EventCandidate struct {
	Lane               models.LaneKey
	EventType          models.GradeEventType
	Score              *float64
	GradeLetter        string
	Remarks            string
	ModificationReason string
	SupportingEvidence datatypes.JSON
	// ExpectedPreviousEventID makes the admission conditional: when set, the
	// lane head must still be that event. A pointer to the empty string
	// expects an empty lane. Nil admits against whatever the head is.
	ExpectedPreviousEventID *string
}

// ProjectionRefresher recomputes a lane's cached projection after a new
// event lands.
type ProjectionRefresher interface {
	Refresh(ctx context.Context, lane models.LaneKey) (models.CurrentGrade, error)
}

// LedgerService admits events into grade lanes, reads chains back and
// re-verifies their integrity.
type LedgerService interface {
	Admit(ctx context.Context, candidate EventCandidate, actor Principal) (dto.GradeEventResponse, error)
	GetChain(ctx context.Context, lane models.LaneKey) (dto.ChainResponse, error)
	VerifyChain(ctx context.Context, lane models.LaneKey) (dto.ChainVerificationResponse, error)
}

type ledgerService struct {
	store      repository.GradeEventRepository
	projection ProjectionRefresher
	audit      AuditRecorder
	notifier   GradeNotifier
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() string

	// laneLocks serializes admissions per lane within this process; the
	// unique (lane, sequence) index covers concurrent writers elsewhere.
	laneLocks sync.Map
}

// NewLedgerService constructs the ledger core.
func NewLedgerService(store repository.GradeEventRepository, projection ProjectionRefresher, audit AuditRecorder, notifier GradeNotifier, logger zerolog.Logger) LedgerService {
	return &ledgerService{
		store:      store,
		projection: projection,
		audit:      audit,
		notifier:   notifier,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "ledger_service").Logger(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// laneState is the per-lane admission state machine. States are derived from
// the head event, never stored.
type laneState string

const (
	laneEmpty         laneState = "empty"
	laneDraft         laneState = "draft"
	laneSubmitted     laneState = "submitted"
	laneLocked        laneState = "locked"
	laneModifyPending laneState = "modify_pending"
)

// admissibleEvents maps each lane state to the event types it accepts.
var admissibleEvents = map[laneState][]models.GradeEventType{
	laneEmpty:         {models.GradeEventDraft},
	laneDraft:         {models.GradeEventDraft, models.GradeEventSubmit},
	laneSubmitted:     {models.GradeEventDraft, models.GradeEventLock},
	laneLocked:        {models.GradeEventModifyRequest},
	laneModifyPending: {models.GradeEventModifyApproved, models.GradeEventModifyRejected},
}

func stateAfter(head models.GradeEvent) laneState {
	switch head.EventType {
	case models.GradeEventDraft, models.GradeEventModifyApproved:
		return laneDraft
	case models.GradeEventSubmit:
		return laneSubmitted
	case models.GradeEventLock, models.GradeEventModifyRejected:
		return laneLocked
	case models.GradeEventModifyRequest:
		return laneModifyPending
	default:
		return laneEmpty
	}
}

func transitionAllowed(state laneState, eventType models.GradeEventType) bool {
	for _, allowed := range admissibleEvents[state] {
		if allowed == eventType {
			return true
		}
	}
	return false
}

func (s *ledgerService) laneLock(lane models.LaneKey) *sync.Mutex {
	lock, _ := s.laneLocks.LoadOrStore(lane.String(), &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *ledgerService) Admit(ctx context.Context, candidate EventCandidate, actor Principal) (dto.GradeEventResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gradeledger-api/internal/service/ledger")
	ctx, span := tracer.Start(ctx, "ledger.admit")
	span.SetAttributes(
		attribute.String("ledger.lane", candidate.Lane.String()),
		attribute.String("ledger.event_type", string(candidate.EventType)),
		attribute.String("ledger.actor_id", actor.ID),
	)
	defer span.End()

	if candidate.Lane.IsZero() || !candidate.EventType.Valid() {
		span.SetStatus(codes.Error, "invalid_candidate")
		return dto.GradeEventResponse{}, ErrInvalidTransition
	}

	lock := s.laneLock(candidate.Lane)
	lock.Lock()
	defer lock.Unlock()

	head, hasHead, err := s.loadHead(ctx, candidate.Lane)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "head_lookup_failed")
		return dto.GradeEventResponse{}, err
	}

	if err := checkExpectedHead(candidate, head, hasHead); err != nil {
		observability.LedgerConflicts().Inc()
		span.SetStatus(codes.Error, "head_moved")
		return dto.GradeEventResponse{}, err
	}

	state := laneEmpty
	if hasHead {
		state = stateAfter(head)
	}

	if !transitionAllowed(state, candidate.EventType) {
		observability.LedgerAdmissions().WithLabelValues(string(candidate.EventType), "rejected").Inc()
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.GradeEventResponse{}, ErrInvalidTransition
	}

	score, letter, err := resolveScore(candidate, head, hasHead)
	if err != nil {
		observability.LedgerAdmissions().WithLabelValues(string(candidate.EventType), "rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "score_rejected")
		return dto.GradeEventResponse{}, err
	}

	event := models.GradeEvent{
		ID:                 s.newID(),
		StudentID:          candidate.Lane.StudentID,
		ClassSubjectID:     candidate.Lane.ClassSubjectID,
		TermID:             candidate.Lane.TermID,
		Sequence:           1,
		EventType:          candidate.EventType,
		Score:              score,
		GradeLetter:        letter,
		Remarks:            strings.TrimSpace(s.sanitizer.Sanitize(candidate.Remarks)),
		RecordedBy:         actor.ID,
		RecordedAt:         s.now().UTC(),
		ModificationReason: strings.TrimSpace(s.sanitizer.Sanitize(candidate.ModificationReason)),
		SupportingEvidence: candidate.SupportingEvidence,
	}

	prevHash := ""
	if hasHead {
		event.Sequence = head.Sequence + 1
		previousID := head.ID
		event.PreviousEventID = &previousID
		prevHash = head.Hash

		// An approval reopens the lane; the next admitted event inherits the
		// modification reason so the audit trail stays connected.
		if head.EventType == models.GradeEventModifyApproved && event.ModificationReason == "" {
			event.ModificationReason = head.ModificationReason
		}
	}

	event.Hash = hashchain.Compute(prevHash, chainPayload(event))

	if err := s.store.Append(ctx, &event); err != nil {
		if errors.Is(err, repository.ErrHeadMoved) {
			observability.LedgerConflicts().Inc()
			span.SetStatus(codes.Error, "append_conflict")
			return dto.GradeEventResponse{}, ErrLaneConflict
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "append_failed")
		return dto.GradeEventResponse{}, err
	}

	observability.LedgerAdmissions().WithLabelValues(string(event.EventType), "admitted").Inc()
	s.afterAdmit(ctx, event, actor)

	span.SetAttributes(attribute.String("ledger.event_id", event.ID))

	return dto.NewGradeEventResponse(event), nil
}

// afterAdmit refreshes the cached projection and fans the event out to the
// audit trail and notifier. None of these can fail the admission: the event
// is already durable.
func (s *ledgerService) afterAdmit(ctx context.Context, event models.GradeEvent, actor Principal) {
	if s.projection != nil {
		if _, err := s.projection.Refresh(ctx, event.Lane()); err != nil {
			s.logger.Warn().Err(err).Str("lane", event.Lane().String()).Msg("failed to refresh projection")
		}
	}

	if s.audit != nil {
		entry := AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "grade_event." + string(event.EventType),
			EntityType: "grade_event",
			EntityID:   event.ID,
			Metadata: map[string]interface{}{
				"lane":     event.Lane().String(),
				"sequence": event.Sequence,
				"score":    event.Score,
			},
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to persist audit entry")
		}
	}

	if s.notifier != nil {
		switch event.EventType {
		case models.GradeEventSubmit:
			s.notifier.GradePosted(ctx, event)
		case models.GradeEventLock:
			s.notifier.GradeLocked(ctx, event)
		case models.GradeEventModifyRequest:
			s.notifier.ModificationAttempt(ctx, event)
		}
	}
}

func (s *ledgerService) GetChain(ctx context.Context, lane models.LaneKey) (dto.ChainResponse, error) {
	events, err := s.store.ListOrdered(ctx, lane)
	if err != nil {
		return dto.ChainResponse{}, err
	}

	return dto.NewChainResponse(events), nil
}

func (s *ledgerService) VerifyChain(ctx context.Context, lane models.LaneKey) (dto.ChainVerificationResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gradeledger-api/internal/service/ledger")
	ctx, span := tracer.Start(ctx, "ledger.verify_chain")
	span.SetAttributes(attribute.String("ledger.lane", lane.String()))
	defer span.End()

	events, err := s.store.ListOrdered(ctx, lane)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain_read_failed")
		return dto.ChainVerificationResponse{}, err
	}

	result := verifyEvents(events)
	result.EventsChecked = len(events)

	if !result.Valid {
		observability.LedgerIntegrityFailures().Inc()
		span.SetStatus(codes.Error, "integrity_violation")
		s.logger.Error().
			Str("lane", lane.String()).
			Str("failed_event_id", result.FailedEventID).
			Msg("grade chain integrity violation detected")

		if s.audit != nil {
			entry := AuditEntry{
				ActorID:    "system",
				Action:     "grade_chain.integrity_failure",
				EntityType: "grade_lane",
				EntityID:   result.FailedEventID,
				Metadata:   map[string]interface{}{"lane": lane.String()},
			}
			if err := s.audit.Record(ctx, entry); err != nil {
				s.logger.Warn().Err(err).Msg("failed to persist integrity audit entry")
			}
		}
		if s.notifier != nil {
			s.notifier.IntegrityAlert(ctx, lane, result.FailedEventID)
		}
	}

	return result, nil
}

// verifyEvents walks the chain recomputing every link. A single broken link
// invalidates the lane from that event onward; it is never repaired here.
func verifyEvents(events []models.GradeEvent) dto.ChainVerificationResponse {
	prevHash := ""
	var prevID *string
	var prevSequence uint64

	for _, event := range events {
		linked := event.PreviousEventID == nil && prevID == nil ||
			event.PreviousEventID != nil && prevID != nil && *event.PreviousEventID == *prevID

		if !linked || event.Sequence != prevSequence+1 ||
			!hashchain.Verify(prevHash, chainPayload(event), event.Hash) {
			return dto.ChainVerificationResponse{Valid: false, FailedEventID: event.ID}
		}

		prevHash = event.Hash
		id := event.ID
		prevID = &id
		prevSequence = event.Sequence
	}

	return dto.ChainVerificationResponse{Valid: true}
}

func (s *ledgerService) loadHead(ctx context.Context, lane models.LaneKey) (models.GradeEvent, bool, error) {
	head, err := s.store.Head(ctx, lane)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GradeEvent{}, false, nil
		}
		return models.GradeEvent{}, false, err
	}

	return head, true, nil
}

func checkExpectedHead(candidate EventCandidate, head models.GradeEvent, hasHead bool) error {
	if candidate.ExpectedPreviousEventID == nil {
		return nil
	}

	expected := *candidate.ExpectedPreviousEventID
	if expected == "" {
		if hasHead {
			return ErrLaneConflict
		}
		return nil
	}

	if !hasHead || head.ID != expected {
		return ErrLaneConflict
	}

	return nil
}

// resolveScore picks the score and letter the event will carry. Draft events
// set a fresh working value; submits may restate or carry it forward; lock
// and modification events always carry the effective value forward so every
// stored record is complete on its own.
func resolveScore(candidate EventCandidate, head models.GradeEvent, hasHead bool) (float64, string, error) {
	switch candidate.EventType {
	case models.GradeEventDraft:
		if candidate.Score == nil {
			return 0, "", ErrScoreRequired
		}
	case models.GradeEventSubmit:
		if candidate.Score == nil {
			return head.Score, head.GradeLetter, nil
		}
	default:
		if !hasHead {
			return 0, "", nil
		}
		return head.Score, head.GradeLetter, nil
	}

	score := *candidate.Score
	if score < scoreMin || score > scoreMax {
		return 0, "", ErrScoreOutOfRange
	}

	letter := candidate.GradeLetter
	if letter == "" {
		letter = letterFor(score)
	}

	return score, letter, nil
}

// letterFor assigns the default letter band when the caller does not supply one.
func letterFor(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func chainPayload(event models.GradeEvent) hashchain.Payload {
	previousID := ""
	if event.PreviousEventID != nil {
		previousID = *event.PreviousEventID
	}

	return hashchain.Payload{
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
		SupportingEvidence: []byte(event.SupportingEvidence),
		PreviousEventID:    previousID,
	}
}
