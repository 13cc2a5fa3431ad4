package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gradeledger-api/internal/dto"
	"github.com/noah-isme/gradeledger-api/internal/models"
	"github.com/noah-isme/gradeledger-api/internal/repository"
)

// ErrModificationNotFound indicates no modification request with that id exists.
var ErrModificationNotFound = errors.New("modification request not found")

// ErrRequestAlreadyResolved indicates the request was already approved or
// rejected; the first resolution wins.
var ErrRequestAlreadyResolved = errors.New("modification request already resolved")

// ErrInvalidEvidence indicates the supporting evidence document does not
// match the expected shape.
var ErrInvalidEvidence = errors.New("supporting evidence does not match schema")

// evidenceSchema constrains the supporting evidence document attached to a
// modification request: an optional note plus a list of document references.
const evidenceSchema = `{
	"type": "object",
	"properties": {
		"note": {"type": "string"},
		"documents": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"url": {"type": "string", "minLength": 1},
					"description": {"type": "string"}
				},
				"required": ["url"]
			}
		}
	},
	"additionalProperties": false
}`

// ModificationService runs the request/approve/reject sub-protocol for
// changing locked grades.
type ModificationService interface {
	Request(ctx context.Context, lane models.LaneKey, payload dto.ModificationRequestCreate, actor Principal) (dto.GradeEventResponse, error)
	Resolve(ctx context.Context, requestID string, payload dto.ModificationResolveRequest, actor Principal) (dto.GradeEventResponse, error)
}

type modificationService struct {
	ledger    LedgerService
	store     repository.GradeEventRepository
	validator *validator.Validate
	schema    *jsonschema.Schema
	logger    zerolog.Logger
}

// NewModificationService constructs the workflow controller.
func NewModificationService(ledger LedgerService, store repository.GradeEventRepository, validate *validator.Validate, logger zerolog.Logger) (ModificationService, error) {
	schema, err := jsonschema.CompileString("evidence.json", evidenceSchema)
	if err != nil {
		return nil, err
	}

	return &modificationService{
		ledger:    ledger,
		store:     store,
		validator: validate,
		schema:    schema,
		logger:    logger.With().Str("component", "modification_service").Logger(),
	}, nil
}

func (s *modificationService) Request(ctx context.Context, lane models.LaneKey, payload dto.ModificationRequestCreate, actor Principal) (dto.GradeEventResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeEventResponse{}, err
	}

	if len(payload.SupportingEvidence) > 0 {
		if err := s.validateEvidence(payload.SupportingEvidence); err != nil {
			return dto.GradeEventResponse{}, err
		}
	}

	candidate := EventCandidate{
		Lane:               lane,
		EventType:          models.GradeEventModifyRequest,
		ModificationReason: payload.Reason,
		SupportingEvidence: datatypes.JSON(payload.SupportingEvidence),
	}

	return s.ledger.Admit(ctx, candidate, actor)
}

func (s *modificationService) Resolve(ctx context.Context, requestID string, payload dto.ModificationResolveRequest, actor Principal) (dto.GradeEventResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeEventResponse{}, err
	}

	request, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeEventResponse{}, ErrModificationNotFound
		}
		return dto.GradeEventResponse{}, err
	}

	if request.EventType != models.GradeEventModifyRequest {
		return dto.GradeEventResponse{}, ErrModificationNotFound
	}

	eventType := models.GradeEventModifyApproved
	if payload.Decision == "rejected" {
		eventType = models.GradeEventModifyRejected
	}

	// The resolution must land directly on the request it settles. If the
	// head already moved past it, somebody else resolved it first.
	expected := request.ID
	candidate := EventCandidate{
		Lane:                    request.Lane(),
		EventType:               eventType,
		ModificationReason:      request.ModificationReason,
		ExpectedPreviousEventID: &expected,
	}

	resolved, err := s.ledger.Admit(ctx, candidate, actor)
	if err != nil {
		if errors.Is(err, ErrLaneConflict) || errors.Is(err, ErrInvalidTransition) {
			return dto.GradeEventResponse{}, ErrRequestAlreadyResolved
		}
		return dto.GradeEventResponse{}, err
	}

	return resolved, nil
}

func (s *modificationService) validateEvidence(raw []byte) error {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return ErrInvalidEvidence
	}

	if err := s.schema.Validate(document); err != nil {
		return ErrInvalidEvidence
	}

	return nil
}
