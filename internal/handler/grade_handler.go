package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeledger-api/internal/dto"
	"github.com/noah-isme/gradeledger-api/internal/models"
	"github.com/noah-isme/gradeledger-api/internal/service"
	"github.com/noah-isme/gradeledger-api/internal/utils"
)

// GradeHandler manages grade ledger endpoints.
type GradeHandler struct {
	ledger    service.LedgerService
	current   service.CurrentGradeService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradeHandler builds a grade handler instance.
func NewGradeHandler(ledger service.LedgerService, current service.CurrentGradeService, validator *validator.Validate, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		ledger:    ledger,
		current:   current,
		validator: validator,
		logger:    logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradeHandler) Register(router fiber.Router) {
	router.Post("/events", h.admit)
	router.Get("/:studentId/:classSubjectId/:termId/chain", h.chain)
	router.Get("/:studentId/:classSubjectId/:termId/current", h.currentGrade)
	router.Get("/:studentId/:classSubjectId/:termId/verify", h.verify)
}

func (h *GradeHandler) admit(c *fiber.Ctx) error {
	var payload dto.GradeEventRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	candidate := service.EventCandidate{
		Lane: models.LaneKey{
			StudentID:      payload.StudentID,
			ClassSubjectID: payload.ClassSubjectID,
			TermID:         payload.TermID,
		},
		EventType:   models.GradeEventType(payload.EventType),
		Score:       payload.Score,
		GradeLetter: payload.GradeLetter,
		Remarks:     payload.Remarks,
	}

	event, err := h.ledger.Admit(c.Context(), candidate, principalFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grade event admitted", event)
}

func (h *GradeHandler) chain(c *fiber.Ctx) error {
	lane, err := laneFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	chain, err := h.ledger.GetChain(c.Context(), lane)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade chain retrieved", chain)
}

func (h *GradeHandler) currentGrade(c *fiber.Ctx) error {
	lane, err := laneFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grade, err := h.current.Get(c.Context(), lane)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "current grade retrieved", grade)
}

func (h *GradeHandler) verify(c *fiber.Ctx) error {
	lane, err := laneFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.ledger.VerifyChain(c.Context(), lane)
	if err != nil {
		return h.handleError(c, err)
	}

	if !result.Valid {
		return c.Status(fiber.StatusConflict).JSON(utils.APIResponse{
			Success: false,
			Data:    result,
			Message: "grade chain integrity violation",
		})
	}

	return utils.SendSuccess(c, "grade chain verified", result)
}

func (h *GradeHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrScoreOutOfRange),
		errors.Is(err, service.ErrScoreRequired):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrLaneConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrLaneNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("grade request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
