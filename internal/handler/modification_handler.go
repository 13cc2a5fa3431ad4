package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeledger-api/internal/dto"
	"github.com/noah-isme/gradeledger-api/internal/service"
	"github.com/noah-isme/gradeledger-api/internal/utils"
)

// ModificationHandler manages the locked-grade modification workflow endpoints.
type ModificationHandler struct {
	service   service.ModificationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewModificationHandler builds a modification handler instance.
func NewModificationHandler(service service.ModificationService, validator *validator.Validate, logger zerolog.Logger) *ModificationHandler {
	return &ModificationHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "modification_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ModificationHandler) Register(router fiber.Router) {
	router.Post("/modifications/:id/resolve", h.resolve)
	router.Post("/:studentId/:classSubjectId/:termId/modifications", h.request)
}

func (h *ModificationHandler) request(c *fiber.Ctx) error {
	lane, err := laneFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ModificationRequestCreate
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	event, err := h.service.Request(c.Context(), lane, payload, principalFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "modification requested", event)
}

func (h *ModificationHandler) resolve(c *fiber.Ctx) error {
	requestID := c.Params("id")
	if requestID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "request id is required")
	}

	var payload dto.ModificationResolveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	event, err := h.service.Resolve(c.Context(), requestID, payload, principalFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "modification resolved", event)
}

func (h *ModificationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrModificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRequestAlreadyResolved),
		errors.Is(err, service.ErrLaneConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidEvidence), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("modification request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
