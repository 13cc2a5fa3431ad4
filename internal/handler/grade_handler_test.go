package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeledger-api/internal/dto"
	"github.com/noah-isme/gradeledger-api/internal/handler"
	"github.com/noah-isme/gradeledger-api/internal/models"
	"github.com/noah-isme/gradeledger-api/internal/service"
)

type mockLedgerService struct {
	admitResponse  dto.GradeEventResponse
	admitErr       error
	lastCandidate  service.EventCandidate
	lastActor      service.Principal
	chainResponse  dto.ChainResponse
	verifyResponse dto.ChainVerificationResponse
}

func (m *mockLedgerService) Admit(_ context.Context, candidate service.EventCandidate, actor service.Principal) (dto.GradeEventResponse, error) {
	m.lastCandidate = candidate
	m.lastActor = actor
	if m.admitErr != nil {
		return dto.GradeEventResponse{}, m.admitErr
	}
	return m.admitResponse, nil
}

func (m *mockLedgerService) GetChain(_ context.Context, _ models.LaneKey) (dto.ChainResponse, error) {
	return m.chainResponse, nil
}

func (m *mockLedgerService) VerifyChain(_ context.Context, _ models.LaneKey) (dto.ChainVerificationResponse, error) {
	return m.verifyResponse, nil
}

type mockCurrentGradeService struct {
	response dto.CurrentGradeResponse
	err      error
}

func (m *mockCurrentGradeService) Get(_ context.Context, _ models.LaneKey) (dto.CurrentGradeResponse, error) {
	if m.err != nil {
		return dto.CurrentGradeResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockCurrentGradeService) Refresh(_ context.Context, _ models.LaneKey) (models.CurrentGrade, error) {
	return models.CurrentGrade{}, m.err
}

func setupGradeApp(ledger service.LedgerService, current service.CurrentGradeService) *fiber.App {
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	group := app.Group("/api/v1/grades", func(c *fiber.Ctx) error {
		c.Locals("user_id", "teacher-1")
		c.Locals("user_role", "teacher")
		return c.Next()
	})
	handler.NewGradeHandler(ledger, current, validator.New(), logger).Register(group)
	return app
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestGradeHandler_AdmitSuccess(t *testing.T) {
	svc := &mockLedgerService{
		admitResponse: dto.GradeEventResponse{ID: "evt-1", Sequence: 1, EventType: "draft", Score: 72},
	}
	app := setupGradeApp(svc, &mockCurrentGradeService{})

	resp := postJSON(t, app, "/api/v1/grades/events", fiber.Map{
		"student_id":       "student-1",
		"class_subject_id": "math-7a",
		"term_id":          "term-1",
		"event_type":       "draft",
		"score":            72,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool                   `json:"success"`
		Data    dto.GradeEventResponse `json:"data"`
		Message string                 `json:"message"`
	}
	decodeResponse(t, resp, &response)

	require.True(t, response.Success)
	require.Equal(t, "evt-1", response.Data.ID)

	require.Equal(t, "student-1", svc.lastCandidate.Lane.StudentID)
	require.Equal(t, models.GradeEventDraft, svc.lastCandidate.EventType)
	require.NotNil(t, svc.lastCandidate.Score)
	require.Equal(t, 72.0, *svc.lastCandidate.Score)
	require.Equal(t, "teacher-1", svc.lastActor.ID)
	require.Equal(t, "teacher", svc.lastActor.Role)
}

func TestGradeHandler_AdmitValidationRejected(t *testing.T) {
	app := setupGradeApp(&mockLedgerService{}, &mockCurrentGradeService{})

	cases := []struct {
		name    string
		payload fiber.Map
	}{
		{
			name:    "missing lane fields",
			payload: fiber.Map{"event_type": "draft", "score": 50},
		},
		{
			name: "unknown event type",
			payload: fiber.Map{
				"student_id": "s", "class_subject_id": "c", "term_id": "t",
				"event_type": "finalize",
			},
		},
		{
			name: "score above range",
			payload: fiber.Map{
				"student_id": "s", "class_subject_id": "c", "term_id": "t",
				"event_type": "draft", "score": 101,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, app, "/api/v1/grades/events", tc.payload)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGradeHandler_AdmitErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid transition", err: service.ErrInvalidTransition, status: fiber.StatusUnprocessableEntity},
		{name: "score required", err: service.ErrScoreRequired, status: fiber.StatusUnprocessableEntity},
		{name: "lane conflict", err: service.ErrLaneConflict, status: fiber.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := setupGradeApp(&mockLedgerService{admitErr: tc.err}, &mockCurrentGradeService{})
			resp := postJSON(t, app, "/api/v1/grades/events", fiber.Map{
				"student_id": "s", "class_subject_id": "c", "term_id": "t",
				"event_type": "draft", "score": 50,
			})
			require.Equal(t, tc.status, resp.StatusCode)

			var response struct {
				Success bool `json:"success"`
			}
			decodeResponse(t, resp, &response)
			require.False(t, response.Success)
		})
	}
}

func TestGradeHandler_CurrentGrade(t *testing.T) {
	current := &mockCurrentGradeService{response: dto.CurrentGradeResponse{
		StudentID: "student-1", Status: "locked", CurrentScore: 70,
	}}
	app := setupGradeApp(&mockLedgerService{}, current)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grades/student-1/math-7a/term-1/current", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                     `json:"success"`
		Data    dto.CurrentGradeResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "locked", response.Data.Status)
	require.Equal(t, 70.0, response.Data.CurrentScore)
}

func TestGradeHandler_CurrentGradeNotFound(t *testing.T) {
	app := setupGradeApp(&mockLedgerService{}, &mockCurrentGradeService{err: service.ErrLaneNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grades/student-1/math-7a/term-1/current", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGradeHandler_Chain(t *testing.T) {
	svc := &mockLedgerService{chainResponse: dto.ChainResponse{
		Events: []dto.GradeEventResponse{{ID: "evt-1", Sequence: 1, EventType: "draft"}},
		Length: 1,
	}}
	app := setupGradeApp(svc, &mockCurrentGradeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grades/student-1/math-7a/term-1/chain", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool              `json:"success"`
		Data    dto.ChainResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, 1, response.Data.Length)
	require.Len(t, response.Data.Events, 1)
}

func TestGradeHandler_Verify(t *testing.T) {
	t.Run("valid chain", func(t *testing.T) {
		svc := &mockLedgerService{verifyResponse: dto.ChainVerificationResponse{Valid: true, EventsChecked: 3}}
		app := setupGradeApp(svc, &mockCurrentGradeService{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/grades/student-1/math-7a/term-1/verify", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("broken chain", func(t *testing.T) {
		svc := &mockLedgerService{verifyResponse: dto.ChainVerificationResponse{Valid: false, EventsChecked: 3, FailedEventID: "evt-2"}}
		app := setupGradeApp(svc, &mockCurrentGradeService{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/grades/student-1/math-7a/term-1/verify", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusConflict, resp.StatusCode)

		var response struct {
			Success bool                          `json:"success"`
			Data    dto.ChainVerificationResponse `json:"data"`
		}
		decodeResponse(t, resp, &response)
		require.False(t, response.Success)
		require.Equal(t, "evt-2", response.Data.FailedEventID)
	})
}
