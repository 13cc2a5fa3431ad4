package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradeledger-api/internal/dto"
	"github.com/noah-isme/gradeledger-api/internal/models"
)

func setupModificationTest(t *testing.T) (*fakeEventStore, LedgerService, ModificationService) {
	t.Helper()

	store := newFakeEventStore()
	ledger := NewLedgerService(store, nil, nil, nil, testLogger())
	svc, err := NewModificationService(ledger, store, validator.New(), testLogger())
	require.NoError(t, err)
	return store, ledger, svc
}

func admin() Principal {
	return Principal{ID: "admin-1", Role: "admin"}
}

func TestModificationRequestOnLockedLane(t *testing.T) {
	store, ledger, svc := setupModificationTest(t)
	lane := testLane()
	admitAll(t, ledger, lane, lockedLaneSteps())

	evidence := json.RawMessage(`{"note":"scan attached","documents":[{"url":"https://files.example/scan.pdf"}]}`)
	request, err := svc.Request(context.Background(), lane, dto.ModificationRequestCreate{
		Reason:             "marking error on question 4",
		SupportingEvidence: evidence,
	}, Principal{ID: "teacher-1", Role: "teacher"})

	require.NoError(t, err)
	require.Equal(t, string(models.GradeEventModifyRequest), request.EventType)
	require.Equal(t, "marking error on question 4", request.ModificationReason)
	require.JSONEq(t, string(evidence), string(request.SupportingEvidence))

	events, err := store.ListOrdered(context.Background(), lane)
	require.NoError(t, err)
	require.Len(t, events, 4)
}

func TestModificationRequestRejectedOnUnlockedLane(t *testing.T) {
	_, ledger, svc := setupModificationTest(t)
	lane := testLane()
	admitAll(t, ledger, lane, []EventCandidate{
		{EventType: models.GradeEventDraft, Score: score(70)},
	})

	_, err := svc.Request(context.Background(), lane, dto.ModificationRequestCreate{
		Reason: "please reopen",
	}, Principal{ID: "teacher-1"})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestModificationRequestEvidenceSchema(t *testing.T) {
	_, ledger, svc := setupModificationTest(t)
	lane := testLane()
	admitAll(t, ledger, lane, lockedLaneSteps())

	cases := []struct {
		name     string
		evidence string
	}{
		{name: "unknown property", evidence: `{"attachment":"x"}`},
		{name: "document without url", evidence: `{"documents":[{"description":"scan"}]}`},
		{name: "not an object", evidence: `["scan.pdf"]`},
		{name: "malformed json", evidence: `{"note":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Request(context.Background(), lane, dto.ModificationRequestCreate{
				Reason:             "appeal",
				SupportingEvidence: json.RawMessage(tc.evidence),
			}, Principal{ID: "teacher-1"})
			require.ErrorIs(t, err, ErrInvalidEvidence)
		})
	}
}

func TestModificationResolveApproved(t *testing.T) {
	store, ledger, svc := setupModificationTest(t)
	lane := testLane()
	admitAll(t, ledger, lane, lockedLaneSteps())

	request, err := svc.Request(context.Background(), lane, dto.ModificationRequestCreate{
		Reason: "marking error",
	}, Principal{ID: "teacher-1"})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), request.ID, dto.ModificationResolveRequest{
		Decision: "approved",
	}, admin())
	require.NoError(t, err)
	require.Equal(t, string(models.GradeEventModifyApproved), resolved.EventType)
	require.Equal(t, "marking error", resolved.ModificationReason)
	require.NotNil(t, resolved.PreviousEventID)
	require.Equal(t, request.ID, *resolved.PreviousEventID)

	events, err := store.ListOrdered(context.Background(), lane)
	require.NoError(t, err)
	grade, err := Project(events)
	require.NoError(t, err)
	require.Equal(t, models.GradeStatusDraft, grade.Status, "approval reopens the lane")
}

func TestModificationResolveRejectedKeepsLock(t *testing.T) {
	store, ledger, svc := setupModificationTest(t)
	lane := testLane()
	admitAll(t, ledger, lane, lockedLaneSteps())

	request, err := svc.Request(context.Background(), lane, dto.ModificationRequestCreate{
		Reason: "appeal",
	}, Principal{ID: "teacher-1"})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), request.ID, dto.ModificationResolveRequest{
		Decision: "rejected",
	}, admin())
	require.NoError(t, err)
	require.Equal(t, string(models.GradeEventModifyRejected), resolved.EventType)

	events, err := store.ListOrdered(context.Background(), lane)
	require.NoError(t, err)
	grade, err := Project(events)
	require.NoError(t, err)
	require.Equal(t, models.GradeStatusLocked, grade.Status)
	require.Equal(t, 70.0, grade.CurrentScore)
}

func TestModificationResolveTwiceFails(t *testing.T) {
	_, ledger, svc := setupModificationTest(t)
	lane := testLane()
	admitAll(t, ledger, lane, lockedLaneSteps())

	request, err := svc.Request(context.Background(), lane, dto.ModificationRequestCreate{
		Reason: "appeal",
	}, Principal{ID: "teacher-1"})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), request.ID, dto.ModificationResolveRequest{Decision: "rejected"}, admin())
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), request.ID, dto.ModificationResolveRequest{Decision: "approved"}, admin())
	require.ErrorIs(t, err, ErrRequestAlreadyResolved)
}

func TestModificationResolveUnknownRequest(t *testing.T) {
	_, ledger, svc := setupModificationTest(t)
	lane := testLane()
	admitAll(t, ledger, lane, lockedLaneSteps())

	_, err := svc.Resolve(context.Background(), "missing-id", dto.ModificationResolveRequest{Decision: "approved"}, admin())
	require.ErrorIs(t, err, ErrModificationNotFound)
}

func TestModificationResolveRequiresRequestEvent(t *testing.T) {
	store, ledger, svc := setupModificationTest(t)
	lane := testLane()
	admitAll(t, ledger, lane, lockedLaneSteps())

	head, err := store.Head(context.Background(), lane)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), head.ID, dto.ModificationResolveRequest{Decision: "approved"}, admin())
	require.ErrorIs(t, err, ErrModificationNotFound)
}
