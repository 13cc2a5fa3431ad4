package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/gradeledger-api/internal/models"
)

func TestAuditLogCreateAndList(t *testing.T) {
	repo := NewAuditLogRepository(setupTestDB(t))
	ctx := context.Background()

	entries := []*models.AuditLog{
		{ActorID: "teacher-1", ActorRole: "teacher", Action: "grade_event.draft", EntityType: "grade_event", EntityID: "evt-1"},
		{ActorID: "teacher-1", ActorRole: "teacher", Action: "grade_event.lock", EntityType: "grade_event", EntityID: "evt-2"},
		{ActorID: "system", Action: "grade_chain.integrity_failure", EntityType: "grade_lane", EntityID: "evt-2",
			Metadata: datatypes.JSONMap{"lane": "student-1:math-7a:term-1"}},
	}
	for _, entry := range entries {
		require.NoError(t, repo.Create(ctx, entry))
	}

	all, total, err := repo.List(ctx, AuditLogFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, all, 3)

	byActor, total, err := repo.List(ctx, AuditLogFilter{ActorID: "system"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "grade_chain.integrity_failure", byActor[0].Action)
	require.Equal(t, "student-1:math-7a:term-1", byActor[0].Metadata["lane"])

	byAction, total, err := repo.List(ctx, AuditLogFilter{Action: "grade_event.lock"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "evt-2", byAction[0].EntityID)
}

func TestAuditLogListPagination(t *testing.T) {
	repo := NewAuditLogRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, repo.Create(ctx, &models.AuditLog{
			ActorID: "teacher-1", Action: "grade_event.draft", EntityType: "grade_event",
		}))
	}

	page, total, err := repo.List(ctx, AuditLogFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.EqualValues(t, 25, total)
	require.Len(t, page, 10)

	last, _, err := repo.List(ctx, AuditLogFilter{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, last, 5)
}
