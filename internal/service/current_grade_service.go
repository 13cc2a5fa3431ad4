package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeledger-api/internal/dto"
	"github.com/noah-isme/gradeledger-api/internal/models"
	"github.com/noah-isme/gradeledger-api/internal/observability"
	"github.com/noah-isme/gradeledger-api/internal/repository"
)

// CurrentGradeService serves the projected snapshot for a lane. The cache is
// a read optimization only: it is rewritten on every admission and a miss
// always falls back to re-projecting the chain.
type CurrentGradeService interface {
	ProjectionRefresher
	Get(ctx context.Context, lane models.LaneKey) (dto.CurrentGradeResponse, error)
}

type currentGradeService struct {
	store  repository.GradeEventRepository
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCurrentGradeService builds the projection service.
func NewCurrentGradeService(store repository.GradeEventRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) CurrentGradeService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &currentGradeService{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "current_grade_service").Logger(),
	}
}

func cacheKey(lane models.LaneKey) string {
	return fmt.Sprintf("gradeledger:current:%s", lane.String())
}

func (s *currentGradeService) Get(ctx context.Context, lane models.LaneKey) (dto.CurrentGradeResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey(lane)).Result(); err == nil && cached != "" {
			var grade models.CurrentGrade
			if err := json.Unmarshal([]byte(cached), &grade); err == nil {
				observability.ProjectionCacheRequests().WithLabelValues("hit").Inc()
				return dto.NewCurrentGradeResponse(grade), nil
			}
		}
	}

	observability.ProjectionCacheRequests().WithLabelValues("miss").Inc()

	grade, err := s.Refresh(ctx, lane)
	if err != nil {
		return dto.CurrentGradeResponse{}, err
	}

	return dto.NewCurrentGradeResponse(grade), nil
}

// Refresh re-projects the lane from its chain and rewrites the cache entry.
// The projection is replaced wholesale, never patched.
func (s *currentGradeService) Refresh(ctx context.Context, lane models.LaneKey) (models.CurrentGrade, error) {
	events, err := s.store.ListOrdered(ctx, lane)
	if err != nil {
		return models.CurrentGrade{}, err
	}

	grade, err := Project(events)
	if err != nil {
		return models.CurrentGrade{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(grade)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey(lane), payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Str("lane", lane.String()).Msg("failed to cache projection")
			}
		}
	}

	return grade, nil
}
