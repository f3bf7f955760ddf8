package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/repository"
	postgresrepo "github.com/cinepass/cinepass/internal/repository/postgres"
	redisrepo "github.com/cinepass/cinepass/internal/repository/redis"
)

type Config struct {
	ScreeningSummaryTTL time.Duration
	AvailabilityTTL     time.Duration
	DefaultSeatsPage    int
	MaxSeatsPage        int
	SeatMapTTL          time.Duration
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.ScreeningSummaryTTL <= 0 {
		cfg.ScreeningSummaryTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.DefaultSeatsPage <= 0 {
		cfg.DefaultSeatsPage = 100
	}

	if cfg.MaxSeatsPage <= 0 {
		cfg.MaxSeatsPage = 500
	}

	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 15 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// GetScreening retrieves a screening summary through the cache.
//
// Returns:
//   - error: query.ErrScreeningNotFound if the screening does not exist.
func (s *Service) GetScreening(ctx context.Context, id int64) (*domain.Screening, error) {
	const op = "service.query.GetScreening"

	key := redisrepo.KeyScreeningSummary(id)

	screening, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.ScreeningSummaryTTL,
		func(ctx context.Context) (domain.Screening, error) {
			sc, err := s.store.Query().GetScreening(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Screening{}, ErrScreeningNotFound
				}

				return domain.Screening{}, err
			}

			return *sc, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrScreeningNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrScreeningNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &screening, nil
}

// CountsByStatus returns availability counters for a screening through the
// cache.
func (s *Service) CountsByStatus(ctx context.Context, screeningID int64) (*domain.ScreeningCounts, error) {
	const op = "service.query.CountsByStatus"

	key := redisrepo.KeyScreeningAvailability(screeningID)

	counts, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.ScreeningCounts, error) {
			c, err := s.store.Query().CountsByStatus(ctx, screeningID)
			if err != nil {
				return domain.ScreeningCounts{}, err
			}

			return *c, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &counts, nil
}

// ListScreeningSeats lists the seat map for a screening. Only the full
// unfiltered first page goes through the cache; narrower queries hit the
// store directly.
func (s *Service) ListScreeningSeats(
	ctx context.Context,
	screeningID int64,
	onlyAvailable bool,
	limit, offset int,
) ([]domain.SeatWithStatus, error) {
	const op = "service.query.ListScreeningSeats"

	if limit <= 0 {
		limit = s.cfg.DefaultSeatsPage
	}
	if limit > s.cfg.MaxSeatsPage {
		limit = s.cfg.MaxSeatsPage
	}
	if offset < 0 {
		offset = 0
	}

	if !onlyAvailable && offset == 0 && limit == s.cfg.DefaultSeatsPage {
		key := redisrepo.KeyScreeningSeatMap(screeningID)

		seats, err := redisrepo.GetOrSetJSON(
			ctx,
			s.cache,
			key,
			s.cfg.SeatMapTTL,
			func(ctx context.Context) ([]domain.SeatWithStatus, error) {
				return s.store.Query().ListScreeningSeats(ctx, screeningID, false, limit, offset)
			},
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return seats, nil
	}

	seats, err := s.store.Query().ListScreeningSeats(ctx, screeningID, onlyAvailable, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seats, nil
}
