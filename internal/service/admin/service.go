package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cinepass/cinepass/internal/domain"
	"github.com/cinepass/cinepass/internal/repository"
	postgresrepo "github.com/cinepass/cinepass/internal/repository/postgres"
	redisrepo "github.com/cinepass/cinepass/internal/repository/redis"
	"github.com/cinepass/cinepass/internal/uow"
)

type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisrepo.ScreeningsPubSub
	uow    *uow.UoW
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, pubsub *redisrepo.ScreeningsPubSub) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
	}
}

// CreateTheater creates a theater record and returns its ID.
//
// Returns:
//   - error: admin.ErrTheaterConflict if a theater with the same name exists.
func (s *Service) CreateTheater(ctx context.Context, name string) (int64, error) {
	const op = "service.admin.CreateTheater"

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Admin().With(tx).CreateTheater(ctx, name)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s: %w", op, ErrTheaterConflict)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})

	return id, err
}

// BatchCreateSeats inserts multiple seats for a theater within a
// transactional Unit of Work.
//
// Returns:
//   - error: admin.ErrSeatsConflict if a seat with the same identifying data
//     already exists.
func (s *Service) BatchCreateSeats(ctx context.Context, theaterID int64, seats []domain.Seat) error {
	const op = "service.admin.BatchCreateSeats"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		err := s.store.Admin().With(tx).BatchCreateSeats(ctx, theaterID, seats)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s: %w", op, ErrSeatsConflict)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})

	return err
}

// CreateScreeningWithSeats creates a screening and initializes its bookable
// seats: one available screening_seats row per theater seat, in the same
// transaction as the screening itself.
//
// Returns:
//   - error: admin.ErrScreeningConflict on a uniqueness violation.
//   - error: admin.ErrFailedToInitSeats if seat initialization fails.
func (s *Service) CreateScreeningWithSeats(
	ctx context.Context,
	theaterID int64,
	title string,
	starts time.Time,
) (int64, error) {
	const op = "service.admin.CreateScreeningWithSeats"

	var screeningID int64
	var err error

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		screeningID, err = s.store.Admin().
			With(tx).
			CreateScreening(ctx, theaterID, title, starts)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s: %w", op, ErrScreeningConflict)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		if _, err := s.store.Admin().
			With(tx).
			InitScreeningSeats(ctx, screeningID, theaterID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrFailedToInitSeats)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateScreening(ctx, screeningID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishScreeningChanged(ctx, screeningID)
			}
		})
		return nil
	})
	return screeningID, err
}
