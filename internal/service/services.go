package service

import (
	"github.com/cinepass/cinepass/internal/events"
	"github.com/cinepass/cinepass/internal/gateway/iamport"
	postgresrepo "github.com/cinepass/cinepass/internal/repository/postgres"
	redisrepo "github.com/cinepass/cinepass/internal/repository/redis"
	"github.com/cinepass/cinepass/internal/service/admin"
	"github.com/cinepass/cinepass/internal/service/booking"
	"github.com/cinepass/cinepass/internal/service/query"
	"github.com/cinepass/cinepass/internal/service/settlement"
)

type Services struct {
	Booking    *booking.Service
	Settlement *settlement.Service
	Query      *query.Service
	Admin      *admin.Service
}

type Config struct {
	Booking booking.Config
	Query   query.Config
}

func NewServices(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.ScreeningsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	publisher *events.Publisher,
	gateway *iamport.Client,
	cfg Config,
) *Services {
	return &Services{
		Booking:    booking.New(store, cache, pubsub, publisher, limiter, cfg.Booking),
		Settlement: settlement.New(store, gateway, publisher),
		Query:      query.New(store, cache, cfg.Query),
		Admin:      admin.New(store, cache, pubsub),
	}
}
