package main

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/api"
	"github.com/mcdev12/quizlive/go/internal/broadcast"
	"github.com/mcdev12/quizlive/go/internal/content"
	"github.com/mcdev12/quizlive/go/internal/gateway"
	"github.com/mcdev12/quizlive/go/internal/identity"
	"github.com/mcdev12/quizlive/go/internal/live"
	"github.com/mcdev12/quizlive/go/internal/store/postgres"
)

type Services struct {
	Coordinator *live.Coordinator
	API         *api.Handler
	Gateway     *gateway.WebSocketHandler

	relay *broadcast.NATSRelay
}

// setupServices wires the dependency chain:
// store -> hub (+ optional NATS relay) -> registry -> coordinator -> handlers.
func setupServices(cfg *Config, database *sql.DB, pool *pgxpool.Pool) (*Services, error) {
	sessionStore := postgres.New(database, pool)

	var relay *broadcast.NATSRelay
	var hubRelay broadcast.Relay
	if cfg.NATS.Enabled {
		r, err := broadcast.NewNATSRelay(broadcast.NATSRelayConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			MaxReconnects: -1,
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
		if err != nil {
			return nil, err
		}
		relay = r
		hubRelay = r
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS relay enabled")
	}
	hub := broadcast.NewHub(hubRelay)

	contentClient := content.NewClient(cfg.Content.BaseURL)
	if cfg.Content.APIKey != "" {
		contentClient.SetHeader("X-API-Key", cfg.Content.APIKey)
	}

	clock := clockwork.NewRealClock()
	registry := live.NewRegistry(identity.NewStaticResolver(), clock)

	coordinator := live.NewCoordinator(live.Config{
		Content:  contentClient,
		Registry: registry,
		Store:    sessionStore,
		Hub:      hub,
		Clock:    clock,
	})

	connectionManager := gateway.NewConnectionManager(
		gateway.DefaultConnectionConfig(),
		coordinator.Disconnect,
	)

	return &Services{
		Coordinator: coordinator,
		API:         api.NewHandler(coordinator),
		Gateway:     gateway.NewWebSocketHandler(connectionManager, coordinator),
		relay:       relay,
	}, nil
}

// Close releases resources held outside the coordinator.
func (s *Services) Close() {
	if s.relay != nil {
		s.relay.Close()
	}
}
