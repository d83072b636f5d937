package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/live/events"
)

// NATSRelay publishes every session event to NATS so off-process consumers
// (reporting, analytics) can follow live sessions without touching the
// in-process hub. Subjects are "quizlive.sessions.<session_id>.<type>".
type NATSRelay struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NATSRelayConfig holds connection settings for the relay.
type NATSRelayConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSRelayConfig returns default relay configuration.
func DefaultNATSRelayConfig() NATSRelayConfig {
	return NATSRelayConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "quizlive.sessions",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NewNATSRelay connects to NATS with the reconnect handlers wired to the
// logger.
func NewNATSRelay(config NATSRelayConfig) (*NATSRelay, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSRelay{nc: nc, subjectPrefix: config.SubjectPrefix}, nil
}

// Publish sends the envelope to the session's subject. Host-only events are
// relayed too; subject-level access control is the consumer's concern.
func (r *NATSRelay) Publish(env events.Envelope) error {
	subject := fmt.Sprintf("%s.%s.%s", r.subjectPrefix, env.SessionID, env.Type)

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := r.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (r *NATSRelay) Close() {
	if r.nc != nil {
		r.nc.Close()
	}
}
