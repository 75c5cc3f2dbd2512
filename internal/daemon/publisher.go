package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Publisher sends conversion run summaries to a NATS subject so downstream
// consumers (cache invalidators, deploy hooks) can react to fresh output.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to NATS. Subject defaults to "wpb2h.runs".
func NewPublisher(url, subject string) (*Publisher, error) {
	if subject == "" {
		subject = "wpb2h.runs"
	}
	conn, err := nats.Connect(url, nats.Name("wpblock2html"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", "url", url, "subject", subject)
	return &Publisher{conn: conn, subject: subject}, nil
}

// PublishRun publishes one run summary.
func (p *Publisher) PublishRun(summary *RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}
