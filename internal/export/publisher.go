package export

import (
	"encoding/json"
	"log"

	"FlowVane/internal/config"
	"FlowVane/internal/model"

	"github.com/nats-io/nats.go"
)

// Publisher publishes flow events and path decisions to NATS subjects as
// JSON.
type Publisher struct {
	nc  *nats.Conn
	cfg config.NATSConfig
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, cfg: cfg}, nil
}

// PublishFlowEvent serializes a flow event and publishes it on the flow
// subject.
func (p *Publisher) PublishFlowEvent(ev *model.FlowEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.cfg.FlowSubject, data)
}

// PublishDecision serializes a path decision and publishes it on the
// decision subject.
func (p *Publisher) PublishDecision(dec *model.PathDecision) error {
	data, err := json.Marshal(dec)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.cfg.DecisionSubject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
