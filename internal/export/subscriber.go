package export

import (
	"encoding/json"
	"log"

	"FlowVane/internal/config"
	"FlowVane/internal/model"

	"github.com/nats-io/nats.go"
)

// FlowEventHandler processes a received flow event.
type FlowEventHandler func(ev *model.FlowEvent)

// DecisionHandler processes a received path decision.
type DecisionHandler func(dec *model.PathDecision)

// Subscriber consumes flow events or path decisions from NATS.
type Subscriber struct {
	nc   *nats.Conn
	subs []*nats.Subscription
	cfg  config.NATSConfig
}

// NewSubscriber connects to the configured NATS server.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Subscriber{nc: nc, cfg: cfg}, nil
}

// SubscribeFlowEvents starts delivering flow events to the handler. Malformed
// messages are logged and dropped.
func (s *Subscriber) SubscribeFlowEvents(handler FlowEventHandler) error {
	sub, err := s.nc.Subscribe(s.cfg.FlowSubject, func(msg *nats.Msg) {
		var ev model.FlowEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("Error unmarshalling flow event: %v", err)
			return
		}
		handler(&ev)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	log.Printf("Subscribed to '%s'. Waiting for flow events...", s.cfg.FlowSubject)
	return nil
}

// SubscribeDecisions starts delivering path decisions to the handler.
func (s *Subscriber) SubscribeDecisions(handler DecisionHandler) error {
	sub, err := s.nc.Subscribe(s.cfg.DecisionSubject, func(msg *nats.Msg) {
		var dec model.PathDecision
		if err := json.Unmarshal(msg.Data, &dec); err != nil {
			log.Printf("Error unmarshalling decision: %v", err)
			return
		}
		handler(&dec)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	log.Printf("Subscribed to '%s'. Waiting for decisions...", s.cfg.DecisionSubject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
