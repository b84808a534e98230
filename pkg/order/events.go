package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// SubjectCreated carries every accepted order.
const SubjectCreated = "orders.created"

// Publisher emits order events.
type Publisher interface {
	Publish(ctx context.Context, subject string, msg []byte) error
	Close() error
}

// Created is the orders.created payload.
type Created struct {
	Order   Order   `json:"order"`
	Receipt Receipt `json:"receipt"`
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("storefront"))
	if err != nil {
		return nil, fmt.Errorf("order: connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, msg []byte) error {
	return p.conn.Publish(subject, msg)
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
	return nil
}

func publishCreated(ctx context.Context, p Publisher, o Order, r Receipt) error {
	b, err := json.Marshal(Created{Order: o, Receipt: r})
	if err != nil {
		return err
	}
	return p.Publish(ctx, SubjectCreated, b)
}
