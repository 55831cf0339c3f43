package notify

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/hivewatch/honeynet-analytics/internal/alerts"
)

// Subject carrying alert notifications for downstream consumers.
const AlertSubject = "honeynet.alerts"

// NATSPublisher publishes alerts to a NATS subject.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the broker at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("honeynet-analytics"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(alert alerts.Alert) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return fmt.Errorf("nats connection not available")
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-message-id", uuid.New().String())
	headers.Set("x-event-id", strconv.FormatInt(alert.ID, 10))
	headers.Set("x-source-address", alert.SourceAddress)
	headers.Set("x-severity", alert.Severity)

	return p.conn.PublishMsg(&nats.Msg{
		Subject: AlertSubject,
		Data:    body,
		Header:  headers,
	})
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
