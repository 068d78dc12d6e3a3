// Package events publishes session lifecycle updates to an AMQP topic exchange.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/harunnryd/mockview/pkg/logging"
	"github.com/harunnryd/mockview/pkg/metrics"
	"github.com/harunnryd/mockview/pkg/report"
)

const DefaultExchange = "session_updates"

// Config for the AMQP publisher.
type Config struct {
	URL      string
	Exchange string
}

// Update is the message body published for every lifecycle event.
type Update struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	Time      time.Time         `json:"time"`
	Tags      map[string]string `json:"tags,omitempty"`
	Fields    map[string]any    `json:"fields,omitempty"`
	Report    *report.Report    `json:"report,omitempty"`
}

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards lifecycle metrics events and finished reports to the
// exchange under "session.<id>" routing keys.
type Publisher struct {
	exchange string
	log      *slog.Logger

	mu   sync.Mutex
	ch   channel
	conn *amqp.Connection
}

// lifecycle lists the metrics events worth publishing.
var lifecycle = map[string]bool{
	metrics.EventSessionStart: true,
	metrics.EventSessionEnd:   true,
	metrics.EventPhaseChange:  true,
	metrics.EventReportFailed: true,
}

func Dial(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("events: amqp url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	exchange := exchangeName(cfg.Exchange)
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		exchange: exchangeName(exchange),
		ch:       ch,
		log:      logging.NewComponentLogger(logger, "events"),
	}
}

func exchangeName(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultExchange
	}
	return name
}

func RoutingKey(sessionID string) string {
	return fmt.Sprintf("session.%s", sessionID)
}

// RecordEvent publishes lifecycle events; everything else is ignored.
func (p *Publisher) RecordEvent(ev metrics.MetricsEvent) {
	if !lifecycle[ev.Name] || ev.Session() == "" {
		return
	}
	err := p.publish(Update{
		Type:      ev.Name,
		SessionID: ev.Session(),
		Time:      ev.Time,
		Tags:      ev.Tags,
		Fields:    ev.Fields,
	})
	if err != nil {
		p.log.Warn("event_publish_failed",
			slog.String("event", ev.Name),
			slog.String("session_id", ev.Session()),
			slog.String("error", err.Error()))
	}
}

func (p *Publisher) Name() string { return "amqp" }

// Save publishes the finished report.
func (p *Publisher) Save(ctx context.Context, r report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.publish(Update{
		Type:      metrics.EventReportReady,
		SessionID: r.SessionID,
		Time:      r.CreatedAt,
		Report:    &r,
	})
}

func (p *Publisher) publish(u Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return errors.New("events: publisher closed")
	}
	return p.ch.Publish(p.exchange, RoutingKey(u.SessionID), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   u.Time,
		Body:        body,
	})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

var (
	_ metrics.Observer = (*Publisher)(nil)
	_ report.Sink      = (*Publisher)(nil)
)
