package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"wellbeing-server/pkg/metrics"
	"wellbeing-server/pkg/models"
)

// AnalysisMessage is the envelope published after a completed analysis.
type AnalysisMessage struct {
	UserID    string                 `json:"user_id"`
	Timestamp time.Time              `json:"timestamp"`
	Report    *models.AnalysisReport `json:"report"`
}

// AMQPConfig holds AMQP client configuration
type AMQPConfig struct {
	URL          string
	Exchange     string
	RoutingKey   string
	ConsumeQueue string
	MaxRetries   int
	RetryBackoff time.Duration
}

// usageEventBindingKey is the routing key external producers use to
// push usage events onto the exchange.
const usageEventBindingKey = "usage.event"

// AMQPClient publishes analysis results to an AMQP exchange. When no
// URL is configured the client stays disabled and every publish is a
// logged no-op.
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPClient creates a new AMQP client
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 2 * time.Second
	}

	return &AMQPClient{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Enabled reports whether the client has a configured endpoint.
func (c *AMQPClient) Enabled() bool {
	return c.config.URL != ""
}

// Connect establishes a connection to the AMQP server and declares the
// analysis exchange. Disabled clients return immediately.
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" {
		c.logger.Warn("AMQP_URL not set, AMQP functionality will be disabled")
		return fmt.Errorf("AMQP URL not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connChan := make(chan struct {
		conn *amqp.Connection
		err  error
	}, 1)

	go func() {
		conn, err := amqp.Dial(c.config.URL)
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
			return
		case connChan <- struct {
			conn *amqp.Connection
			err  error
		}{conn, err}:
		}
	}()

	var conn *amqp.Connection
	var err error
	select {
	case result := <-connChan:
		conn = result.conn
		err = result.err
	case <-ctx.Done():
		return fmt.Errorf("connection to AMQP server timed out after 5 seconds")
	}

	if err != nil {
		if metrics.AMQPConnectionErrors != nil {
			metrics.AMQPConnectionErrors.Inc()
		}
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	c.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	c.channel = channel

	err = channel.ExchangeDeclare(
		c.config.Exchange,
		"topic",
		true,  // Durable
		false, // Auto-delete
		false, // Internal
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP exchange: %w", err)
	}

	c.connected = true
	if metrics.AMQPConnectionStatus != nil {
		metrics.AMQPConnectionStatus.Set(1)
	}
	c.logger.WithFields(logrus.Fields{
		"url":      c.config.URL,
		"exchange": c.config.Exchange,
	}).Info("Connected to AMQP server")

	c.stopChan = make(chan struct{})
	go c.monitorConnection()

	return nil
}

// ConnectWithRetry keeps trying to connect with a fixed backoff until
// it succeeds, retries are exhausted or the context is done.
func (c *AMQPClient) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if lastErr = c.Connect(); lastErr == nil {
			return nil
		}

		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   lastErr.Error(),
		}).Warn("AMQP connection attempt failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.RetryBackoff):
		}
	}
	return fmt.Errorf("exhausted AMQP connection attempts: %w", lastErr)
}

// monitorConnection watches for the connection closing and attempts to
// reconnect until told to stop.
func (c *AMQPClient) monitorConnection() {
	closeChan := make(chan *amqp.Error, 1)
	c.connMutex.RLock()
	if c.conn != nil {
		c.conn.NotifyClose(closeChan)
	}
	c.connMutex.RUnlock()

	select {
	case <-c.stopChan:
		return
	case amqpErr := <-closeChan:
		c.connMutex.Lock()
		c.connected = false
		c.connMutex.Unlock()

		if metrics.AMQPConnectionStatus != nil {
			metrics.AMQPConnectionStatus.Set(0)
		}
		if amqpErr != nil {
			c.logger.WithField("error", amqpErr.Error()).Warn("AMQP connection lost, reconnecting")
			if metrics.AMQPConnectionErrors != nil {
				metrics.AMQPConnectionErrors.Inc()
			}
		}

		for {
			select {
			case <-c.stopChan:
				return
			case <-time.After(c.config.RetryBackoff):
			}

			if err := c.Connect(); err == nil {
				return
			}
		}
	}
}

// Disconnect closes the AMQP connection
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.connected {
		return
	}

	close(c.stopChan)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	c.connected = false
	if metrics.AMQPConnectionStatus != nil {
		metrics.AMQPConnectionStatus.Set(0)
	}
	c.logger.Info("Disconnected from AMQP server")
}

// IsConnected returns the connection status
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishAnalysis publishes a completed analysis report, routed by the
// configured key plus the user ID. A disabled client is a silent no-op.
func (c *AMQPClient) PublishAnalysis(report *models.AnalysisReport) error {
	if !c.Enabled() {
		c.logger.WithField("user_id", report.UserID).Debug("AMQP disabled, skipping analysis publish")
		return nil
	}
	if !c.IsConnected() {
		return fmt.Errorf("not connected to AMQP server")
	}

	message := AnalysisMessage{
		UserID:    report.UserID,
		Timestamp: time.Now(),
		Report:    report,
	}

	bodyBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis message: %w", err)
	}

	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	if !c.connected || c.channel == nil {
		return fmt.Errorf("lost AMQP connection before publishing")
	}

	err = c.channel.Publish(
		c.config.Exchange,
		fmt.Sprintf("%s.%s", c.config.RoutingKey, report.UserID),
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         bodyBytes,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish analysis to AMQP: %w", err)
	}

	if metrics.AMQPPublishedMessages != nil {
		metrics.AMQPPublishedMessages.WithLabelValues(c.config.Exchange).Inc()
	}
	c.logger.WithField("user_id", report.UserID).Debug("Successfully published analysis to AMQP")
	return nil
}

// UsageEventHandler processes a usage event received from the ingest queue.
type UsageEventHandler func(ctx context.Context, event models.UsageEvent) error

// ConsumeUsageEvents binds the configured ingest queue to the exchange
// and feeds decoded events to the handler until the context is done.
// Interrupted consumers retry with the configured backoff.
func (c *AMQPClient) ConsumeUsageEvents(ctx context.Context, handler UsageEventHandler) error {
	if !c.Enabled() {
		return fmt.Errorf("AMQP not configured")
	}
	if c.config.ConsumeQueue == "" {
		return fmt.Errorf("AMQP ingest queue not configured")
	}

	for {
		err := c.consumeOnce(ctx, handler)
		if err == nil || ctx.Err() != nil {
			return err
		}

		c.logger.WithError(err).Warn("AMQP consumer interrupted, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopChan:
			return nil
		case <-time.After(c.config.RetryBackoff):
		}
	}
}

func (c *AMQPClient) consumeOnce(ctx context.Context, handler UsageEventHandler) error {
	c.connMutex.RLock()
	conn := c.conn
	connected := c.connected
	c.connMutex.RUnlock()

	if !connected || conn == nil {
		return fmt.Errorf("not connected to AMQP server")
	}

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer channel.Close()

	queue, err := channel.QueueDeclare(
		c.config.ConsumeQueue,
		true,  // Durable
		false, // Auto-delete
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare ingest queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, usageEventBindingKey, c.config.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind ingest queue: %w", err)
	}

	deliveries, err := channel.Consume(
		queue.Name,
		"",    // Consumer tag
		false, // Auto-ack
		false, // Exclusive
		false, // No-local
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"queue":    queue.Name,
		"exchange": c.config.Exchange,
	}).Info("Consuming usage events from AMQP")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopChan:
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("AMQP delivery channel closed")
			}

			var event models.UsageEvent
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				c.logger.WithError(err).Warn("Discarding malformed usage event message")
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, event); err != nil {
				c.logger.WithFields(logrus.Fields{
					"user_id": event.UserID,
					"error":   err.Error(),
				}).Warn("Usage event handler rejected message")
				delivery.Nack(false, false)
				continue
			}

			delivery.Ack(false)
			if metrics.UsageEventsIngested != nil {
				metrics.UsageEventsIngested.WithLabelValues("amqp").Inc()
			}
		}
	}
}
