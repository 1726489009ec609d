package publish

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/imubridge/protocol"
)

const (
	DefaultTopicPrefix = "/sensor"

	publishTimeout = 2 * time.Second
)

// MQTTOptions configures an MQTTPublisher.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	TopicPrefix string

	// QoS for every publish. Readings are superseded quickly so 0 is usually right.
	QoS byte

	Log *zap.Logger
}

// MQTTPublisher publishes each quantity of a reading to its own topic, e.g.
// /sensor/supply_voltage, as a plain decimal string.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	log    *zap.Logger
}

// DialMQTT connects to the broker and returns a publisher using it.
func DialMQTT(ctx context.Context, options MQTTOptions) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(options.Broker).
		SetClientID(options.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Second)

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(250)
		return nil, ctx.Err()
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("Failed to connect to MQTT broker %s: %w", options.Broker, err)
	}

	log.Info("Connected to MQTT broker", zap.String("broker", options.Broker))

	return NewMQTTPublisher(client, options), nil
}

// NewMQTTPublisher wraps an already configured client.
func NewMQTTPublisher(client mqtt.Client, options MQTTOptions) *MQTTPublisher {
	prefix := options.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &MQTTPublisher{
		client: client,
		prefix: prefix,
		qos:    options.QoS,
		log:    log,
	}
}

// Topic returns the topic a quantity is published on.
func (m *MQTTPublisher) Topic(q protocol.Quantity) string {
	return path.Join(m.prefix, string(q))
}

func (m *MQTTPublisher) Publish(ctx context.Context, reading protocol.Reading) (err error) {
	tokens := make([]mqtt.Token, 0, len(protocol.Quantities))

	for _, q := range protocol.Quantities {
		value, _ := reading.Value(q)
		payload := strconv.FormatFloat(value, 'f', -1, 64)
		tokens = append(tokens, m.client.Publish(m.Topic(q), m.qos, false, payload))
	}

	timeout := time.NewTimer(publishTimeout)
	defer timeout.Stop()

	for i, token := range tokens {
		select {
		case <-token.Done():
			if terr := token.Error(); terr != nil {
				topic := m.Topic(protocol.Quantities[i])
				m.log.Debug("MQTT publish failed", zap.String("topic", topic), zap.Error(terr))
				err = multierr.Append(err, fmt.Errorf("Failed to publish %s: %w", topic, terr))
			}

		case <-timeout.C:
			topic := m.Topic(protocol.Quantities[i])
			m.log.Debug("MQTT publish timed out", zap.String("topic", topic))
			return multierr.Append(err, fmt.Errorf("Timed out publishing %s", topic))

		case <-ctx.Done():
			return multierr.Append(err, ctx.Err())
		}
	}

	return err
}

func (m *MQTTPublisher) Close() error {
	m.client.Disconnect(250)
	return nil
}

var _ Publisher = (*MQTTPublisher)(nil)
