package publish_test

import (
	"context"
	"errors"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luma/imubridge/protocol"
	"github.com/luma/imubridge/publish"
	"github.com/luma/imubridge/storage"
)

var reading = protocol.Reading{
	SupplyVoltage:  5.0,
	EnvTemperature: 25.0,
	Yaw:            15.0,
	Pitch:          -10.0,
	Roll:           7.5,
}

// fakeToken completes immediately with err.
type fakeToken struct {
	mqtt.Token
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	Topic   string
	Payload string
}

// fakeClient records publishes. Only the methods the publisher uses are
// implemented.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	messages     []published
	failOn       string
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, published{Topic: topic, Payload: payload.(string)})
	if topic == c.failOn {
		return newFakeToken(errors.New("broker said no"))
	}

	return newFakeToken(nil)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

var _ = Describe("publish", func() {
	Describe("MQTTPublisher", func() {
		It("publishes each quantity on its own topic", func() {
			client := &fakeClient{}
			pub := publish.NewMQTTPublisher(client, publish.MQTTOptions{})

			Expect(pub.Publish(context.Background(), reading)).To(Succeed())
			Expect(client.messages).To(Equal([]published{
				{Topic: "/sensor/supply_voltage", Payload: "5"},
				{Topic: "/sensor/env_temperature", Payload: "25"},
				{Topic: "/sensor/yaw", Payload: "15"},
				{Topic: "/sensor/pitch", Payload: "-10"},
				{Topic: "/sensor/roll", Payload: "7.5"},
			}))
		})

		It("honours a custom topic prefix", func() {
			pub := publish.NewMQTTPublisher(&fakeClient{}, publish.MQTTOptions{TopicPrefix: "lab/imu"})
			Expect(pub.Topic(protocol.QuantityYaw)).To(Equal("lab/imu/yaw"))
		})

		It("reports failed publishes but still sends the rest", func() {
			client := &fakeClient{failOn: "/sensor/yaw"}
			pub := publish.NewMQTTPublisher(client, publish.MQTTOptions{})

			err := pub.Publish(context.Background(), reading)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("/sensor/yaw"))
			Expect(client.messages).To(HaveLen(len(protocol.Quantities)))
		})

		It("logs the topic of a failed publish", func() {
			core, logs := observer.New(zapcore.DebugLevel)
			client := &fakeClient{failOn: "/sensor/roll"}
			pub := publish.NewMQTTPublisher(client, publish.MQTTOptions{Log: zap.New(core)})

			Expect(pub.Publish(context.Background(), reading)).NotTo(Succeed())

			failures := logs.FilterMessage("MQTT publish failed").All()
			Expect(failures).To(HaveLen(1))
			Expect(failures[0].ContextMap()).To(HaveKeyWithValue("topic", "/sensor/roll"))
		})

		It("formats values at full precision", func() {
			client := &fakeClient{}
			pub := publish.NewMQTTPublisher(client, publish.MQTTOptions{})

			frame := protocol.StatusFrame{SupplyVoltage: 3301, EnvTemperature: -3, Yaw: 1234, Pitch: 1, Roll: -1}
			Expect(pub.Publish(context.Background(), frame.Reading())).To(Succeed())

			Expect(client.messages).To(Equal([]published{
				{Topic: "/sensor/supply_voltage", Payload: "3.301"},
				{Topic: "/sensor/env_temperature", Payload: "-0.3"},
				{Topic: "/sensor/yaw", Payload: "123.4"},
				{Topic: "/sensor/pitch", Payload: "0.1"},
				{Topic: "/sensor/roll", Payload: "-0.1"},
			}))
		})

		It("disconnects on close", func() {
			client := &fakeClient{}
			pub := publish.NewMQTTPublisher(client, publish.MQTTOptions{})

			Expect(pub.Close()).To(Succeed())
			Expect(client.disconnected).To(BeTrue())
		})
	})

	Describe("StorePublisher", func() {
		It("stores the latest value of every quantity", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			pub := publish.NewStorePublisher(store)
			Expect(pub.Publish(context.Background(), reading)).To(Succeed())

			doc, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(doc).To(MatchJSON(`{
				"supply_voltage": 5,
				"env_temperature": 25,
				"yaw": 15,
				"pitch": -10,
				"roll": 7.5
			}`))
		})
	})

	Describe("Multi", func() {
		It("publishes to every publisher even when one fails", func() {
			var calls int
			counting := publish.PublisherFunc(func(context.Context, protocol.Reading) error {
				calls++
				return nil
			})
			failing := publish.PublisherFunc(func(context.Context, protocol.Reading) error {
				return errors.New("down")
			})

			err := publish.Multi(failing, counting, counting).Publish(context.Background(), reading)
			Expect(err).To(MatchError("down"))
			Expect(calls).To(Equal(2))
		})

		It("succeeds when every publisher succeeds", func() {
			Expect(publish.Multi(publish.Discard, publish.Discard).Publish(context.Background(), reading)).To(Succeed())
		})
	})
})
