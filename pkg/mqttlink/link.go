// Package mqttlink connects a device controller to an MQTT broker: control messages
// come in on one topic, events and captured lines go out on two others.
package mqttlink

import (
	"fmt"
	"github.com/eclipse/paho.mqtt.golang"
	"math/rand"
	"time"
)

const publishTimeout = time.Second

type Logger interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

type Config struct {
	Username      string
	Password      string
	BrokerAddress string
	Logger        Logger
	DebugLogger   Logger
}

// client is the part of mqtt.Client the link uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

type Link struct {
	client client
}

// Connect dials the broker and blocks until the session is up. Paho's package-level
// loggers are pointed at cfg's loggers when set.
func Connect(cfg Config) (*Link, error) {
	if cfg.Logger != nil {
		mqtt.ERROR = cfg.Logger
		mqtt.CRITICAL = cfg.Logger
		mqtt.WARN = cfg.Logger
	}
	if cfg.DebugLogger != nil {
		mqtt.DEBUG = cfg.DebugLogger
	}

	c := mqtt.NewClient(clientOptions(cfg))
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.BrokerAddress, token.Error())
	}
	return &Link{c}, nil
}

func clientOptions(cfg Config) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(cfg.BrokerAddress).
		SetClientID(generateClientId()).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(2 * time.Second).
		SetPingTimeout(time.Second).
		SetOrderMatters(false)
}

// Publish sends payload at QoS 0 and waits briefly for the client to hand it off.
func (l *Link) Publish(topic string, payload []byte) error {
	token := l.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// Subscribe delivers every message on topic to handler, parsed as a ControlCommand.
func (l *Link) Subscribe(topic string, handler ControlHandler) error {
	token := l.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		cmd, err := ParseControl(msg.Payload())
		if err != nil {
			handler.Invalid(msg.Topic(), string(msg.Payload()))
			return
		}
		handler.Control(cmd)
	})
	token.Wait()
	return token.Error()
}

func (l *Link) Close() {
	l.client.Disconnect(1000)
}

func generateClientId() string {
	now := time.Now().Unix()
	random := rand.Intn(1000000)
	return fmt.Sprintf("devicectl-%v-%v", now, random)
}

// Topics names the per-device topic tree: <prefix>/<device>/{control,events,capture}.
type Topics struct {
	Prefix string
	Device string
}

func (t Topics) Control() string {
	return t.topic("control")
}

func (t Topics) Events() string {
	return t.topic("events")
}

func (t Topics) Capture() string {
	return t.topic("capture")
}

func (t Topics) topic(leaf string) string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, t.Device, leaf)
}
