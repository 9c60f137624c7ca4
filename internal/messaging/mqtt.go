package messaging

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"pixybot/internal/logger"
	"pixybot/internal/types"
)

// MQTTPublisher mirrors controller telemetry to an MQTT broker under
// <prefix>/<session>/{action,lifecycle}.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	session string
	logger  *logger.Logger
}

func NewMQTTPublisher(broker, prefix, session string, l *logger.Logger) *MQTTPublisher {
	p := &MQTTPublisher{
		prefix:  prefix,
		session: session,
		logger:  l.WithTag("mqtt"),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("pixybot-" + session)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		p.logger.Infof("Connected to MQTT broker %s", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.logger.Warnf("MQTT connection lost: %v", err)
	}
	p.client = mqtt.NewClient(opts)
	return p
}

func (p *MQTTPublisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (p *MQTTPublisher) topic(leaf string) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, p.session, leaf)
}

func (p *MQTTPublisher) publish(leaf string, payload []byte) error {
	token := p.client.Publish(p.topic(leaf), 0, true, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("mqtt publish to %s timed out", p.topic(leaf))
	}
	return token.Error()
}

func (p *MQTTPublisher) PublishAction(a types.MotorAction) error {
	payload, err := NewActionReport(p.session, a, time.Now()).JSON()
	if err != nil {
		return err
	}
	return p.publish("action", payload)
}

func (p *MQTTPublisher) PublishLifecycle(state string) error {
	return p.publish("lifecycle", []byte(state))
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
