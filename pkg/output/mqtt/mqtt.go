// Package mqtt publishes scan results to an MQTT broker, one JSON payload
// per node topic.
package mqtt

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/config"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/output"
	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/scan"
)

const (
	DefaultClientID = "capgrid-scanner"
	DefaultTopic    = "capgrid"
)

type MQTT struct {
	client    paho.Client
	topic     string
	converted bool
}

var _ output.Output = (*MQTT)(nil)

// New connects to the broker. The node topic is <topic>/<row>/<col>;
// converted adds the capacitance field to the payload.
func New(cfg config.MQTTConfig, converted bool) (*MQTT, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Server).SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := paho.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &MQTT{client: client, topic: topic, converted: converted}, nil
}

type payload struct {
	Timestamp int64    `json:"timestamp"`
	Row       int      `json:"row"`
	Col       int      `json:"col"`
	Raw       uint32   `json:"raw"`
	PF        *float64 `json:"capacitance_pf,omitempty"`
	Valid     bool     `json:"valid"`
}

func (m *MQTT) Publish(r scan.Result) error {
	p := payload{
		Timestamp: r.Timestamp.UnixMilli(),
		Row:       r.Addr.Row,
		Col:       r.Addr.Col,
		Raw:       r.Raw,
		Valid:     r.Valid,
	}
	if m.converted && r.Valid {
		v := r.Value
		p.PF = &v
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.nodeTopic(r), 0, false, b)
	token.Wait()
	return token.Error()
}

func (m *MQTT) nodeTopic(r scan.Result) string {
	return fmt.Sprintf("%s/%d/%d", m.topic, r.Addr.Row, r.Addr.Col)
}

func (m *MQTT) EndFrame() error { return nil }

func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}
