// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"fmt"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 2 * time.Second
	appID          = "stickctl"
)

// MQTTOptions configures the broker connection
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// MQTTClient publishes through a paho client with automatic reconnect
type MQTTClient struct {
	client paho.Client
}

// DefaultClientID derives a stable per-host client id from the machine id,
// hashed with the application name so the raw id is not exposed.
func DefaultClientID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil || len(id) < 12 {
		return fmt.Sprintf("%s-%d", appID, time.Now().UnixNano()%1000000)
	}
	return appID + "-" + id[:12]
}

// DialMQTT connects to the broker
func DialMQTT(opts MQTTOptions, log *zap.SugaredLogger) (*MQTTClient, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(paho.Client) {
			log.Infow("mqtt connected", "broker", opts.Broker, "client_id", clientID)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt connection lost", "broker", opts.Broker, "error", err)
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	client := paho.NewClient(po)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}
	return &MQTTClient{client: client}, nil
}

// Publish sends payload at QoS 0 without retain
func (c *MQTTClient) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

// Close disconnects, allowing in-flight work a short grace period
func (c *MQTTClient) Close() error {
	c.client.Disconnect(250)
	return nil
}
