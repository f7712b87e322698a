package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/models"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
	subscribeQoS      = 1
)

//ErrMissingMACAddress is returned for readings that can not be tied to a sensor
var ErrMissingMACAddress = errors.New("sensor reading has no mac address")

//ReadingStore is the part of the datastore that the subscriber writes to
type ReadingStore interface {
	CreateSensorReading(reading *models.SensorReading) error
}

//SensorSubscriber appends sensor readings received over MQTT to the datastore
type SensorSubscriber struct {
	cfg    Config
	store  ReadingStore
	log    logging.Logger
	client mqtt.Client
	now    func() time.Time
}

//NewSensorSubscriber creates a subscriber. Nothing is connected until Start is called.
func NewSensorSubscriber(cfg Config, store ReadingStore, log logging.Logger) *SensorSubscriber {
	return &SensorSubscriber{
		cfg:   cfg,
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

//Start connects to the broker and subscribes to the sensor topic. The subscription
//is renewed by the client every time it reconnects.
func (s *SensorSubscriber) Start() error {
	options := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL()).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(s.subscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.log.Warnf("Lost connection to MQTT broker: %s", err.Error())
		})

	s.client = mqtt.NewClient(options)

	s.log.Infof("Connecting to MQTT broker %s ...", s.cfg.BrokerURL())

	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker %s", s.cfg.BrokerURL())
	}

	return token.Error()
}

//Close disconnects from the broker
func (s *SensorSubscriber) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(disconnectQuiesce)
	}
}

func (s *SensorSubscriber) subscribe(client mqtt.Client) {
	token := client.Subscribe(s.cfg.Topic, subscribeQoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handleMessage(msg.Topic(), msg.Payload()); err != nil {
			s.log.Errorf("Dropped message on topic %s: %s", msg.Topic(), err.Error())
		}
	})

	if token.Wait() && token.Error() != nil {
		s.log.Errorf("Failed to subscribe to %s: %s", s.cfg.Topic, token.Error().Error())
		return
	}

	s.log.Infof("Subscribed to sensor readings on %s", s.cfg.Topic)
}

type sensorReadingMessage struct {
	MACAddress  string     `json:"mac_address"`
	Timestamp   *time.Time `json:"timestamp"`
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Fahrenheit  *float64   `json:"fahrenheit"`
	CO2         *float64   `json:"co2"`
	ECO2        *float64   `json:"eco2"`
	TVOC        *float64   `json:"tvoc"`
	RawH2       *float64   `json:"rawh2"`
	RawEthanol  *float64   `json:"rawethanol"`
	Dust        *float64   `json:"dust"`
}

func (s *SensorSubscriber) handleMessage(topic string, payload []byte) error {
	msg := sensorReadingMessage{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode sensor reading: %w", err)
	}

	mac := msg.MACAddress
	if mac == "" {
		mac = macAddressFromTopic(s.cfg.Topic, topic)
	}
	if mac == "" {
		return ErrMissingMACAddress
	}

	timestamp := s.now()
	if msg.Timestamp != nil && !msg.Timestamp.IsZero() {
		timestamp = msg.Timestamp.UTC()
	}

	reading := &models.SensorReading{
		MACAddress:  mac,
		Timestamp:   timestamp,
		Temperature: msg.Temperature,
		Humidity:    msg.Humidity,
		Fahrenheit:  msg.Fahrenheit,
		CO2:         msg.CO2,
		ECO2:        msg.ECO2,
		TVOC:        msg.TVOC,
		RawH2:       msg.RawH2,
		RawEthanol:  msg.RawEthanol,
		Dust:        msg.Dust,
	}

	if err := s.store.CreateSensorReading(reading); err != nil {
		return err
	}

	s.log.Debugf("Stored sensor reading from %s", mac)

	return nil
}

// A single-level wildcard at the end of the subscription, as in "sensor_data/+",
// carries the MAC address of the sensor.
func macAddressFromTopic(subscription, topic string) string {
	if !strings.HasSuffix(subscription, "/+") {
		return ""
	}

	prefix := strings.TrimSuffix(subscription, "+")
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}

	mac := strings.TrimPrefix(topic, prefix)
	if strings.Contains(mac, "/") {
		return ""
	}

	return mac
}
