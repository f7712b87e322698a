package messaging

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/iot-sensor-registry/internal/pkg/infrastructure/repositories/models"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func TestThatReadingsAreStored(t *testing.T) {
	store := &storeMock{}
	s := newSubscriberForTest(store)

	payload := []byte(`{"mac_address":"AA:BB","timestamp":"2024-05-01T10:00:00+02:00","temperature":21.5,"co2":412}`)
	if err := s.handleMessage("sensor_data/AA:BB", payload); err != nil {
		t.Fatalf("handleMessage failed: %s", err.Error())
	}

	if len(store.readings) != 1 {
		t.Fatalf("expected 1 stored reading, got %d", len(store.readings))
	}

	reading := store.readings[0]
	if reading.MACAddress != "AA:BB" {
		t.Errorf("unexpected mac address %s", reading.MACAddress)
	}

	expected := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if !reading.Timestamp.Equal(expected) || reading.Timestamp.Location() != time.UTC {
		t.Errorf("expected timestamp %s in UTC, got %s", expected, reading.Timestamp)
	}

	if reading.Temperature == nil || *reading.Temperature != 21.5 {
		t.Errorf("unexpected temperature %v", reading.Temperature)
	}
	if reading.CO2 == nil || *reading.CO2 != 412 {
		t.Errorf("unexpected co2 %v", reading.CO2)
	}
	if reading.Humidity != nil {
		t.Errorf("expected missing humidity to stay nil, got %v", *reading.Humidity)
	}
}

func TestThatMissingTimestampIsSetToReceiveTime(t *testing.T) {
	store := &storeMock{}
	s := newSubscriberForTest(store)
	receivedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return receivedAt }

	if err := s.handleMessage("sensor_data/AA:BB", []byte(`{"mac_address":"AA:BB","dust":3.2}`)); err != nil {
		t.Fatalf("handleMessage failed: %s", err.Error())
	}

	if !store.readings[0].Timestamp.Equal(receivedAt) {
		t.Errorf("expected timestamp %s, got %s", receivedAt, store.readings[0].Timestamp)
	}
}

func TestThatMACAddressIsTakenFromTopic(t *testing.T) {
	store := &storeMock{}
	s := newSubscriberForTest(store)

	if err := s.handleMessage("sensor_data/CC:DD", []byte(`{"temperature":19}`)); err != nil {
		t.Fatalf("handleMessage failed: %s", err.Error())
	}

	if store.readings[0].MACAddress != "CC:DD" {
		t.Errorf("expected mac address from topic, got %s", store.readings[0].MACAddress)
	}
}

func TestThatReadingsWithoutMACAddressAreRejected(t *testing.T) {
	store := &storeMock{}
	s := newSubscriberForTest(store)
	s.cfg.Topic = "sensor_data"

	err := s.handleMessage("sensor_data", []byte(`{"temperature":19}`))
	if !errors.Is(err, ErrMissingMACAddress) {
		t.Errorf("expected ErrMissingMACAddress, got %v", err)
	}

	if len(store.readings) != 0 {
		t.Error("no reading should have been stored")
	}
}

func TestThatMalformedPayloadsAreRejected(t *testing.T) {
	store := &storeMock{}
	s := newSubscriberForTest(store)

	if err := s.handleMessage("sensor_data/AA:BB", []byte("t=12")); err == nil {
		t.Error("expected an error for a malformed payload")
	}
}

func TestThatStoreErrorsArePropagated(t *testing.T) {
	store := &storeMock{err: errors.New("disk full")}
	s := newSubscriberForTest(store)

	if err := s.handleMessage("sensor_data/AA:BB", []byte(`{"mac_address":"AA:BB"}`)); err == nil {
		t.Error("expected the store error to be returned")
	}
}

func TestMACAddressFromTopic(t *testing.T) {
	cases := []struct {
		subscription string
		topic        string
		expected     string
	}{
		{"sensor_data/+", "sensor_data/AA:BB", "AA:BB"},
		{"sensors/+", "sensor_data/AA:BB", ""},
		{"sensor_data/+", "sensor_data/AA/BB", ""},
		{"sensor_data/#", "sensor_data/AA:BB", ""},
	}

	for _, c := range cases {
		if actual := macAddressFromTopic(c.subscription, c.topic); actual != c.expected {
			t.Errorf("macAddressFromTopic(%q, %q) = %q, expected %q", c.subscription, c.topic, actual, c.expected)
		}
	}
}

func TestThatIngestionIsDisabledWithoutBrokerHost(t *testing.T) {
	os.Unsetenv("MQTT_BROKER_HOST")

	if _, enabled := LoadConfiguration("iot-sensor-registry"); enabled {
		t.Error("expected ingestion to be disabled")
	}

	os.Setenv("MQTT_BROKER_HOST", "broker.local")
	defer os.Unsetenv("MQTT_BROKER_HOST")

	cfg, enabled := LoadConfiguration("iot-sensor-registry")
	if !enabled {
		t.Error("expected ingestion to be enabled")
	}

	if cfg.BrokerURL() != "tcp://broker.local:1883" || cfg.ClientID != "iot-sensor-registry" {
		t.Errorf("unexpected configuration %+v", cfg)
	}
}

func newSubscriberForTest(store ReadingStore) *SensorSubscriber {
	return NewSensorSubscriber(Config{Topic: "sensor_data/+"}, store, logging.NewLogger())
}

type storeMock struct {
	readings []models.SensorReading
	err      error
}

func (s *storeMock) CreateSensorReading(reading *models.SensorReading) error {
	if s.err != nil {
		return s.err
	}
	s.readings = append(s.readings, *reading)
	return nil
}
