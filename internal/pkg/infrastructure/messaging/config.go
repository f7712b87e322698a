package messaging

import (
	"fmt"
	"os"
)

//Config holds the settings needed to subscribe to sensor readings on an MQTT broker
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	ClientID string
	Topic    string
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

//LoadConfiguration reads the broker settings from the environment. The returned bool
//is false when MQTT_BROKER_HOST is not set, meaning ingestion is disabled.
func LoadConfiguration(serviceName string) (Config, bool) {
	cfg := Config{
		Host:     os.Getenv("MQTT_BROKER_HOST"),
		Port:     getEnv("MQTT_BROKER_PORT", "1883"),
		Username: os.Getenv("MQTT_USER"),
		Password: os.Getenv("MQTT_PASSWORD"),
		ClientID: getEnv("MQTT_CLIENT_ID", serviceName),
		Topic:    getEnv("MQTT_SENSOR_TOPIC", "sensor_data/+"),
	}

	return cfg, cfg.Host != ""
}

//BrokerURL returns the address of the broker in the form expected by the MQTT client
func (cfg Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%s", cfg.Host, cfg.Port)
}
