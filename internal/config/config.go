package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AppConfig holds runtime configuration for the sensor ML service.
type AppConfig struct {
	HTTPBind string // address:port for the HTTP server

	DataDir  string // directory holding the persisted series snapshot
	ModelDir string // directory holding trained model artifacts

	PollMinutes int // minutes between pipeline cycles

	Source  string // batch source kind: file | kafka | mqtt
	CSVPath string // path of the raw CSV file for the file source

	KafkaBrokers []string // bootstrap servers for the kafka source
	KafkaTopic   string   // topic carrying JSON readings
	KafkaGroup   string   // consumer group id

	MQTTBroker   string // broker URL for the mqtt source, e.g. tcp://host:1883
	MQTTTopic    string // uplink topic to subscribe to
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	AnomalyTrees         int     // isolation forest size
	AnomalyContamination float64 // expected outlier fraction
	ForecastTrees        int     // bagged regression ensemble size
	ModelSeed            uint64  // deterministic training seed
}

// LoadEnv builds the configuration from environment variables with defaults.
func LoadEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPBind:             getEnv("HTTP_BIND", ":8080"),
		DataDir:              getEnv("DATA_DIR", "./data"),
		ModelDir:             getEnv("MODEL_DIR", "./models"),
		PollMinutes:          getEnvInt("POLL_MINUTES", 5),
		Source:               getEnv("SOURCE", "file"),
		CSVPath:              getEnv("CSV_PATH", "./data/sensor_data.csv"),
		KafkaBrokers:         splitAndTrim(os.Getenv("KAFKA_BROKERS"), ","),
		KafkaTopic:           getEnv("KAFKA_TOPIC", "sensors.readings"),
		KafkaGroup:           getEnv("KAFKA_GROUP", "smarthome-ml"),
		MQTTBroker:           getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTTopic:            getEnv("MQTT_TOPIC", "v3/+/devices/+/up"),
		MQTTClientID:         getEnv("MQTT_CLIENT_ID", "smarthome-ml"),
		MQTTUsername:         os.Getenv("MQTT_USERNAME"),
		MQTTPassword:         os.Getenv("MQTT_PASSWORD"),
		AnomalyTrees:         getEnvInt("ANOMALY_TREES", 200),
		AnomalyContamination: getEnvFloat("ANOMALY_CONTAMINATION", 0.02),
		ForecastTrees:        getEnvInt("FOREST_TREES", 200),
		ModelSeed:            uint64(getEnvInt("MODEL_SEED", 42)),
	}

	switch cfg.Source {
	case "file", "mqtt":
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("SOURCE=kafka requires KAFKA_BROKERS (comma-separated)")
		}
	default:
		return nil, fmt.Errorf("unknown SOURCE %q (want file, kafka or mqtt)", cfg.Source)
	}
	if cfg.PollMinutes <= 0 {
		cfg.PollMinutes = 5
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
