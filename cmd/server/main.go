package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/pulse-dna/PulseDNA/internal/model"
	"github.com/pulse-dna/PulseDNA/internal/sensor"
	"github.com/pulse-dna/PulseDNA/internal/service"
	"github.com/pulse-dna/PulseDNA/internal/storage"
	"github.com/pulse-dna/PulseDNA/pkg/logger"
)

var (
	port           int
	dbPath         string
	mqttBroker     string
	sampleTopic    string
	presenceTopic  string
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("PULSE_DB_PATH", storage.DefaultDBFile), "Path to SQLite database")
	flag.StringVar(&mqttBroker, "mqtt-broker", os.Getenv("PULSE_MQTT_BROKER"), "MQTT broker URL for the sensor bus (empty disables the consumer)")
	flag.StringVar(&sampleTopic, "sample-topic", "pulsedna/sensor/heartrate", "MQTT topic carrying heart-rate samples")
	flag.StringVar(&presenceTopic, "presence-topic", "pulsedna/sensor/presence", "MQTT topic carrying presence transitions")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	svc, err := service.NewBiometricService(service.WithDBPath(dbPath))
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer svc.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		MQTTBroker:     mqttBroker,
		AllowedOrigins: origins,
	}
	server := NewServer(svc, config)

	// Optionally attach the live sensor feed. Emitted match results are
	// logged here; notification delivery is a downstream concern.
	if mqttBroker != "" {
		lg := logger.GetLogger()
		session := svc.NewStream(func(result model.MatchResult) {
			if result.Authenticated {
				lg.Infof("Stream match: user=%s confidence=%.3f", *result.UserID, result.Confidence)
			} else {
				lg.Debugf("Stream evaluation without match (confidence=%.3f)", result.Confidence)
			}
		})

		sensorCfg := sensor.DefaultConfig()
		sensorCfg.Broker = mqttBroker
		sensorCfg.SampleTopic = sampleTopic
		sensorCfg.PresenceTopic = presenceTopic

		consumer := sensor.NewConsumer(sensorCfg, session)
		if err := consumer.Start(); err != nil {
			log.Fatalf("Failed to start sensor consumer: %v", err)
		}
		defer consumer.Stop()
		server.sensorConnected = true
	}

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
