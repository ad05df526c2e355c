package main

import "github.com/pulse-dna/PulseDNA/internal/model"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	DBPath         string
	MQTTBroker     string
	AllowedOrigins []string
}

// EnrollRequest is the body of POST /api/enroll.
type EnrollRequest struct {
	UserID  string                  `json:"user_id"`
	Samples []model.HeartRateSample `json:"samples"`
}

// EnrollResponse echoes the created template record.
type EnrollResponse struct {
	Message  string                  `json:"message"`
	Template model.BiometricTemplate `json:"template"`
}

// AuthenticateRequest is the body of POST /api/authenticate.
type AuthenticateRequest struct {
	Samples []model.HeartRateSample `json:"samples"`
}

// ListTemplatesResponse wraps GET /api/templates.
type ListTemplatesResponse struct {
	Templates []model.BiometricTemplate `json:"templates"`
	Count     int                       `json:"count"`
}

// DeleteTemplateResponse wraps DELETE /api/templates/{user_id}.
type DeleteTemplateResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// MetricsResponse wraps GET /api/health/metrics.
type MetricsResponse struct {
	Status        string `json:"status"`
	DatabasePath  string `json:"database_path"`
	TemplateCount int    `json:"template_count"`
	SensorBus     bool   `json:"sensor_bus_connected"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
