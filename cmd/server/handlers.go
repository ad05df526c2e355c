package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pulse-dna/PulseDNA/internal/biometric"
	"github.com/pulse-dna/PulseDNA/internal/service"
	"github.com/pulse-dna/PulseDNA/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies.
type Server struct {
	service *service.BiometricService
	config  *ServerConfig
	log     *logger.Logger

	// sensorConnected reports whether the MQTT consumer started; set
	// once in main before Start.
	sensorConnected bool
}

// NewServer creates a new server instance.
func NewServer(svc *service.BiometricService, config *ServerConfig) *Server {
	return &Server{
		service: svc,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "PulseDNA API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":         "GET /health",
			"metrics":        "GET /api/health/metrics",
			"enroll":         "POST /api/enroll",
			"authenticate":   "POST /api/authenticate",
			"templates":      "GET /api/templates",
			"getTemplate":    "GET /api/templates/{user_id}",
			"deleteTemplate": "DELETE /api/templates/{user_id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:        "healthy",
		DatabasePath:  s.config.DBPath,
		TemplateCount: s.service.TemplateCount(),
		SensorBus:     s.sensorConnected,
	})
}

// handleEnroll handles POST /api/enroll
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Use POST")
		return
	}

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	template, err := s.service.Enroll(r.Context(), req.UserID, req.Samples)
	if err != nil {
		if errors.Is(err, biometric.ErrInsufficientEnrollmentSamples) ||
			errors.Is(err, biometric.ErrInsufficientData) {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.log.Errorf("Enrollment failed for %s: %v", req.UserID, err)
		s.respondError(w, http.StatusInternalServerError, "Enrollment failed")
		return
	}

	s.respondJSON(w, http.StatusCreated, EnrollResponse{
		Message:  "User enrolled successfully",
		Template: *template,
	})
}

// handleAuthenticate handles POST /api/authenticate
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Use POST")
		return
	}

	var req AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	// Authentication never errors; failures arrive as soft results.
	result := s.service.Authenticate(req.Samples)
	s.respondJSON(w, http.StatusOK, result)
}

// handleTemplates handles GET /api/templates
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Use GET")
		return
	}

	templates := s.service.ListTemplates()
	s.respondJSON(w, http.StatusOK, ListTemplatesResponse{
		Templates: templates,
		Count:     len(templates),
	})
}

// handleTemplate handles GET and DELETE on /api/templates/{user_id}
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if userID == "" || strings.Contains(userID, "/") {
		s.respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		template, err := s.service.GetTemplate(userID)
		if err != nil {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("No template for user %s", userID))
			return
		}
		s.respondJSON(w, http.StatusOK, template)

	case http.MethodDelete:
		if err := s.service.DeleteTemplate(r.Context(), userID); err != nil {
			if errors.Is(err, biometric.ErrTemplateNotFound) {
				s.respondError(w, http.StatusNotFound, fmt.Sprintf("No template for user %s", userID))
				return
			}
			s.log.Errorf("Failed to delete template for %s: %v", userID, err)
			s.respondError(w, http.StatusInternalServerError, "Failed to delete template")
			return
		}
		s.respondJSON(w, http.StatusOK, DeleteTemplateResponse{
			Message: "Template deleted successfully",
			UserID:  userID,
		})

	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Use GET or DELETE")
	}
}
