package service

import (
	"context"
	"fmt"
	"os"

	"github.com/pulse-dna/PulseDNA/internal/biometric"
	"github.com/pulse-dna/PulseDNA/internal/model"
	"github.com/pulse-dna/PulseDNA/internal/storage"
	"github.com/pulse-dna/PulseDNA/internal/stream"
	"github.com/pulse-dna/PulseDNA/pkg/logger"
)

// Options configure service construction.
type Options struct {
	DBPath string
	Config *biometric.Config
}

type Option func(*Options)

func WithDBPath(path string) Option {
	return func(o *Options) {
		o.DBPath = path
	}
}

func WithConfig(cfg *biometric.Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

func defaultOptions() *Options {
	dbPath := os.Getenv("PULSE_DB_PATH")
	if dbPath == "" {
		dbPath = storage.DefaultDBFile
	}
	return &Options{
		DBPath: dbPath,
		Config: biometric.DefaultConfig(),
	}
}

// BiometricService wires the template registry, matcher and store into
// one facade used by the HTTP server, the CLI and the sensor pipeline.
// The registry is loaded from the store at construction and flushed on
// every enrollment and deletion.
type BiometricService struct {
	cfg      *biometric.Config
	registry *biometric.TemplateRegistry
	matcher  *biometric.Matcher
	store    *storage.TemplateStore
	log      *logger.Logger
}

// NewBiometricService builds the service and repopulates the registry
// from persisted template records.
func NewBiometricService(opts ...Option) (*BiometricService, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.NewTemplateStoreWithPath(options.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening template store: %w", err)
	}

	log := logger.GetLogger()
	registry := biometric.NewTemplateRegistry()

	templates, err := store.LoadAll(context.Background())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading persisted templates: %w", err)
	}
	imported := 0
	for _, t := range templates {
		if registry.Import(t) {
			imported++
		} else {
			log.Warnf("Rejected persisted template for %q during import", t.UserID)
		}
	}
	log.Infof("Loaded %d/%d persisted templates", imported, len(templates))

	return &BiometricService{
		cfg:      options.Config,
		registry: registry,
		matcher:  biometric.NewMatcher(registry, options.Config),
		store:    store,
		log:      log,
	}, nil
}

// Enroll builds a template from an enrollment window, registers it and
// persists the export record. Replaces any prior template for the user.
func (s *BiometricService) Enroll(ctx context.Context, userID string, samples []model.HeartRateSample) (*model.BiometricTemplate, error) {
	s.log.Infof("Enrolling user %s with %d samples", userID, len(samples))

	template, err := biometric.BuildTemplate(userID, samples, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("building template for %s: %w", userID, err)
	}

	s.registry.Add(template)

	// Persist outside any registry lock; a store failure rolls the
	// registry back so memory and disk stay consistent.
	if err := s.store.Save(ctx, template); err != nil {
		s.registry.Delete(userID)
		return nil, fmt.Errorf("persisting template for %s: %w", userID, err)
	}

	s.log.Infof("Enrolled user %s (signature %s, threshold %.2f)",
		userID, template.Signature, template.ConfidenceThreshold)
	return template, nil
}

// Authenticate scores a live sample window against every enrolled
// template. Always returns a MatchResult; authentication-path failures
// are soft.
func (s *BiometricService) Authenticate(samples []model.HeartRateSample) model.MatchResult {
	return s.matcher.Authenticate(samples)
}

// NewStream creates a streaming session bound to this service's
// matcher and configuration.
func (s *BiometricService) NewStream(emit stream.EmitFunc) *stream.Authenticator {
	return stream.NewAuthenticator(s.matcher, s.cfg, emit)
}

// ListTemplates returns every enrolled template ordered by enrollment
// time.
func (s *BiometricService) ListTemplates() []model.BiometricTemplate {
	return s.registry.Snapshot()
}

// GetTemplate exports the template record for one user.
func (s *BiometricService) GetTemplate(userID string) (*model.BiometricTemplate, error) {
	return s.registry.Export(userID)
}

// DeleteTemplate removes a user's template from the registry and the
// store.
func (s *BiometricService) DeleteTemplate(ctx context.Context, userID string) error {
	if !s.registry.Delete(userID) {
		return biometric.ErrTemplateNotFound
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("removing persisted template for %s: %w", userID, err)
	}
	s.log.Infof("Deleted template for user %s", userID)
	return nil
}

// TemplateCount reports the number of enrolled templates.
func (s *BiometricService) TemplateCount() int {
	return s.registry.Count()
}

// Config exposes the engine configuration for metrics and adapters.
func (s *BiometricService) Config() *biometric.Config {
	return s.cfg
}

func (s *BiometricService) Close() error {
	return s.store.Close()
}
