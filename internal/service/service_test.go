package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulse-dna/PulseDNA/internal/biometric"
	"github.com/pulse-dna/PulseDNA/internal/model"
)

var testEpoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// sineSamples builds a deterministic sample window oscillating around
// base at 2 Hz.
func sineSamples(n int, base, amp float64, period int) []model.HeartRateSample {
	samples := make([]model.HeartRateSample, n)
	for i := 0; i < n; i++ {
		samples[i] = model.HeartRateSample{
			Timestamp:  testEpoch.Add(time.Duration(i) * 500 * time.Millisecond),
			HeartRate:  base + amp*math.Sin(2*math.Pi*float64(i)/float64(period)),
			Confidence: 0.9,
		}
	}
	return samples
}

func enrollWindow() []model.HeartRateSample { return sineSamples(60, 75, 3, 4) }
func authWindow() []model.HeartRateSample   { return sineSamples(20, 75, 1, 4) }

// setupTestService creates a service over a temporary database and
// returns its path so a restart can be simulated.
func setupTestService(t *testing.T) (*BiometricService, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_pulsedna.sqlite3")
	svc, err := NewBiometricService(WithDBPath(dbPath))
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() {
		svc.Close()
	})
	return svc, dbPath
}

// TestEnrollAndAuthenticate walks the primary flow end to end.
func TestEnrollAndAuthenticate(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	template, err := svc.Enroll(ctx, "alice", enrollWindow())
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if template.Signature == "" {
		t.Error("Expected a non-empty template signature")
	}
	if svc.TemplateCount() != 1 {
		t.Errorf("Expected 1 enrolled template, got %d", svc.TemplateCount())
	}

	result := svc.Authenticate(authWindow())
	if !result.Authenticated {
		t.Fatalf("Expected authentication, confidence %.3f (details: %v)", result.Confidence, result.Details)
	}
	if result.UserID == nil || *result.UserID != "alice" {
		t.Fatalf("Expected user alice, got %v", result.UserID)
	}
}

// TestEnrollRejectsShortWindow verifies the enrollment minimum.
func TestEnrollRejectsShortWindow(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Enroll(context.Background(), "alice", enrollWindow()[:59])
	if !errors.Is(err, biometric.ErrInsufficientEnrollmentSamples) {
		t.Fatalf("Expected ErrInsufficientEnrollmentSamples, got %v", err)
	}
	if svc.TemplateCount() != 0 {
		t.Errorf("Expected no template after a failed enrollment, got %d", svc.TemplateCount())
	}
}

// TestAuthenticateWithoutEnrollment verifies the soft failure shape on
// an empty registry.
func TestAuthenticateWithoutEnrollment(t *testing.T) {
	svc, _ := setupTestService(t)

	result := svc.Authenticate(authWindow())
	if result.Authenticated {
		t.Fatal("Expected a soft failure with no enrolled templates")
	}
	if result.UserID != nil {
		t.Errorf("Expected nil user, got %s", *result.UserID)
	}
	if result.Details["error"] == "" {
		t.Error("Expected a details.error entry")
	}
}

// TestRestartRestoresTemplates verifies that a fresh service over the
// same database file reproduces the previous matching behaviour.
func TestRestartRestoresTemplates(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_pulsedna.sqlite3")

	svc, err := NewBiometricService(WithDBPath(dbPath))
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	enrolled, err := svc.Enroll(context.Background(), "alice", enrollWindow())
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	before := svc.Authenticate(authWindow())
	if !before.Authenticated {
		t.Fatalf("Expected authentication before restart, confidence %.3f", before.Confidence)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	restarted, err := NewBiometricService(WithDBPath(dbPath))
	if err != nil {
		t.Fatalf("Failed to restart service: %v", err)
	}
	t.Cleanup(func() {
		restarted.Close()
	})

	if restarted.TemplateCount() != 1 {
		t.Fatalf("Expected 1 restored template, got %d", restarted.TemplateCount())
	}
	restored, err := restarted.GetTemplate("alice")
	if err != nil {
		t.Fatalf("GetTemplate failed after restart: %v", err)
	}
	if restored.Signature != enrolled.Signature {
		t.Errorf("Signature changed across restart: %s vs %s", restored.Signature, enrolled.Signature)
	}
	if restored.ConfidenceThreshold != enrolled.ConfidenceThreshold {
		t.Errorf("Threshold changed across restart: %f vs %f", restored.ConfidenceThreshold, enrolled.ConfidenceThreshold)
	}

	after := restarted.Authenticate(authWindow())
	if !after.Authenticated {
		t.Fatalf("Expected authentication after restart, confidence %.3f", after.Confidence)
	}
	if math.Abs(after.Confidence-before.Confidence) > 1e-9 {
		t.Errorf("Confidence drifted across restart: %.6f vs %.6f", after.Confidence, before.Confidence)
	}
}

// TestDeleteTemplate verifies deletion through the facade.
func TestDeleteTemplate(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, "alice", enrollWindow()); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if err := svc.DeleteTemplate(ctx, "alice"); err != nil {
		t.Fatalf("DeleteTemplate failed: %v", err)
	}
	if svc.TemplateCount() != 0 {
		t.Errorf("Expected no templates after deletion, got %d", svc.TemplateCount())
	}

	if err := svc.DeleteTemplate(ctx, "alice"); !errors.Is(err, biometric.ErrTemplateNotFound) {
		t.Fatalf("Expected ErrTemplateNotFound on the second delete, got %v", err)
	}

	result := svc.Authenticate(authWindow())
	if result.Authenticated {
		t.Error("Expected authentication to fail after deletion")
	}
}

// TestListTemplatesOrdered verifies the enrollment-time ordering of the
// listing surface.
func TestListTemplatesOrdered(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, "alice", enrollWindow()); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if _, err := svc.Enroll(ctx, "bob", sineSamples(60, 92, 3, 4)); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	templates := svc.ListTemplates()
	if len(templates) != 2 {
		t.Fatalf("Expected 2 templates, got %d", len(templates))
	}
	if templates[0].UserID != "alice" || templates[1].UserID != "bob" {
		t.Errorf("Expected enrollment order [alice bob], got [%s %s]", templates[0].UserID, templates[1].UserID)
	}
}

// TestNewStreamAuthenticates smoke-tests the facade-to-stream wiring.
func TestNewStreamAuthenticates(t *testing.T) {
	svc, _ := setupTestService(t)

	if _, err := svc.Enroll(context.Background(), "alice", enrollWindow()); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	var results []model.MatchResult
	session := svc.NewStream(func(r model.MatchResult) {
		results = append(results, r)
	})

	session.OnPresence(true)
	for _, s := range authWindow() {
		session.OnSample(s)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 stream evaluation, got %d", len(results))
	}
	if !results[0].Authenticated {
		t.Errorf("Expected the stream evaluation to authenticate, confidence %.3f", results[0].Confidence)
	}
}
