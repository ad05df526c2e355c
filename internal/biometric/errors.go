package biometric

import "errors"

var (
	// ErrInsufficientData is returned by Extract when fewer than the
	// minimum number of valid samples remain after range filtering.
	// Recoverable: the caller should collect more samples and retry.
	ErrInsufficientData = errors.New("insufficient valid samples for feature extraction")

	// ErrInsufficientEnrollmentSamples is returned by BuildTemplate
	// when the enrollment window is below the configured minimum.
	ErrInsufficientEnrollmentSamples = errors.New("not enough samples for enrollment")

	// ErrNoEnrolledTemplates marks authentication against an empty
	// registry. Never raised on the authentication path; surfaced only
	// through MatchResult details.
	ErrNoEnrolledTemplates = errors.New("no enrolled templates")

	// ErrTemplateNotFound is returned when a registry or store lookup
	// misses.
	ErrTemplateNotFound = errors.New("template not found")
)
