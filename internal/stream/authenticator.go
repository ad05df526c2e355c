// Package stream wraps the matcher in a continuous pipeline suitable
// for driving a live sensor feed: rolling buffer, stability gating,
// debounce/cooldown and presence-triggered resets. One Authenticator
// owns one session; a transport adapter feeds it through the narrow
// OnSample/OnPresence pair.
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/pulse-dna/PulseDNA/internal/biometric"
	"github.com/pulse-dna/PulseDNA/internal/model"
	"github.com/pulse-dna/PulseDNA/pkg/logger"
)

const (
	// Rolling buffer capacity; oldest samples are evicted past it.
	bufferCapacity = 30

	// Trailing window length for the stability statistic.
	stabilityWindow = 10

	// Relaxed sample floor for the single final attempt made when
	// presence is lost mid-session.
	finalAttemptMinSamples = 5
)

// State is the streaming session state machine position.
type State int

const (
	StateIdle State = iota
	StateBuffering
	StateEvaluating
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StateEvaluating:
		return "evaluating"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// EmitFunc receives the MatchResult of every completed evaluation.
// Called outside the session lock.
type EmitFunc func(model.MatchResult)

// SessionStats is a point-in-time snapshot of the session state,
// exposed for metrics and tests.
type SessionStats struct {
	SessionID  string  `json:"session_id"`
	State      string  `json:"state"`
	BufferSize int     `json:"buffer_size"`
	Stability  float64 `json:"stability"`
	Presence   bool    `json:"presence"`
}

// Authenticator is the streaming session state machine:
// Idle -> Buffering -> Evaluating -> Cooldown -> Idle. All state is
// guarded by one mutex; feature extraction and scoring run over copied
// snapshots outside it. Cooldown and stability are evaluated against
// the wall-clock timestamps carried on samples, so offline replay
// reproduces live decisions.
type Authenticator struct {
	mu            sync.Mutex
	sessionID     string
	state         State
	presence      bool
	buffer        []model.HeartRateSample
	stability     float64
	lastMatchTime time.Time

	matcher *biometric.Matcher
	cfg     *biometric.Config
	emit    EmitFunc
	log     *logger.Logger
}

// NewAuthenticator builds a streaming session around a matcher. emit
// may be nil when the caller polls results elsewhere.
func NewAuthenticator(matcher *biometric.Matcher, cfg *biometric.Config, emit EmitFunc) *Authenticator {
	return &Authenticator{
		state:   StateIdle,
		buffer:  make([]model.HeartRateSample, 0, bufferCapacity),
		matcher: matcher,
		cfg:     cfg,
		emit:    emit,
		log:     logger.GetLogger(),
	}
}

// OnPresence handles presence transitions from the sensor. Presence
// gained starts a fresh session; presence lost is always honored
// immediately, with one relaxed final evaluation attempt if the buffer
// holds enough samples. Buffered data never leaks between presence
// intervals.
func (a *Authenticator) OnPresence(present bool) {
	a.mu.Lock()

	if present {
		if !a.presence {
			a.presence = true
			a.sessionID = uuid.NewString()
			a.buffer = a.buffer[:0]
			a.stability = 0
			a.state = StateBuffering
			a.log.Infof("Presence detected, session %s buffering", a.sessionID)
		}
		a.mu.Unlock()
		return
	}

	if !a.presence {
		a.mu.Unlock()
		return
	}

	a.presence = false
	prevState := a.state
	window := snapshot(a.buffer)
	sessionID := a.sessionID
	a.buffer = a.buffer[:0]
	a.stability = 0
	a.lastMatchTime = time.Time{}
	a.state = StateIdle
	a.mu.Unlock()

	a.log.Infof("Presence lost, session %s closed", sessionID)

	if (prevState == StateBuffering || prevState == StateEvaluating) && len(window) >= finalAttemptMinSamples {
		result := a.matcher.AuthenticateRelaxed(window, finalAttemptMinSamples)
		a.dispatch(result)
	}
}

// OnSample feeds one sensor measurement into the session. Malformed
// samples are dropped and logged; they never propagate. When the buffer
// is long enough and the stream is stable, the window is evaluated
// synchronously.
func (a *Authenticator) OnSample(s model.HeartRateSample) {
	a.mu.Lock()

	if !a.presence {
		a.mu.Unlock()
		return
	}

	// The range check also rejects NaN and non-positive readings.
	if !(s.HeartRate >= biometric.MinValidHR && s.HeartRate <= biometric.MaxValidHR) {
		a.log.Warnf("Dropping malformed sample: heart_rate=%f", s.HeartRate)
		a.mu.Unlock()
		return
	}

	// Cooldown is keyed to the sample clock, not the evaluating
	// goroutine's clock.
	if a.state == StateCooldown && s.Timestamp.Sub(a.lastMatchTime) >= a.cfg.Cooldown() {
		a.state = StateBuffering
	}

	a.append(s)

	if a.state != StateBuffering ||
		len(a.buffer) < a.cfg.MinAuthSamples ||
		a.stability > a.cfg.StabilityStdevThreshold {
		a.mu.Unlock()
		return
	}

	a.state = StateEvaluating
	window := snapshot(a.buffer)
	a.mu.Unlock()

	result := a.matcher.Authenticate(window)

	a.mu.Lock()
	if a.state != StateEvaluating {
		// Presence was lost during evaluation; the session reset wins.
		a.mu.Unlock()
		return
	}
	if result.Authenticated {
		a.buffer = a.buffer[:0]
		a.stability = 0
		a.lastMatchTime = result.Timestamp
		a.state = StateCooldown
	} else {
		// A failed match is not penalized: keep collecting.
		a.state = StateBuffering
	}
	a.mu.Unlock()

	a.dispatch(result)
}

// Stats returns a snapshot of the session for metrics endpoints.
func (a *Authenticator) Stats() SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return SessionStats{
		SessionID:  a.sessionID,
		State:      a.state.String(),
		BufferSize: len(a.buffer),
		Stability:  a.stability,
		Presence:   a.presence,
	}
}

// State returns the current state machine position.
func (a *Authenticator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// append inserts a sample into the rolling buffer, evicting the oldest
// past capacity, and recomputes the trailing stability statistic.
func (a *Authenticator) append(s model.HeartRateSample) {
	if len(a.buffer) >= bufferCapacity {
		copy(a.buffer, a.buffer[1:])
		a.buffer = a.buffer[:len(a.buffer)-1]
	}
	a.buffer = append(a.buffer, s)

	start := len(a.buffer) - stabilityWindow
	if start < 0 {
		start = 0
	}
	trailing := make([]float64, 0, stabilityWindow)
	for _, sample := range a.buffer[start:] {
		trailing = append(trailing, sample.HeartRate)
	}
	if len(trailing) < 2 {
		a.stability = 0
		return
	}
	a.stability = stat.StdDev(trailing, nil)
}

func (a *Authenticator) dispatch(result model.MatchResult) {
	if a.emit != nil {
		a.emit(result)
	}
}

func snapshot(buf []model.HeartRateSample) []model.HeartRateSample {
	out := make([]model.HeartRateSample, len(buf))
	copy(out, buf)
	return out
}
