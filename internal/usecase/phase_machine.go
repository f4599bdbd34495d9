package usecase

import (
	"time"

	"github.com/virtuals-lab/leaguescout/internal/domain/workflow"
)

// MachineConfig tunes the per-league phase state machine.
type MachineConfig struct {
	// PreLiveThreshold is the countdown value at or below which matchday
	// collection stops and the worker arms for kickoff.
	PreLiveThreshold time.Duration
	// MaxLiveDuration caps the live phase when the feed never reports a
	// full-time signal.
	MaxLiveDuration time.Duration
	// StandingsCadence is how many completed matches trigger a standings
	// capture.
	StandingsCadence int
}

func (c MachineConfig) withDefaults() MachineConfig {
	if c.PreLiveThreshold <= 0 {
		c.PreLiveThreshold = 10 * time.Second
	}
	if c.MaxLiveDuration <= 0 {
		c.MaxLiveDuration = 90 * time.Minute
	}
	if c.StandingsCadence <= 0 {
		c.StandingsCadence = 5
	}
	return c
}

// NextPhase is the pure transition function: given the current phase, the
// latest timer reading, the time spent in the current phase and the
// league's completed-match counter, it returns the phase to move to.
// Only forward edges exist, so a cycle can never revisit a phase.
func NextPhase(
	current workflow.Phase,
	reading workflow.TimerReading,
	elapsed time.Duration,
	completedMatches int,
	cfg MachineConfig,
) workflow.Phase {
	cfg = cfg.withDefaults()

	switch current {
	case workflow.PhaseMonitoring:
		switch reading.State {
		case workflow.TimerCountdown:
			if reading.Remaining <= cfg.PreLiveThreshold {
				return workflow.PhasePreLive
			}
		case workflow.TimerLive, workflow.TimerFinished:
			// Kickoff was missed while monitoring; arm immediately so the
			// cycle still visits PRE_LIVE before LIVE.
			return workflow.PhasePreLive
		}
		return workflow.PhaseMonitoring

	case workflow.PhasePreLive:
		if reading.State == workflow.TimerLive || reading.State == workflow.TimerFinished {
			return workflow.PhaseLive
		}
		return workflow.PhasePreLive

	case workflow.PhaseLive:
		if reading.State == workflow.TimerFinished || elapsed >= cfg.MaxLiveDuration {
			return workflow.PhaseResults
		}
		return workflow.PhaseLive

	case workflow.PhaseResults:
		if completedMatches > 0 && completedMatches%cfg.StandingsCadence == 0 {
			return workflow.PhaseStandings
		}
		return workflow.PhaseMonitoring

	case workflow.PhaseStandings:
		return workflow.PhaseMonitoring

	default:
		return current
	}
}

// PhaseMachine tracks one league's progress through a fixture cycle. It
// is owned by exactly one worker and never shared.
type PhaseMachine struct {
	cfg       MachineConfig
	phase     workflow.Phase
	enteredAt time.Time
	cycle     int
	now       func() time.Time
}

func NewPhaseMachine(cfg MachineConfig) *PhaseMachine {
	m := &PhaseMachine{
		cfg:   cfg.withDefaults(),
		phase: workflow.PhaseMonitoring,
		now:   time.Now,
	}
	m.enteredAt = m.now()
	return m
}

func (m *PhaseMachine) Phase() workflow.Phase {
	return m.phase
}

// Cycle counts completed fixture cycles; it increments when the machine
// loops back to MONITORING.
func (m *PhaseMachine) Cycle() int {
	return m.cycle
}

// Elapsed is the time spent in the current phase.
func (m *PhaseMachine) Elapsed() time.Duration {
	return m.now().Sub(m.enteredAt)
}

// Evaluate applies one timer observation and returns the (possibly
// unchanged) phase plus whether a transition happened.
func (m *PhaseMachine) Evaluate(reading workflow.TimerReading, completedMatches int) (workflow.Phase, bool) {
	if m.phase == workflow.PhaseFailed {
		return m.phase, false
	}

	next := NextPhase(m.phase, reading, m.Elapsed(), completedMatches, m.cfg)
	if next == m.phase {
		return m.phase, false
	}

	if next == workflow.PhaseMonitoring {
		m.cycle++
	}
	m.phase = next
	m.enteredAt = m.now()
	return m.phase, true
}

// Fail moves the machine to the terminal FAILED state. It aborts the
// current cycle only; a fresh machine starts the next one.
func (m *PhaseMachine) Fail() {
	if m.phase == workflow.PhaseFailed {
		return
	}
	m.phase = workflow.PhaseFailed
	m.enteredAt = m.now()
}
