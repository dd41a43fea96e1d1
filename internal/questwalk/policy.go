package questwalk

import "fmt"

// Movement is the walking state.
type Movement int32

const (
	WalkFast Movement = iota
	WalkSlow
	Stopped
	Paused
)

func (m Movement) String() string {
	switch m {
	case WalkFast:
		return "walk-fast"
	case WalkSlow:
		return "walk-slow"
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("Movement(%d)", int32(m))
}

// Steering is the turning sub-state, evaluated independently of Movement.
type Steering int32

const (
	Straight Steering = iota
	SteerLeft
	SteerRight
)

func (s Steering) String() string {
	switch s {
	case SteerLeft:
		return "left"
	case SteerRight:
		return "right"
	}
	return "straight"
}

// Reading is a distance observation; Known is false until the label has
// been read once.
type Reading struct {
	Distance int
	Known    bool
}

// Decision is the outcome of one policy step.
type Decision struct {
	Next Movement
	// Overshoot asks for a short back-key pulse.
	Overshoot bool
}

// Decide applies the movement policy to the current state. prev is the
// previous tick's reading and now this tick's (equal to prev after a
// failed read).
//
// Away from the target: unknown or beyond ResumeDistance walks fast,
// beyond ArriveDistance walks slow, otherwise stops. Once stopped the
// walker only resumes at ResumeDistance or more; while stopped, a jump of
// more than OvershootDelta over the previous reading means the target was
// passed.
func Decide(cur Movement, prev, now Reading, cfg Config) Decision {
	if cur == Stopped {
		if now.Known && now.Distance >= cfg.ResumeDistance {
			return Decision{Next: WalkFast}
		}
		over := now.Known && prev.Known && now.Distance > prev.Distance+cfg.OvershootDelta
		return Decision{Next: Stopped, Overshoot: over}
	}
	switch {
	case !now.Known || now.Distance > cfg.ResumeDistance:
		return Decision{Next: WalkFast}
	case now.Distance > cfg.ArriveDistance:
		return Decision{Next: WalkSlow}
	default:
		return Decision{Next: Stopped}
	}
}

// Steer picks the steering state for a marker offset (marker x minus
// reference x).
func Steer(offset, deadzone int) Steering {
	switch {
	case offset < -deadzone:
		return SteerLeft
	case offset > deadzone:
		return SteerRight
	}
	return Straight
}
