package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: drain packet queues, apply intents
	PhaseEvents               // 1: dispatch last tick's events
	PhaseScript               // 2: level logic edits labels and velocities
	PhasePhysics              // 3: swept collision step
	PhasePolicy               // 4: off-grid policy, animation
	PhaseOutput               // 5: build + send snapshots
	PhasePersist              // 6: frame stats
	PhaseCleanup              // 7: free queued entities
)

var phaseNames = [...]string{"input", "events", "script", "physics", "policy", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
