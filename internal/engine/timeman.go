package engine

import (
	"time"

	"github.com/wowthecoder/PandaChess/internal/board"
)

// SearchLimits carries the parsed "go" parameters.
type SearchLimits struct {
	Depth     int
	MoveTime  time.Duration
	Time      [2]time.Duration // remaining clock per color
	Inc       [2]time.Duration // increment per color
	MovesToGo int
	Infinite  bool
}

// moveOverhead compensates for I/O latency between the engine and the GUI.
const moveOverhead = 10 * time.Millisecond

// defaultMovesToGo spreads sudden-death time over an assumed horizon.
const defaultMovesToGo = 30

// AllocateTime converts the limits into a hard per-move budget for the side
// to move. Zero means no time limit (infinite or depth-only searches).
func AllocateTime(limits SearchLimits, us board.Color) time.Duration {
	if limits.Infinite {
		return 0
	}

	if limits.MoveTime > 0 {
		budget := limits.MoveTime - moveOverhead
		if budget < time.Millisecond {
			budget = time.Millisecond
		}
		return budget
	}

	myTime := limits.Time[us]
	if myTime <= 0 {
		return 0
	}
	myInc := limits.Inc[us]

	divisor := limits.MovesToGo
	if divisor <= 0 {
		divisor = defaultMovesToGo
	}

	budget := myTime/time.Duration(divisor) + myInc*3/4

	if maxBudget := myTime - moveOverhead; budget > maxBudget {
		budget = maxBudget
	}
	if budget < time.Millisecond {
		budget = time.Millisecond
	}

	return budget
}
