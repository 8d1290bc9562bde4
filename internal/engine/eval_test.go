package engine

import (
	"testing"

	"github.com/wowthecoder/PandaChess/internal/board"
)

func evalFEN(t *testing.T, fen string) int {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return Evaluate(pos)
}

func TestEvaluateStartPositionNearZero(t *testing.T) {
	score := evalFEN(t, board.StartFEN)
	if score < -50 || score > 50 {
		t.Errorf("start position eval = %d, want within ±50", score)
	}
}

// A symmetric position must evaluate identically for both sides to move,
// modulo the tempo bonus.
func TestEvaluateSymmetry(t *testing.T) {
	white := evalFEN(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	black := evalFEN(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1")

	if white != black {
		t.Errorf("symmetric position: white to move %d, black to move %d", white, black)
	}
}

func TestEvaluateMaterialAdvantage(t *testing.T) {
	base := evalFEN(t, "4k3/pppppppp/8/8/8/8/PPPPPPPP/4K3 w - - 0 1")
	upARook := evalFEN(t, "4k3/pppppppp/8/8/8/8/PPPPPPPP/R3K3 w - - 0 1")

	if upARook <= base {
		t.Errorf("extra rook eval %d not better than base %d", upARook, base)
	}
	if upARook-base < 300 {
		t.Errorf("extra rook worth only %d cp", upARook-base)
	}
}

func TestEvaluateSideToMovePerspective(t *testing.T) {
	// White is a queen up; Black to move must see a negative score.
	score := evalFEN(t, "4k3/8/8/8/8/8/8/Q3K3 b - - 0 1")
	if score >= 0 {
		t.Errorf("queen-down side to move sees %d, want negative", score)
	}
}

func TestEvaluateBishopPair(t *testing.T) {
	pair := evalFEN(t, "4k3/8/8/8/8/8/8/2BBK3 w - - 0 1")
	knightAndBishop := evalFEN(t, "4k3/8/8/8/8/8/8/1NB1K3 w - - 0 1")

	if pair <= knightAndBishop {
		t.Errorf("bishop pair %d not preferred over N+B %d", pair, knightAndBishop)
	}
}

func TestEvaluateRookOpenFile(t *testing.T) {
	// Rook on the open e-file versus behind its own pawn.
	open := evalFEN(t, "4k3/pppp1ppp/8/8/8/8/PPPP1PPP/4RK2 w - - 0 1")
	closed := evalFEN(t, "4k3/pppp1ppp/8/8/8/4P3/PPPP1PP1/4RK2 w - - 0 1")

	// Both positions have seven white pawns; the closed one has the h-pawn
	// on e3 instead. The open-file rook must not come out more than a pawn
	// behind.
	if open < closed-PawnValue {
		t.Errorf("open-file rook eval %d vs closed %d: no open-file credit", open, closed)
	}
}

func TestEvaluatePassedPawn(t *testing.T) {
	// The e-pawn is passed in one position and blocked by an enemy d-pawn's
	// coverage in the other.
	passed := evalFEN(t, "4k3/8/8/8/4P3/8/8/4K3 w - - 0 1")
	notPassed := evalFEN(t, "4k3/3p4/8/8/4P3/8/8/4K3 w - - 0 1")

	if passed <= notPassed {
		t.Errorf("passed pawn %d not preferred over covered pawn %d", passed, notPassed)
	}
}

func TestEvaluateDoubledPawnPenalty(t *testing.T) {
	healthy := evalFEN(t, "4k3/8/8/8/8/8/3PP3/4K3 w - - 0 1")
	doubled := evalFEN(t, "4k3/8/8/8/8/3P4/3P4/4K3 w - - 0 1")

	if doubled >= healthy {
		t.Errorf("doubled pawns %d not penalized against healthy pawns %d", doubled, healthy)
	}
}

func TestEvaluateStaysOutOfMateBand(t *testing.T) {
	// Even with huge material imbalances the static eval must stay far
	// from mate scores.
	score := evalFEN(t, "4k3/8/8/8/8/8/QQQQQQQQ/QQQQKQQQ w - - 0 1")
	if score >= MateScore-MaxPly {
		t.Errorf("eval %d reached the mate band", score)
	}
}

func TestPawnTableCaching(t *testing.T) {
	pt := NewPawnTable(1)
	pos := board.NewPosition()

	if _, _, found := pt.Probe(pos.PawnKey); found {
		t.Error("expected a miss on first probe")
	}

	mg1, eg1 := pawnStructure(pos, pt)

	mg2, eg2, found := pt.Probe(pos.PawnKey)
	if !found {
		t.Fatal("expected a hit after evaluation")
	}
	if mg1 != mg2 || eg1 != eg2 {
		t.Errorf("cached scores (%d,%d) differ from computed (%d,%d)", mg2, eg2, mg1, eg1)
	}

	// Evaluating through the cache must agree with evaluating without it.
	with := EvaluateWithPawnTable(pos, pt)
	without := Evaluate(pos)
	if with != without {
		t.Errorf("cached eval %d != uncached eval %d", with, without)
	}
}
