package engine

import (
	"testing"
	"time"

	"github.com/wowthecoder/PandaChess/internal/board"
)

func TestEngineSearchBasic(t *testing.T) {
	eng := NewEngine(16)
	eng.SetEvalMode(EvalHandcrafted)
	pos := board.NewPosition()

	var infos []SearchInfo
	result := eng.Search(pos, SearchLimits{Depth: 4}, []uint64{pos.Hash}, func(info SearchInfo) {
		infos = append(infos, info)
	})

	if result.BestMove == board.NoMove {
		t.Fatal("no best move")
	}
	if !pos.GenerateLegalMoves().Contains(result.BestMove) {
		t.Errorf("best move %v is not legal", result.BestMove)
	}

	if len(infos) == 0 {
		t.Fatal("no info updates emitted")
	}
	for i, info := range infos {
		if info.Depth != i+1 {
			t.Errorf("info %d has depth %d, want %d", i, info.Depth, i+1)
		}
	}
	last := infos[len(infos)-1]
	if last.Nodes == 0 || len(last.PV) == 0 {
		t.Errorf("final info incomplete: %+v", last)
	}
}

func TestEngineSearchParallel(t *testing.T) {
	eng := NewEngine(16)
	eng.SetEvalMode(EvalHandcrafted)
	eng.SetThreads(4)
	pos := board.NewPosition()

	result := eng.Search(pos, SearchLimits{Depth: 5}, []uint64{pos.Hash}, nil)

	if result.BestMove == board.NoMove {
		t.Fatal("no best move from parallel search")
	}
	if !pos.GenerateLegalMoves().Contains(result.BestMove) {
		t.Errorf("best move %v is not legal", result.BestMove)
	}
}

func TestEngineStop(t *testing.T) {
	eng := NewEngine(16)
	eng.SetEvalMode(EvalHandcrafted)
	pos := board.NewPosition()

	done := make(chan SearchResult, 1)
	go func() {
		done <- eng.Search(pos, SearchLimits{Infinite: true}, []uint64{pos.Hash}, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	eng.Stop()

	select {
	case result := <-done:
		if result.BestMove == board.NoMove {
			t.Error("stopped search must still produce a best move")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("search did not stop")
	}
}

func TestEngineMoveTimeIsRespected(t *testing.T) {
	eng := NewEngine(16)
	eng.SetEvalMode(EvalHandcrafted)
	pos := board.NewPosition()

	start := time.Now()
	eng.Search(pos, SearchLimits{MoveTime: 100 * time.Millisecond}, []uint64{pos.Hash}, nil)
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("search ran %v, far beyond the 100ms budget", elapsed)
	}
}

func TestEngineFallsBackWithoutNNUE(t *testing.T) {
	eng := NewEngine(16)
	// Mode is NNUE by default, but no networks are loaded.
	if eng.EvalMode() != EvalNNUE {
		t.Fatal("default eval mode should be NNUE")
	}
	if eng.HasNNUE() {
		t.Fatal("no networks should be loaded in tests")
	}

	pos := board.NewPosition()
	result := eng.Search(pos, SearchLimits{Depth: 3}, []uint64{pos.Hash}, nil)
	if result.BestMove == board.NoMove {
		t.Error("handcrafted fallback must still search")
	}
}

func TestPerftThroughEngine(t *testing.T) {
	pos := board.NewPosition()
	if got := Perft(pos, 3); got != 8902 {
		t.Errorf("Perft(3) = %d, want 8902", got)
	}
}
