package engine

import (
	"sync/atomic"

	"github.com/hailam/chessplay/sfnnue"
	"golang.org/x/sync/errgroup"

	"github.com/wowthecoder/PandaChess/internal/board"
)

// DefaultHashMB is the transposition table size before any setoption.
const DefaultHashMB = 64

// Engine owns the shared search resources: the transposition table, the
// evaluator configuration and the stop flag. One Engine serves one UCI
// session.
type Engine struct {
	tt       *TranspositionTable
	threads  int
	evalMode EvalMode

	// Loaded NNUE networks, shared read-only by all workers; nil when
	// unavailable.
	nnueNets *sfnnue.Networks

	stop atomic.Bool
}

// NewEngine creates an engine with the given hash size in MB.
func NewEngine(hashMB int) *Engine {
	return &Engine{
		tt:       NewTranspositionTable(hashMB),
		threads:  1,
		evalMode: EvalNNUE,
	}
}

// SetHash reallocates the transposition table. Only called between searches.
func (e *Engine) SetHash(sizeMB int) {
	e.tt = NewTranspositionTable(sizeMB)
}

// SetThreads sets the number of search workers, clamped to [1, 256].
func (e *Engine) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	if n > 256 {
		n = 256
	}
	e.threads = n
}

// SetEvalMode selects the evaluator. A request for NNUE without loaded
// networks reverts to handcrafted at search time.
func (e *Engine) SetEvalMode(mode EvalMode) {
	e.evalMode = mode
}

// EvalMode returns the configured evaluator mode.
func (e *Engine) EvalMode() EvalMode {
	return e.evalMode
}

// SetNNUENetworks installs loaded networks (or nil to disable NNUE).
func (e *Engine) SetNNUENetworks(nets *sfnnue.Networks) {
	e.nnueNets = nets
}

// HasNNUE reports whether NNUE networks are loaded.
func (e *Engine) HasNNUE() bool {
	return e.nnueNets != nil
}

// newEvaluator builds a per-worker evaluator for the active mode.
func (e *Engine) newEvaluator() Evaluator {
	if e.evalMode == EvalNNUE && e.nnueNets != nil {
		return NewNNUEEvaluator(e.nnueNets)
	}
	return NewHandcraftedEvaluator(1)
}

// Search runs iterative deepening under the given limits and returns the
// best move of the last completed iteration. repHistory carries the game's
// position hashes up to and including the root, for repetition detection.
func (e *Engine) Search(pos *board.Position, limits SearchLimits, repHistory []uint64, infoCb InfoCallback) SearchResult {
	return <-e.StartSearch(pos, limits, repHistory, infoCb)
}

// StartSearch launches the search on its own goroutine and returns the
// channel its result will arrive on. The stop flag is rearmed before this
// returns, so a Stop issued any time afterwards reliably cancels the
// search; Search alone has a window where a concurrent Stop could be
// overwritten by the rearm.
func (e *Engine) StartSearch(pos *board.Position, limits SearchLimits, repHistory []uint64, infoCb InfoCallback) <-chan SearchResult {
	e.stop.Store(false)
	e.tt.NewSearch()

	ch := make(chan SearchResult, 1)
	go func() {
		ch <- e.run(pos, limits, repHistory, infoCb)
	}()
	return ch
}

// run drives the main worker and, with Threads > 1, the Lazy SMP helpers:
// independent deepening loops on clones of the root position, sharing the
// transposition table and the stop flag. The main worker's result is the
// one reported.
func (e *Engine) run(pos *board.Position, limits SearchLimits, repHistory []uint64, infoCb InfoCallback) SearchResult {
	timeLimit := AllocateTime(limits, pos.SideToMove)

	maxDepth := limits.Depth
	if maxDepth <= 0 {
		maxDepth = MaxPly
	}

	var g errgroup.Group
	for i := 1; i < e.threads; i++ {
		helper := NewSearcher(e.tt, e.newEvaluator(), &e.stop)
		helperPos := pos.Copy()
		g.Go(func() error {
			helper.IterateSearch(helperPos, maxDepth, timeLimit, repHistory, nil)
			return nil
		})
	}

	main := NewSearcher(e.tt, e.newEvaluator(), &e.stop)
	result := main.IterateSearch(pos, maxDepth, timeLimit, repHistory, infoCb)

	e.stop.Store(true)
	_ = g.Wait()

	return result
}

// Stop requests cooperative cancellation of the running search.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Clear resets the transposition table, for ucinewgame.
func (e *Engine) Clear() {
	e.tt.Clear()
}

// TT exposes the shared transposition table (hashfull reporting, tests).
func (e *Engine) TT() *TranspositionTable {
	return e.tt
}

// Perft counts the leaf nodes of the legal move tree to the given depth.
func Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := pos.MakeMove(m)
		nodes += Perft(pos, depth-1)
		pos.UnmakeMove(m, undo)
	}

	return nodes
}
