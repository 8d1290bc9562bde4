package engine

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/wowthecoder/PandaChess/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// Pruning and reduction parameters
const (
	aspirationWindow = 50 // initial aspiration half-width in centipawns

	lmrMinDepth        = 3 // only reduce at depth >= 3
	lmrFullSearchMoves = 3 // never reduce the first N moves

	futilityMaxDepth = 3
	deltaMargin      = 200 // quiescence delta pruning buffer

	nmpMinDepth    = 3
	nmpReduction   = 2
	nmpVerifyDepth = 6   // verify null-move cutoffs at depth >= 6
	nmpMinMaterial = 400 // minimum non-pawn material for null moves
)

// Futility margins indexed by depth (1..3).
var futilityMargin = [4]int{0, 200, 350, 500}

// Reverse futility margins indexed by depth (1..3).
var rfpMargin = [4]int{0, 100, 250, 400}

// lmrTable[depth][moveIndex] holds the logarithmic late-move reduction.
var lmrTable [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrTable[d][m] = int(0.75 + math.Log(float64(d))*math.Log(float64(m))/2.25)
		}
	}
}

// SearchResult is the outcome of one completed search depth.
type SearchResult struct {
	BestMove board.Move
	Score    int
}

// SearchInfo is reported after each completed iteration.
type SearchInfo struct {
	Depth     int
	Score     int
	IsMate    bool
	MateInPly int // signed mate distance in full moves, as UCI "score mate" reports it
	Nodes     uint64
	Time      time.Duration
	PV        []board.Move
	HashFull  int
}

// InfoCallback receives SearchInfo updates during iterative deepening.
type InfoCallback func(SearchInfo)

// Searcher holds the per-worker search state. It owns its killers, history
// and repetition stack; the transposition table and stop flag are shared.
type Searcher struct {
	tt   *TranspositionTable
	eval Evaluator

	pos *board.Position

	killers [MaxPly][2]board.Move
	history [2][64][64]int

	// Repetition stack: game history up to the root, then one hash per ply.
	repHistory   []uint64
	rootRepIndex int

	startTime    time.Time
	timeLimit    time.Duration // zero means no limit
	stopped      bool
	externalStop *atomic.Bool

	nodes uint64
}

// NewSearcher creates a search worker sharing the given table and stop flag.
func NewSearcher(tt *TranspositionTable, eval Evaluator, stop *atomic.Bool) *Searcher {
	return &Searcher{
		tt:           tt,
		eval:         eval,
		externalStop: stop,
	}
}

// Nodes returns the number of nodes searched so far.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// ClearHeuristics resets killers and history between games.
func (s *Searcher) ClearHeuristics() {
	for i := range s.killers {
		s.killers[i][0] = board.NoMove
		s.killers[i][1] = board.NoMove
	}
	for c := range s.history {
		for f := range s.history[c] {
			for t := range s.history[c][f] {
				s.history[c][f][t] = 0
			}
		}
	}
}

// checkTime polls the external stop flag and the deadline. Once either
// fires, the search stays stopped.
func (s *Searcher) checkTime() bool {
	if s.stopped {
		return true
	}
	if s.externalStop != nil && s.externalStop.Load() {
		s.stopped = true
		return true
	}
	// The deadline check is throttled; a clock read per node is measurable.
	if s.timeLimit > 0 && s.nodes&1023 == 0 {
		if time.Since(s.startTime) >= s.timeLimit {
			s.stopped = true
			return true
		}
	}
	return false
}

func (s *Searcher) evaluate() int {
	return s.eval.Evaluate(s.pos)
}

// pushRep records the child hash at repIndex+1, growing the stack at most
// one entry per ply.
func (s *Searcher) pushRep(repIndex int, hash uint64) int {
	child := repIndex + 1
	if child >= len(s.repHistory) {
		s.repHistory = append(s.repHistory, hash)
	} else {
		s.repHistory[child] = hash
	}
	return child
}

// isThreefoldRepetition reports whether the current position occurred at
// least twice before on the stack, looking back only as far as the halfmove
// clock allows (a pawn move or capture makes older hashes unreachable).
// Same-side positions are spaced two plies apart.
func (s *Searcher) isThreefoldRepetition(repIndex int) bool {
	if repIndex < 0 || repIndex >= len(s.repHistory) {
		return false
	}
	if s.pos.HalfMoveClock < 4 {
		return false
	}

	key := s.pos.Hash
	count := 1
	maxBack := s.pos.HalfMoveClock
	if maxBack > repIndex {
		maxBack = repIndex
	}

	for i := repIndex - 2; i >= 0 && repIndex-i <= maxBack; i -= 2 {
		if s.repHistory[i] == key {
			count++
			if count >= 3 {
				return true
			}
		}
	}
	return false
}

// initRepetitionHistory seeds the stack from the game history leading to the
// root position.
func (s *Searcher) initRepetitionHistory(history []uint64) {
	s.repHistory = s.repHistory[:0]
	s.repHistory = append(s.repHistory, history...)
	if len(s.repHistory) == 0 || s.repHistory[len(s.repHistory)-1] != s.pos.Hash {
		s.repHistory = append(s.repHistory, s.pos.Hash)
	}
	s.rootRepIndex = len(s.repHistory) - 1
}

// negamax is the main alpha-beta search.
func (s *Searcher) negamax(depth, ply, alpha, beta, repIndex int, allowNull bool) int {
	if s.checkTime() {
		return 0
	}
	s.nodes++

	if ply >= MaxPly {
		return s.evaluate()
	}

	if s.isThreefoldRepetition(repIndex) {
		return 0
	}

	moves := s.pos.GenerateLegalMoves()

	// Terminal nodes
	if moves.Len() == 0 {
		if s.pos.InCheck() {
			return -MateScore + ply
		}
		return 0
	}

	if s.pos.IsDrawByFiftyMoveRule() || s.pos.IsInsufficientMaterial() {
		return 0
	}

	// TT probe
	ttMove := board.NoMove
	if entry, ok := s.tt.Probe(s.pos.Hash); ok {
		ttMove = entry.BestMove
		if int(entry.Depth) >= depth {
			ttScore := ScoreFromTT(int(entry.Score), ply)
			switch entry.Flag {
			case TTExact:
				return ttScore
			case TTLowerBound:
				if ttScore >= beta {
					return ttScore
				}
			case TTUpperBound:
				if ttScore <= alpha {
					return ttScore
				}
			}
		}
	}

	if depth <= 0 {
		return s.quiescence(ply, alpha, beta, repIndex)
	}

	inCheck := s.pos.InCheck()
	pvNode := beta-alpha > 1
	staticEval := s.evaluate()

	// Reverse futility pruning: the static eval beats beta by a safety
	// margin, so a shallow search is very unlikely to fall below it.
	if !pvNode && !inCheck && depth <= futilityMaxDepth &&
		abs(beta) < MateScore-MaxPly && staticEval-rfpMargin[depth] >= beta {
		return staticEval - rfpMargin[depth]
	}

	// Null move pruning: give the opponent a free move; if the reduced
	// search still fails high, the real position almost certainly does too.
	// Skipped without non-pawn material (zugzwang).
	if allowNull && !inCheck && depth >= nmpMinDepth &&
		s.nonPawnMaterial(s.pos.SideToMove) >= nmpMinMaterial {

		s.eval.MakeNull()
		nullUndo := s.pos.MakeNullMove()
		nullRep := s.pushRep(repIndex, s.pos.Hash)

		reduction := nmpReduction
		if depth > 6 {
			reduction++
		}
		nullDepth := depth - 1 - reduction
		if nullDepth < 0 {
			nullDepth = 0
		}

		nullScore := -s.negamax(nullDepth, ply+1, -beta, -beta+1, nullRep, false)

		s.pos.UnmakeNullMove(nullUndo)
		s.eval.UnmakeNull()

		if s.stopped {
			return 0
		}

		if nullScore >= beta {
			if depth >= nmpVerifyDepth {
				// Verification: re-search this node without null moves.
				verify := s.negamax(depth-1, ply, beta-1, beta, repIndex, false)
				if s.stopped {
					return 0
				}
				if verify >= beta {
					return beta
				}
			} else {
				return beta
			}
		}
	}

	var scores [256]int
	s.scoreMoves(s.pos, moves, scores[:moves.Len()], ttMove, ply)

	bestMove := moves.Get(0)
	flag := TTUpperBound

	for i := 0; i < moves.Len(); i++ {
		pickBest(moves, scores[:moves.Len()], i)
		m := moves.Get(i)
		capture := m.IsCapture(s.pos)
		promotion := m.IsPromotion()

		// Futility pruning: near the leaves, quiet moves that cannot raise
		// alpha are skipped. The first move is always searched so a legal
		// best move exists.
		if !pvNode && !inCheck && depth <= futilityMaxDepth && i > 0 &&
			!capture && !promotion && abs(alpha) < MateScore-MaxPly &&
			staticEval+futilityMargin[depth] <= alpha {
			continue
		}

		s.eval.MakeMove(s.pos, m)
		undo := s.pos.MakeMove(m)
		childRep := s.pushRep(repIndex, s.pos.Hash)

		var score int
		doLMR := !inCheck && depth >= lmrMinDepth && i >= lmrFullSearchMoves &&
			!capture && !promotion

		if doLMR {
			reduction := lmrTable[min(depth, 63)][min(i, 63)]
			if reduction < 1 {
				reduction = 1
			}
			reducedDepth := depth - 1 - reduction
			if reducedDepth < 0 {
				reducedDepth = 0
			}

			score = -s.negamax(reducedDepth, ply+1, -alpha-1, -alpha, childRep, true)

			if !s.stopped && score > alpha {
				score = -s.negamax(depth-1, ply+1, -alpha-1, -alpha, childRep, true)
			}
			if !s.stopped && score > alpha && score < beta {
				score = -s.negamax(depth-1, ply+1, -beta, -alpha, childRep, true)
			}
		} else {
			score = -s.negamax(depth-1, ply+1, -beta, -alpha, childRep, true)
		}

		s.pos.UnmakeMove(m, undo)
		s.eval.UnmakeMove()

		if s.stopped {
			return 0
		}

		if score >= beta {
			s.tt.Store(s.pos.Hash, ScoreToTT(score, ply), depth, TTLowerBound, m)

			if !capture {
				s.updateKillers(m, ply)
				s.updateHistory(s.pos.SideToMove, m, depth)
			}

			return beta
		}
		if score > alpha {
			alpha = score
			bestMove = m
			flag = TTExact
		}
	}

	s.tt.Store(s.pos.Hash, ScoreToTT(alpha, ply), depth, flag, bestMove)
	return alpha
}

// quiescence resolves captures (and evasions when in check) past the
// nominal horizon so the evaluation is taken on a quiet position.
func (s *Searcher) quiescence(ply, alpha, beta, repIndex int) int {
	if s.checkTime() {
		return 0
	}
	s.nodes++

	if ply >= MaxPly {
		return s.evaluate()
	}

	if s.isThreefoldRepetition(repIndex) {
		return 0
	}

	inCheck := s.pos.InCheck()
	standPat := 0

	var qmoves *board.MoveList
	if inCheck {
		// Every evasion is forcing; no stand pat while in check.
		qmoves = s.pos.GenerateLegalMoves()
		if qmoves.Len() == 0 {
			return -MateScore + ply
		}
	} else {
		standPat = s.evaluate()
		if standPat >= beta {
			return beta
		}
		if standPat > alpha {
			alpha = standPat
		}
		qmoves = s.pos.GenerateCaptures()
	}

	var scores [256]int
	scoreCaptures(s.pos, qmoves, scores[:qmoves.Len()])

	for i := 0; i < qmoves.Len(); i++ {
		pickBest(qmoves, scores[:qmoves.Len()], i)
		m := qmoves.Get(i)

		// Delta pruning: even winning this capture plus a margin cannot
		// raise alpha.
		if !inCheck && standPat+captureValue(s.pos, m)+deltaMargin < alpha {
			continue
		}

		s.eval.MakeMove(s.pos, m)
		undo := s.pos.MakeMove(m)
		childRep := s.pushRep(repIndex, s.pos.Hash)

		score := -s.quiescence(ply+1, -beta, -alpha, childRep)

		s.pos.UnmakeMove(m, undo)
		s.eval.UnmakeMove()

		if s.stopped {
			return 0
		}

		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// captureValue is the material swing of a capture, used for delta pruning.
// En passant is worth a pawn; promotion adds the queen-pawn difference.
func captureValue(pos *board.Position, m board.Move) int {
	value := 0

	if m.IsEnPassant() {
		value = PawnValue
	} else if victim := pos.PieceAt(m.To()); victim != board.NoPiece {
		value = pieceValues[victim.Type()]
	}

	if m.IsPromotion() {
		value += QueenValue - PawnValue
	}

	return value
}

func (s *Searcher) nonPawnMaterial(c board.Color) int {
	return s.pos.Pieces[c][board.Knight].PopCount()*KnightValue +
		s.pos.Pieces[c][board.Bishop].PopCount()*BishopValue +
		s.pos.Pieces[c][board.Rook].PopCount()*RookValue +
		s.pos.Pieces[c][board.Queen].PopCount()*QueenValue
}

// searchRoot runs one depth iteration at the root.
func (s *Searcher) searchRoot(depth, alpha, beta int) SearchResult {
	origAlpha := alpha
	moves := s.pos.GenerateLegalMoves()

	if moves.Len() == 0 {
		if s.pos.InCheck() {
			return SearchResult{board.NoMove, -MateScore}
		}
		return SearchResult{board.NoMove, 0}
	}

	if s.isThreefoldRepetition(s.rootRepIndex) {
		return SearchResult{moves.Get(0), 0}
	}

	ttMove := board.NoMove
	if entry, ok := s.tt.Probe(s.pos.Hash); ok {
		ttMove = entry.BestMove
	}

	var scores [256]int
	s.scoreMoves(s.pos, moves, scores[:moves.Len()], ttMove, 0)

	bestMove := moves.Get(0)
	bestScore := -MateScore - 1

	for i := 0; i < moves.Len(); i++ {
		pickBest(moves, scores[:moves.Len()], i)
		m := moves.Get(i)

		s.eval.MakeMove(s.pos, m)
		undo := s.pos.MakeMove(m)
		childRep := s.pushRep(s.rootRepIndex, s.pos.Hash)

		score := -s.negamax(depth-1, 1, -beta, -alpha, childRep, true)

		s.pos.UnmakeMove(m, undo)
		s.eval.UnmakeMove()

		if s.stopped {
			break
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			break
		}
	}

	if !s.stopped {
		var flag TTFlag
		switch {
		case bestScore <= origAlpha:
			flag = TTUpperBound
		case bestScore >= beta:
			flag = TTLowerBound
		default:
			flag = TTExact
		}
		s.tt.Store(s.pos.Hash, ScoreToTT(bestScore, 0), depth, flag, bestMove)
	}

	return SearchResult{bestMove, bestScore}
}

// IterateSearch runs iterative deepening with aspiration windows on a clone
// of pos. It returns the last fully completed iteration's result; when
// stopped during depth 1, any legal best move found so far is kept.
func (s *Searcher) IterateSearch(pos *board.Position, maxDepth int, timeLimit time.Duration,
	repHistory []uint64, infoCb InfoCallback) SearchResult {

	s.pos = pos.Copy()
	s.startTime = time.Now()
	s.timeLimit = timeLimit
	s.stopped = false
	s.nodes = 0
	s.initRepetitionHistory(repHistory)

	if maxDepth < 1 || maxDepth > MaxPly {
		maxDepth = MaxPly
	}

	best := SearchResult{board.NoMove, 0}

	for depth := 1; depth <= maxDepth; depth++ {
		var result SearchResult

		if depth <= 1 {
			result = s.searchRoot(depth, -MateScore-1, MateScore+1)
		} else {
			// Aspiration: a window around the previous score, doubled on
			// every fail until the score fits.
			delta := aspirationWindow
			alpha := best.Score - delta
			beta := best.Score + delta

			for {
				result = s.searchRoot(depth, alpha, beta)
				if s.stopped {
					break
				}

				if result.Score <= alpha {
					alpha = max(alpha-delta, -MateScore-1)
					delta *= 2
				} else if result.Score >= beta {
					beta = min(beta+delta, MateScore+1)
					delta *= 2
				} else {
					break
				}
			}
		}

		if s.stopped {
			if depth == 1 && result.BestMove != board.NoMove {
				best = result
			}
			break
		}
		best = result

		if infoCb != nil {
			info := SearchInfo{
				Depth:    depth,
				Score:    best.Score,
				Nodes:    s.nodes,
				Time:     time.Since(s.startTime),
				PV:       s.ExtractPV(pos, depth),
				HashFull: s.tt.HashfullPermille(),
			}
			if best.Score > MateScore-MaxPly {
				info.IsMate = true
				info.MateInPly = (MateScore - best.Score + 1) / 2
			} else if best.Score < -MateScore+MaxPly {
				info.IsMate = true
				info.MateInPly = -((MateScore + best.Score + 1) / 2)
			}
			infoCb(info)
		}

		// A proven mate cannot improve with more depth.
		if best.Score > MateScore-MaxPly || best.Score < -MateScore+MaxPly {
			break
		}
	}

	return best
}

// ExtractPV walks the transposition table from the root, verifying each best
// move against the legal moves of the current position.
func (s *Searcher) ExtractPV(pos *board.Position, maxLen int) []board.Move {
	var pv []board.Move
	b := pos.Copy()

	for i := 0; i < maxLen; i++ {
		entry, ok := s.tt.Probe(b.Hash)
		if !ok || entry.BestMove == board.NoMove {
			break
		}
		legal := b.GenerateLegalMoves()
		if !legal.Contains(entry.BestMove) {
			break
		}
		pv = append(pv, entry.BestMove)
		b.MakeMove(entry.BestMove)
	}

	return pv
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
