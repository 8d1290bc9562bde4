package engine

import (
	"github.com/wowthecoder/PandaChess/internal/board"
)

// Move ordering scores. The TT move always goes first, then captures by
// MVV-LVA, then the two killers, then quiets by history.
const (
	ttMoveScore   = 10000000
	captureBase   = 1000000
	killer1Score  = 900000
	killer2Score  = 800000
)

// mvvLvaScore orders captures by Most Valuable Victim, Least Valuable
// Attacker: victim value dominates, attacker value breaks ties.
func mvvLvaScore(pos *board.Position, m board.Move) int {
	var victimVal int
	if m.IsEnPassant() {
		victimVal = PawnValue
	} else {
		victimVal = pieceValues[pos.PieceAt(m.To()).Type()]
	}

	attackerVal := pieceValues[pos.PieceAt(m.From()).Type()]

	return captureBase + victimVal*10 - attackerVal
}

// scoreMoves assigns an ordering score to every move in the list.
func (s *Searcher) scoreMoves(pos *board.Position, moves *board.MoveList, scores []int, ttMove board.Move, ply int) {
	side := pos.SideToMove
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)

		switch {
		case m == ttMove && ttMove != board.NoMove:
			scores[i] = ttMoveScore
		case m.IsCapture(pos):
			scores[i] = mvvLvaScore(pos, m)
		case ply < MaxPly && m == s.killers[ply][0]:
			scores[i] = killer1Score
		case ply < MaxPly && m == s.killers[ply][1]:
			scores[i] = killer2Score
		default:
			scores[i] = s.history[side][m.From()][m.To()]
		}
	}
}

// scoreCaptures orders a capture list by MVV-LVA only (quiescence).
func scoreCaptures(pos *board.Position, moves *board.MoveList, scores []int) {
	for i := 0; i < moves.Len(); i++ {
		scores[i] = mvvLvaScore(pos, moves.Get(i))
	}
}

// pickBest selects the best remaining move and swaps it to position idx.
// Incremental selection sort: nodes that cut off early never pay for a full
// sort.
func pickBest(moves *board.MoveList, scores []int, idx int) {
	best := idx
	for j := idx + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != idx {
		moves.Swap(idx, best)
		scores[idx], scores[best] = scores[best], scores[idx]
	}
}

// updateKillers installs a quiet cutoff move in killer slot 0, shifting the
// previous one down.
func (s *Searcher) updateKillers(m board.Move, ply int) {
	if ply >= MaxPly || s.killers[ply][0] == m {
		return
	}
	s.killers[ply][1] = s.killers[ply][0]
	s.killers[ply][0] = m
}

// updateHistory rewards a quiet cutoff move with depth².
func (s *Searcher) updateHistory(side board.Color, m board.Move, depth int) {
	s.history[side][m.From()][m.To()] += depth * depth

	if s.history[side][m.From()][m.To()] > 400000 {
		for c := range s.history {
			for f := range s.history[c] {
				for t := range s.history[c][f] {
					s.history[c][f][t] /= 2
				}
			}
		}
	}
}
