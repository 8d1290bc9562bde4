package engine

import (
	"fmt"

	"github.com/hailam/chessplay/sfnnue"
	"github.com/hailam/chessplay/sfnnue/features"

	"github.com/wowthecoder/PandaChess/internal/board"
)

// sfnnuePiece maps [color][pieceType] to the sfnnue piece encoding
// (W_PAWN=1..W_KING=6, B_PAWN=9..B_KING=14).
var sfnnuePiece = [2][6]int{
	{1, 2, 3, 4, 5, 6},
	{9, 10, 11, 12, 13, 14},
}

// dirtyPiece records one piece change of a move. FromSq -1 means the piece
// was added (promotion); ToSq -1 means it was removed (capture).
type dirtyPiece struct {
	piece  int
	fromSq int
	toSq   int
}

// dirtyState holds the feature changes of the most recent move.
type dirtyState struct {
	pieces    [3]dirtyPiece // move, capture, promotion piece at most
	count     int
	kingMoved [2]bool
	computed  bool
}

// NNUEEvaluator adapts the sfnnue dual-network evaluation to the Evaluator
// interface. The networks are shared read-only between workers; the
// accumulator stack and dirty state are per worker.
type NNUEEvaluator struct {
	nets  *sfnnue.Networks
	acc   *sfnnue.AccumulatorStack
	dirty dirtyState

	indexBuf [64]int
}

// LoadNNUENetworks loads the big and small network files once; the result
// can back any number of NNUEEvaluator instances.
func LoadNNUENetworks(bigPath, smallPath string) (*sfnnue.Networks, error) {
	nets, err := sfnnue.LoadNetworks(bigPath, smallPath)
	if err != nil {
		return nil, fmt.Errorf("loading NNUE networks: %w", err)
	}
	return nets, nil
}

// NewNNUEEvaluator creates a per-worker evaluator over shared networks.
func NewNNUEEvaluator(nets *sfnnue.Networks) *NNUEEvaluator {
	return &NNUEEvaluator{
		nets: nets,
		acc:  sfnnue.NewAccumulatorStack(),
	}
}

// Reset discards all accumulator state before a new search.
func (e *NNUEEvaluator) Reset() {
	e.acc.Reset()
	e.dirty = dirtyState{}
}

func (e *NNUEEvaluator) Available() bool {
	return e.nets != nil
}

// MakeMove records the feature deltas of m (called before the move is
// applied) and pushes a new accumulator frame.
func (e *NNUEEvaluator) MakeMove(pos *board.Position, m board.Move) {
	e.dirty = dirtyState{}

	from := m.From()
	to := m.To()
	moving := pos.PieceAt(from)
	us := moving.Color()
	pt := moving.Type()

	if pt == board.King || m.IsCastling() {
		// King moves invalidate that perspective's whole feature set.
		e.dirty.kingMoved[us] = true
		e.dirty.computed = true
		e.push()
		return
	}

	e.dirty.pieces[e.dirty.count] = dirtyPiece{
		piece:  sfnnuePiece[us][pt],
		fromSq: int(from),
		toSq:   int(to),
	}
	e.dirty.count++

	if m.IsEnPassant() {
		capturedSq := to - 8
		if us == board.Black {
			capturedSq = to + 8
		}
		e.dirty.pieces[e.dirty.count] = dirtyPiece{
			piece:  sfnnuePiece[us.Other()][board.Pawn],
			fromSq: int(capturedSq),
			toSq:   -1,
		}
		e.dirty.count++
	} else if captured := pos.PieceAt(to); captured != board.NoPiece {
		e.dirty.pieces[e.dirty.count] = dirtyPiece{
			piece:  sfnnuePiece[captured.Color()][captured.Type()],
			fromSq: int(to),
			toSq:   -1,
		}
		e.dirty.count++
	}

	if m.IsPromotion() {
		// The pawn disappears and the promotion piece appears.
		e.dirty.pieces[0].toSq = -1
		e.dirty.pieces[e.dirty.count] = dirtyPiece{
			piece:  sfnnuePiece[us][m.Promotion()],
			fromSq: -1,
			toSq:   int(to),
		}
		e.dirty.count++
	}

	e.dirty.computed = true
	e.push()
}

func (e *NNUEEvaluator) push() {
	e.acc.Push()

	big := e.acc.CurrentBig()
	small := e.acc.CurrentSmall()

	for p := 0; p < 2; p++ {
		kingMoved := !e.dirty.computed || e.dirty.kingMoved[p]
		big.NeedsRefresh[p] = kingMoved
		small.NeedsRefresh[p] = kingMoved
		// Inherited values describe the parent position; they become valid
		// only after an incremental update or recomputation.
		big.Computed[p] = false
		small.Computed[p] = false
	}
}

func (e *NNUEEvaluator) UnmakeMove() {
	e.acc.Pop()
	e.dirty = dirtyState{}
}

// MakeNull pushes a frame without touching the features: the placement is
// unchanged, so inherited accumulators stay valid.
func (e *NNUEEvaluator) MakeNull() {
	e.acc.Push()
	e.dirty = dirtyState{}
}

func (e *NNUEEvaluator) UnmakeNull() {
	e.acc.Pop()
}

// Evaluate runs the dual-network NNUE evaluation for the position.
func (e *NNUEEvaluator) Evaluate(pos *board.Position) int {
	sideToMove := 0
	if pos.SideToMove == board.Black {
		sideToMove = 1
	}
	pieceCount := pos.AllOccupied.PopCount()

	big := e.acc.CurrentBig()
	small := e.acc.CurrentSmall()

	e.ensureComputed(e.nets.Big, big, pos, false)
	e.ensureComputed(e.nets.Small, small, pos, true)

	bigPsqt, bigPositional := e.nets.Big.Evaluate(
		big.Accumulation, big.PSQTAccumulation, sideToMove, pieceCount)
	smallPsqt, _ := e.nets.Small.Evaluate(
		small.Accumulation, small.PSQTAccumulation, sideToMove, pieceCount)

	// Big network positional plus the averaged PSQT of both networks.
	score := int(bigPositional) + int(smallPsqt+bigPsqt)/2

	// Dampen as the fifty-move counter grows.
	score -= score * pos.HalfMoveClock / 200

	// The evaluator must never wander into the mate band.
	if score > MateScore-MaxPly-1 {
		score = MateScore - MaxPly - 1
	} else if score < -MateScore+MaxPly+1 {
		score = -MateScore + MaxPly + 1
	}

	return score
}

// ensureComputed brings one network's accumulator up to date for both
// perspectives, incrementally when the previous frame allows it.
func (e *NNUEEvaluator) ensureComputed(net *sfnnue.Network, acc *sfnnue.Accumulator, pos *board.Position, isSmall bool) {
	var prev *sfnnue.Accumulator
	if isSmall {
		prev = e.acc.PreviousSmall()
	} else {
		prev = e.acc.PreviousBig()
	}

	for perspective := 0; perspective < 2; perspective++ {
		if acc.Computed[perspective] {
			continue
		}

		canIncremental := prev != nil &&
			prev.Computed[perspective] &&
			!acc.NeedsRefresh[perspective] &&
			e.dirty.computed && e.dirty.count > 0

		if canIncremental {
			ksq := int(pos.KingSquare[board.Color(perspective)])
			removed, added := e.featureDeltas(perspective, ksq)
			net.FeatureTransformer.UpdateAccumulator(
				removed, added,
				acc.Accumulation[perspective],
				acc.PSQTAccumulation[perspective],
			)
		} else {
			e.recompute(net, acc, pos, perspective)
		}

		acc.Computed[perspective] = true
		acc.KingSq[perspective] = int(pos.KingSquare[board.Color(perspective)])
	}
}

// featureDeltas converts the dirty pieces into removed/added feature indices
// for one perspective.
func (e *NNUEEvaluator) featureDeltas(perspective, ksq int) (removed, added []int) {
	removedBuf := e.indexBuf[0:0:32]
	addedBuf := e.indexBuf[32:32:64]

	for i := 0; i < e.dirty.count; i++ {
		dp := &e.dirty.pieces[i]
		if dp.fromSq >= 0 {
			removedBuf = append(removedBuf, features.MakeIndex(perspective, dp.fromSq, dp.piece, ksq))
		}
		if dp.toSq >= 0 {
			addedBuf = append(addedBuf, features.MakeIndex(perspective, dp.toSq, dp.piece, ksq))
		}
	}

	return removedBuf, addedBuf
}

// recompute rebuilds the accumulator from the full piece placement.
func (e *NNUEEvaluator) recompute(net *sfnnue.Network, acc *sfnnue.Accumulator, pos *board.Position, perspective int) {
	var active features.IndexList
	ksq := int(pos.KingSquare[board.Color(perspective)])

	for c := 0; c < 2; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			pc := sfnnuePiece[c][pt]
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				active.Push(features.MakeIndex(perspective, int(sq), pc, ksq))
			}
		}
	}

	indices := e.indexBuf[:active.Size]
	for i := 0; i < active.Size; i++ {
		indices[i] = active.Values[i]
	}

	net.FeatureTransformer.ComputeAccumulator(
		indices,
		acc.Accumulation[perspective],
		acc.PSQTAccumulation[perspective],
	)
}
