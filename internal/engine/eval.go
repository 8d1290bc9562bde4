package engine

import (
	"github.com/wowthecoder/PandaChess/internal/board"
)

// Evaluation constants
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
)

// Piece values for move ordering and pruning decisions.
var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, 20000, 0}

// Game phase weights per piece type; 24 = pure middlegame.
var phaseWeight = [6]int{0, 1, 1, 2, 4, 0}

const maxPhase = 24

// MG / EG base piece values (the positional component lives in the PSTs).
var mgPieceValue = [6]int{82, 337, 365, 477, 1025, 0}
var egPieceValue = [6]int{94, 281, 297, 512, 936, 0}

// Piece-square tables in CPW visual format: index 0 = a8 ... index 63 = h1.
// A white piece on square s reads table[s^56]; a black piece reads table[s].

var mgPawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	98, 134, 61, 95, 68, 126, 34, -11,
	-6, 7, 26, 31, 65, 56, 25, -20,
	-14, 13, 6, 21, 23, 12, 17, -23,
	-27, -2, -5, 12, 17, 6, 10, -25,
	-26, -4, -4, -10, 3, 3, 33, -12,
	-35, -1, -20, -23, -15, 24, 38, -22,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var mgKnightPST = [64]int{
	-167, -89, -34, -49, 61, -97, -15, -107,
	-73, -41, 72, 36, 23, 62, 7, -17,
	-47, 60, 37, 65, 84, 129, 73, 44,
	-9, 17, 19, 53, 37, 69, 18, 22,
	-13, 4, 16, 13, 28, 19, 21, -8,
	-23, -9, 12, 10, 19, 17, 25, -16,
	-29, -53, -12, -3, -1, 18, -14, -19,
	-105, -21, -58, -33, -17, -28, -19, -23,
}

var mgBishopPST = [64]int{
	-29, 4, -82, -37, -25, -42, 7, -8,
	-26, 16, -18, -13, 30, 59, 18, -47,
	-16, 37, 43, 40, 35, 50, 37, -2,
	-4, 5, 19, 50, 37, 37, 7, -2,
	-6, 13, 13, 26, 34, 12, 10, 4,
	0, 15, 15, 15, 14, 27, 18, 10,
	4, 15, 16, 0, 7, 21, 33, 1,
	-33, -3, -14, -21, -13, -12, -39, -21,
}

var mgRookPST = [64]int{
	32, 42, 32, 51, 63, 9, 31, 43,
	27, 32, 58, 62, 80, 67, 26, 44,
	-5, 19, 26, 36, 17, 45, 61, 16,
	-24, -11, 7, 26, 24, 35, -8, -20,
	-36, -26, -12, -1, 9, -7, 6, -23,
	-45, -25, -16, -17, 3, 0, -5, -33,
	-44, -16, -20, -9, -1, 11, -6, -71,
	-19, -13, 1, 17, 16, 7, -37, -26,
}

var mgQueenPST = [64]int{
	-28, 0, 29, 12, 59, 44, 43, 45,
	-24, -39, -5, 1, -16, 57, 28, 54,
	-13, -17, 7, 8, 29, 56, 47, 57,
	-27, -27, -16, -16, -1, 17, -2, 1,
	-9, -26, -9, -10, -2, -4, 3, -3,
	-14, 2, -11, -2, -5, 2, 14, 5,
	-35, -8, 11, 2, 8, 15, -3, 1,
	-1, -18, -9, 10, -15, -25, -31, -50,
}

var mgKingPST = [64]int{
	-65, 23, 16, -15, -56, -34, 2, 13,
	29, -1, -20, -7, -8, -4, -38, -29,
	-9, 24, 2, -16, -20, 6, 22, -22,
	-17, -20, -12, -27, -30, -25, -14, -36,
	-49, -1, -27, -39, -46, -44, -33, -51,
	-14, -14, -22, -46, -44, -30, -15, -27,
	1, 7, -8, -64, -43, -16, 9, 8,
	-15, 36, 12, -54, 8, -28, 24, 14,
}

var egPawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	178, 173, 158, 134, 147, 132, 165, 187,
	94, 100, 85, 67, 56, 53, 82, 84,
	32, 24, 13, 5, -2, 4, 17, 17,
	13, 9, -3, -7, -7, -8, 3, -1,
	4, 7, -6, 1, 0, -5, -1, -8,
	13, 8, 8, -10, 13, 0, 2, -7,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var egKnightPST = [64]int{
	-58, -38, -13, -28, -31, -27, -63, -99,
	-25, -8, -25, -2, -9, -25, -24, -52,
	-24, -20, 10, 9, -1, -9, -19, -41,
	-17, 3, 22, 22, 22, 11, 8, -18,
	-18, -6, 16, 25, 16, 17, 4, -18,
	-23, -3, -1, 15, 10, -3, -20, -22,
	-42, -20, -10, -5, -2, -20, -23, -44,
	-29, -51, -23, -15, -22, -18, -50, -64,
}

var egBishopPST = [64]int{
	-14, -21, -11, -8, -7, -9, -17, -24,
	-8, -4, 7, -12, -3, -13, -4, -14,
	2, -8, 0, -1, -2, 6, 0, 4,
	-3, 9, 12, 9, 14, 10, 3, 2,
	-6, 3, 13, 19, 7, 10, -3, -9,
	-12, -3, 8, 10, 13, 3, -7, -15,
	-14, -18, -7, -1, 4, -9, -15, -27,
	-23, -9, -23, -5, -9, -16, -5, -17,
}

var egRookPST = [64]int{
	13, 10, 18, 15, 12, 12, 8, 5,
	11, 13, 13, 11, -3, 3, 8, 3,
	7, 7, 7, 5, 4, -3, -5, -3,
	4, 3, 13, 1, 2, 1, -1, 2,
	3, 5, 8, 4, -5, -6, -8, -11,
	-4, 0, -5, -1, -7, -12, -8, -16,
	-6, -6, 0, 2, -9, -9, -11, -3,
	-9, 2, 3, -1, -5, -13, 4, -20,
}

var egQueenPST = [64]int{
	-9, 22, 22, 27, 27, 19, 10, 20,
	-17, 20, 32, 41, 58, 25, 30, 0,
	-20, 6, 9, 49, 47, 35, 19, 9,
	3, 22, 24, 45, 57, 40, 57, 36,
	-18, 28, 19, 47, 31, 34, 39, 23,
	-16, -27, 15, 6, 9, 17, 10, 5,
	-22, -23, -30, -16, -16, -23, -36, -32,
	-33, -28, -22, -43, -5, -32, -20, -41,
}

var egKingPST = [64]int{
	-74, -35, -18, -18, -11, 15, 4, -17,
	-12, 17, 14, 17, 17, 38, 23, 11,
	10, 17, 23, 15, 20, 45, 44, 13,
	-8, 22, 24, 27, 26, 33, 26, 3,
	-18, -4, 21, 24, 27, 23, 9, -11,
	-19, -3, 11, 21, 23, 16, 7, -9,
	-27, -11, 4, 13, 14, 4, -5, -17,
	-53, -34, -21, -11, -28, -14, -24, -43,
}

var mgPST = [6]*[64]int{&mgPawnPST, &mgKnightPST, &mgBishopPST, &mgRookPST, &mgQueenPST, &mgKingPST}
var egPST = [6]*[64]int{&egPawnPST, &egKnightPST, &egBishopPST, &egRookPST, &egQueenPST, &egKingPST}

// Pawn structure terms
const (
	doubledPawnMgPenalty  = -15
	doubledPawnEgPenalty  = -20
	isolatedPawnMgPenalty = -20
	isolatedPawnEgPenalty = -25
)

// Passed pawn bonus indexed by relative rank.
var passedPawnBonus = [8]int{0, 10, 20, 40, 70, 120, 200, 0}

// Bishop pair
const (
	bishopPairMgBonus = 25
	bishopPairEgBonus = 50
)

// Rook files
const (
	rookOpenFileMg     = 20
	rookOpenFileEg     = 25
	rookSemiOpenFileMg = 10
	rookSemiOpenFileEg = 15
)

// Mobility bonus tables indexed by attacked-square count.
var (
	knightMobility [9]int
	bishopMobility [14]int
	rookMobility   [15]int
	queenMobility  [28]int
)

// King safety: weight added per attacker of the king zone, and the nonlinear
// danger table indexed by accumulated weight.
var attackerWeight = [6]int{0, 20, 20, 40, 80, 0}

var kingDangerTable [128]int

const pawnShieldMissingPenalty = 15

// Tempo bonus for having the move.
const tempoBonus = 10

func init() {
	// Mobility grows linearly around the piece's typical square count.
	for n := range knightMobility {
		knightMobility[n] = 4 * (n - 4)
	}
	for n := range bishopMobility {
		bishopMobility[n] = 3 * (n - 6)
	}
	for n := range rookMobility {
		rookMobility[n] = 2 * (n - 7)
	}
	for n := range queenMobility {
		queenMobility[n] = 1 * (n - 13)
	}

	// Quadratic danger ramp, saturating so a swarm of attackers cannot
	// dominate the whole evaluation.
	for w := range kingDangerTable {
		v := w * w / 8
		if v > 500 {
			v = 500
		}
		kingDangerTable[w] = v
	}
}

// Evaluate returns the static evaluation of the position in centipawns from
// the side to move's perspective.
func Evaluate(pos *board.Position) int {
	return EvaluateWithPawnTable(pos, nil)
}

// EvaluateWithPawnTable is Evaluate with an optional pawn structure cache.
func EvaluateWithPawnTable(pos *board.Position, pawnTable *PawnTable) int {
	var mgScore, egScore, phase int

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}

		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()

				idx := int(sq)
				if c == board.White {
					idx = int(sq ^ 56) // mirror rank into CPW table layout
				}

				mgScore += sign * (mgPieceValue[pt] + mgPST[pt][idx])
				egScore += sign * (egPieceValue[pt] + egPST[pt][idx])
				phase += phaseWeight[pt]
			}
		}
	}

	psMg, psEg := pawnStructure(pos, pawnTable)
	mgScore += psMg
	egScore += psEg

	bpMg, bpEg := bishopPair(pos)
	mgScore += bpMg
	egScore += bpEg

	rfMg, rfEg := rooksOnFiles(pos)
	mgScore += rfMg
	egScore += rfEg

	mobMg, mobEg := mobility(pos)
	mgScore += mobMg
	egScore += mobEg

	// King safety is a middlegame concern; it fades out with the phase.
	mgScore += kingSafety(pos)

	if phase > maxPhase {
		phase = maxPhase
	}
	score := (mgScore*phase + egScore*(maxPhase-phase)) / maxPhase

	if pos.SideToMove == board.Black {
		score = -score
	}

	// Tempo: the side to move has a small initiative edge.
	return score + tempoBonus
}

// pawnStructure scores doubled, isolated and passed pawns, through the pawn
// hash cache when one is provided.
func pawnStructure(pos *board.Position, pawnTable *PawnTable) (mg, eg int) {
	if pawnTable != nil {
		if cmg, ceg, ok := pawnTable.Probe(pos.PawnKey); ok {
			return cmg, ceg
		}
	}

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}

		pawns := pos.Pieces[c][board.Pawn]

		// Doubled pawns, per file
		for f := 0; f < 8; f++ {
			count := (pawns & board.FileMask[f]).PopCount()
			if count > 1 {
				mg += sign * doubledPawnMgPenalty * (count - 1)
				eg += sign * doubledPawnEgPenalty * (count - 1)
			}
		}

		for bb := pawns; bb != 0; {
			sq := bb.PopLSB()
			file := sq.File()

			// Isolated: no friendly pawn on an adjacent file
			var adjacent board.Bitboard
			if file > 0 {
				adjacent |= board.FileMask[file-1]
			}
			if file < 7 {
				adjacent |= board.FileMask[file+1]
			}
			if pawns&adjacent == 0 {
				mg += sign * isolatedPawnMgPenalty
				eg += sign * isolatedPawnEgPenalty
			}

			if isPassedPawn(pos, sq, c) {
				bonus := passedPawnBonus[sq.RelativeRank(c)]
				mg += sign * bonus
				eg += sign * bonus * 3 / 2
			}
		}
	}

	if pawnTable != nil {
		pawnTable.Store(pos.PawnKey, mg, eg)
	}
	return mg, eg
}

// isPassedPawn reports whether no enemy pawn occupies the pawn's file or the
// adjacent files on any rank ahead of it.
func isPassedPawn(pos *board.Position, sq board.Square, c board.Color) bool {
	file := sq.File()
	enemyPawns := pos.Pieces[c.Other()][board.Pawn]

	fileMask := board.FileMask[file]
	if file > 0 {
		fileMask |= board.FileMask[file-1]
	}
	if file < 7 {
		fileMask |= board.FileMask[file+1]
	}

	// All squares on any rank strictly ahead of the pawn.
	var ahead board.Bitboard
	if c == board.White {
		ahead = board.Universe << (8 * (sq.Rank() + 1))
	} else {
		ahead = board.Universe >> (8 * (8 - sq.Rank()))
	}

	return enemyPawns&fileMask&ahead == 0
}

func bishopPair(pos *board.Position) (mg, eg int) {
	if pos.Pieces[board.White][board.Bishop].PopCount() >= 2 {
		mg += bishopPairMgBonus
		eg += bishopPairEgBonus
	}
	if pos.Pieces[board.Black][board.Bishop].PopCount() >= 2 {
		mg -= bishopPairMgBonus
		eg -= bishopPairEgBonus
	}
	return mg, eg
}

func rooksOnFiles(pos *board.Position) (mg, eg int) {
	allPawns := pos.Pieces[board.White][board.Pawn] | pos.Pieces[board.Black][board.Pawn]

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		ownPawns := pos.Pieces[c][board.Pawn]

		rooks := pos.Pieces[c][board.Rook]
		for rooks != 0 {
			sq := rooks.PopLSB()
			fileMask := board.FileMask[sq.File()]

			if allPawns&fileMask == 0 {
				mg += sign * rookOpenFileMg
				eg += sign * rookOpenFileEg
			} else if ownPawns&fileMask == 0 {
				mg += sign * rookSemiOpenFileMg
				eg += sign * rookSemiOpenFileEg
			}
		}
	}
	return mg, eg
}

func mobility(pos *board.Position) (mg, eg int) {
	occupied := pos.AllOccupied

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		notOwn := ^pos.Occupied[c]

		knights := pos.Pieces[c][board.Knight]
		for knights != 0 {
			n := (board.KnightAttacks(knights.PopLSB()) & notOwn).PopCount()
			mg += sign * knightMobility[min(n, len(knightMobility)-1)]
			eg += sign * knightMobility[min(n, len(knightMobility)-1)]
		}

		bishops := pos.Pieces[c][board.Bishop]
		for bishops != 0 {
			n := (board.BishopAttacks(bishops.PopLSB(), occupied) & notOwn).PopCount()
			mg += sign * bishopMobility[min(n, len(bishopMobility)-1)]
			eg += sign * bishopMobility[min(n, len(bishopMobility)-1)]
		}

		rooks := pos.Pieces[c][board.Rook]
		for rooks != 0 {
			n := (board.RookAttacks(rooks.PopLSB(), occupied) & notOwn).PopCount()
			mg += sign * rookMobility[min(n, len(rookMobility)-1)]
			eg += sign * rookMobility[min(n, len(rookMobility)-1)]
		}

		queens := pos.Pieces[c][board.Queen]
		for queens != 0 {
			n := (board.QueenAttacks(queens.PopLSB(), occupied) & notOwn).PopCount()
			mg += sign * queenMobility[min(n, len(queenMobility)-1)]
			eg += sign * queenMobility[min(n, len(queenMobility)-1)]
		}
	}
	return mg, eg
}

// kingSafety combines the pawn shield in front of a castled king with a
// danger score from enemy pieces attacking the king zone.
func kingSafety(pos *board.Position) int {
	var score int
	occupied := pos.AllOccupied

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}

		kingSq := pos.KingSquare[c]
		enemy := c.Other()

		// Pawn shield: kings on their two back ranks expect a pawn on each
		// of the three files ahead, one rank up.
		if kingSq.RelativeRank(c) <= 1 {
			shieldRank := kingSq.Rank() + 1
			if c == board.Black {
				shieldRank = kingSq.Rank() - 1
			}
			ownPawns := pos.Pieces[c][board.Pawn]
			for f := kingSq.File() - 1; f <= kingSq.File()+1; f++ {
				if f < 0 || f > 7 {
					continue
				}
				if ownPawns&board.FileMask[f]&board.RankMask[shieldRank] == 0 {
					score -= sign * pawnShieldMissingPenalty
				}
			}
		}

		// King danger: the zone is the king square plus its neighbors.
		kingZone := board.KingAttacks(kingSq) | board.SquareBB(kingSq)

		attackers := 0
		weight := 0

		for pt := board.Knight; pt <= board.Queen; pt++ {
			bb := pos.Pieces[enemy][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				var attacks board.Bitboard
				switch pt {
				case board.Knight:
					attacks = board.KnightAttacks(sq)
				case board.Bishop:
					attacks = board.BishopAttacks(sq, occupied)
				case board.Rook:
					attacks = board.RookAttacks(sq, occupied)
				case board.Queen:
					attacks = board.QueenAttacks(sq, occupied)
				}
				if attacks&kingZone != 0 {
					attackers++
					weight += attackerWeight[pt]
				}
			}
		}

		// A lone attacker is rarely dangerous.
		if attackers >= 2 {
			score -= sign * kingDangerTable[min(weight, len(kingDangerTable)-1)]
		}
	}

	return score
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
