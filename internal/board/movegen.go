package board

// GenerateLegalMoves generates all legal moves for the position.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return p.filterLegalMoves(ml)
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves; some may leave
// the mover's king in check.
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return ml
}

// GenerateCaptures generates all legal captures (including en passant) plus
// pawn push promotions, for quiescence search.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.pawnMoves(ml, true)
	p.pieceMoves(ml, p.Occupied[p.SideToMove.Other()])
	return p.filterLegalMoves(ml)
}

func (p *Position) generateAllMoves(ml *MoveList) {
	p.pawnMoves(ml, false)
	p.pieceMoves(ml, ^p.Occupied[p.SideToMove])
	p.castlingMoves(ml)
}

// attacksFrom returns the attack set of a piece of type pt standing on sq,
// under the current occupancy.
func (p *Position) attacksFrom(pt PieceType, sq Square) Bitboard {
	switch pt {
	case Knight:
		return KnightAttacks(sq)
	case Bishop:
		return BishopAttacks(sq, p.AllOccupied)
	case Rook:
		return RookAttacks(sq, p.AllOccupied)
	case Queen:
		return QueenAttacks(sq, p.AllOccupied)
	case King:
		return KingAttacks(sq)
	}
	return Empty
}

// pieceMoves adds the moves of every non-pawn piece of the side to move
// whose destination falls inside allowed.
func (p *Position) pieceMoves(ml *MoveList, allowed Bitboard) {
	us := p.SideToMove

	for pt := Knight; pt <= King; pt++ {
		pieces := p.Pieces[us][pt]
		for pieces != 0 {
			from := pieces.PopLSB()
			targets := p.attacksFrom(pt, from) & allowed
			for targets != 0 {
				ml.Add(NewMove(from, targets.PopLSB()))
			}
		}
	}
}

// pawnMoves adds pawn pushes, captures, promotions and en passant for the
// side to move. With capturesOnly set, quiet pushes are dropped except push
// promotions, which quiescence still wants to see.
func (p *Position) pawnMoves(ml *MoveList, capturesOnly bool) {
	us := p.SideToMove
	delta := 8
	startRank, promoRank := 1, 7
	if us == Black {
		delta = -8
		startRank, promoRank = 6, 0
	}

	targets := p.Occupied[us.Other()]
	if p.EnPassant != NoSquare {
		targets |= SquareBB(p.EnPassant)
	}

	pawns := p.Pieces[us][Pawn]
	for pawns != 0 {
		from := pawns.PopLSB()

		// Diagonal captures, the en passant square included.
		caps := PawnAttacks(from, us) & targets
		for caps != 0 {
			to := caps.PopLSB()
			if to == p.EnPassant {
				ml.Add(NewEnPassant(from, to))
			} else {
				addPawnMove(ml, from, to, promoRank)
			}
		}

		to := Square(int(from) + delta)
		if !p.IsEmpty(to) {
			continue
		}
		if !capturesOnly || to.Rank() == promoRank {
			addPawnMove(ml, from, to, promoRank)
		}
		if !capturesOnly && from.Rank() == startRank {
			if to2 := Square(int(to) + delta); p.IsEmpty(to2) {
				ml.Add(NewMove(from, to2))
			}
		}
	}
}

// addPawnMove emits a pawn move, expanding into the four promotion choices
// on the last rank.
func addPawnMove(ml *MoveList, from, to Square, promoRank int) {
	if to.Rank() != promoRank {
		ml.Add(NewMove(from, to))
		return
	}
	for pt := Queen; pt >= Knight; pt-- {
		ml.Add(NewPromotion(from, to, pt))
	}
}

// castleSide describes one castling option: the squares between king and
// rook that must be empty, and the king's path that must not be attacked.
type castleSide struct {
	color    Color
	right    CastlingRights
	kingFrom Square
	kingTo   Square
	between  Bitboard
	path     [3]Square
}

var castleSides = [4]castleSide{
	{White, WhiteKingSideCastle, E1, G1, SquareBB(F1) | SquareBB(G1), [3]Square{E1, F1, G1}},
	{White, WhiteQueenSideCastle, E1, C1, SquareBB(B1) | SquareBB(C1) | SquareBB(D1), [3]Square{E1, D1, C1}},
	{Black, BlackKingSideCastle, E8, G8, SquareBB(F8) | SquareBB(G8), [3]Square{E8, F8, G8}},
	{Black, BlackQueenSideCastle, E8, C8, SquareBB(B8) | SquareBB(C8) | SquareBB(D8), [3]Square{E8, D8, C8}},
}

// castlingMoves emits castling when the matching right is present, the
// squares between king and rook are empty, and the king neither starts on,
// crosses, nor lands on an attacked square.
func (p *Position) castlingMoves(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()

	for i := range castleSides {
		cs := &castleSides[i]
		if cs.color != us || p.CastlingRights&cs.right == 0 {
			continue
		}
		if p.AllOccupied&cs.between != 0 {
			continue
		}
		if p.IsSquareAttacked(cs.path[0], them) ||
			p.IsSquareAttacked(cs.path[1], them) ||
			p.IsSquareAttacked(cs.path[2], them) {
			continue
		}
		ml.Add(NewCastling(cs.kingFrom, cs.kingTo))
	}
}

// filterLegalMoves keeps only moves that do not leave the mover's king in
// check, by making each move and probing the king square.
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()
	us := p.SideToMove
	them := us.Other()

	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		undo := p.MakeMove(m)
		if !p.IsSquareAttacked(p.KingSquare[us], them) {
			result.Add(m)
		}
		p.UnmakeMove(m, undo)
	}

	return result
}

// IsLegal returns true if the pseudo-legal move does not leave the mover's
// king in check.
func (p *Position) IsLegal(m Move) bool {
	us := p.SideToMove
	them := us.Other()

	undo := p.MakeMove(m)
	legal := !p.IsSquareAttacked(p.KingSquare[us], them)
	p.UnmakeMove(m, undo)

	return legal
}

// HasLegalMoves returns true if the side to move has at least one legal move.
func (p *Position) HasLegalMoves() bool {
	ml := p.GeneratePseudoLegalMoves()
	for i := 0; i < ml.Len(); i++ {
		if p.IsLegal(ml.Get(i)) {
			return true
		}
	}
	return false
}

// IsCheckmate returns true if the side to move is in check with no legal moves.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the side to move is not in check and has no
// legal moves.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsDrawByFiftyMoveRule returns true once 100 halfmoves have passed without
// a pawn move or capture.
func (p *Position) IsDrawByFiftyMoveRule() bool {
	return p.HalfMoveClock >= 100
}

// IsInsufficientMaterial returns true if neither side can possibly checkmate.
func (p *Position) IsInsufficientMaterial() bool {
	if p.Pieces[White][Pawn]|p.Pieces[Black][Pawn] != 0 ||
		p.Pieces[White][Rook]|p.Pieces[Black][Rook] != 0 ||
		p.Pieces[White][Queen]|p.Pieces[Black][Queen] != 0 {
		return false
	}

	wMinors := p.Pieces[White][Knight].PopCount() + p.Pieces[White][Bishop].PopCount()
	bMinors := p.Pieces[Black][Knight].PopCount() + p.Pieces[Black][Bishop].PopCount()

	// K vs K, K+minor vs K
	return (wMinors <= 1 && bMinors == 0) || (bMinors <= 1 && wMinors == 0)
}

// ParseUCIMove parses a UCI move string (e.g. "e2e4", "e7e8q") and matches it
// against the legal moves of the position. Returns NoMove if it is not legal.
func (p *Position) ParseUCIMove(s string) Move {
	if len(s) < 4 || len(s) > 5 {
		return NoMove
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove
	}

	promo := NoPieceType
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove
		}
	}

	legal := p.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.From() != from || m.To() != to {
			continue
		}
		if promo != NoPieceType {
			if m.IsPromotion() && m.Promotion() == promo {
				return m
			}
		} else if !m.IsPromotion() {
			return m
		}
	}

	return NoMove
}
