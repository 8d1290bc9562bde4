package board

import "fmt"

// Move encodes a chess move in 16 bits:
// bits 0-5:   from square (0-63)
// bits 6-11:  to square (0-63)
// bits 12-13: move type (0=normal, 1=promotion, 2=en passant, 3=castling)
// bits 14-15: promotion piece (0=Knight, 1=Bishop, 2=Rook, 3=Queen)
type Move uint16

// Move types (bits 12-13).
const (
	TypeNormal    uint16 = 0 << 12
	TypePromotion uint16 = 1 << 12
	TypeEnPassant uint16 = 2 << 12
	TypeCastling  uint16 = 3 << 12
)

// NoMove is the reserved all-zeros value meaning "no move".
// Its UCI spelling is "0000".
const NoMove Move = 0

// NewMove creates a normal move.
func NewMove(from, to Square) Move {
	return Move(from) | Move(to)<<6
}

// NewPromotion creates a promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	promoIdx := promo - Knight
	return Move(from) | Move(to)<<6 | Move(TypePromotion) | Move(promoIdx)<<14
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(TypeEnPassant)
}

// NewCastling creates a castling move, expressed as the king's movement.
func NewCastling(from, to Square) Move {
	return Move(from) | Move(to)<<6 | Move(TypeCastling)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

// Type returns the move type bits.
func (m Move) Type() uint16 {
	return uint16(m) & 0x3000
}

// Promotion returns the promotion piece type (valid only for promotions).
func (m Move) Promotion() PieceType {
	return PieceType((m>>14)&3) + Knight
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Type() == TypePromotion
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Type() == TypeEnPassant
}

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool {
	return m.Type() == TypeCastling
}

// IsCapture returns true if this move captures a piece.
func (m Move) IsCapture(pos *Position) bool {
	if m.IsEnPassant() {
		return true
	}
	return pos.PieceAt(m.To()) != NoPiece
}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	s := m.From().String() + m.To().String()

	if m.IsPromotion() {
		promoChars := []byte{'n', 'b', 'r', 'q'}
		s += string(promoChars[m.Promotion()-Knight])
	}

	return s
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// UndoInfo stores the state needed to reverse a move.
type UndoInfo struct {
	CapturedPiece  Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
}

// String formats the undo record for debug output.
func (u UndoInfo) String() string {
	return fmt.Sprintf("captured=%v rights=%v ep=%v hmc=%d", u.CapturedPiece, u.CastlingRights, u.EnPassant, u.HalfMoveClock)
}
