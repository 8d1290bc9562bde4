package board

import "testing"

var testFENs = []string{
	StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r2q1rk1/pP1p2pp/Q4n2/bbp1p3/Np6/1B3NBn/pPPP1PPP/R3K2R b KQ - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2",
}

// checkConsistency verifies the structural invariants: piece bitboards
// partition the occupancy, the mailbox agrees with the bitboards, the
// incremental hashes match a recomputation, and king squares are cached
// correctly.
func checkConsistency(t *testing.T, p *Position) {
	t.Helper()

	var all Bitboard
	for c := White; c <= Black; c++ {
		var occ Bitboard
		for pt := Pawn; pt <= King; pt++ {
			if occ&p.Pieces[c][pt] != 0 {
				t.Fatalf("piece bitboards overlap for %v %v", c, pt)
			}
			occ |= p.Pieces[c][pt]
		}
		if occ != p.Occupied[c] {
			t.Fatalf("occupancy mismatch for %v: %x != %x", c, occ, p.Occupied[c])
		}
		all |= occ
	}
	if all != p.AllOccupied {
		t.Fatalf("all-occupancy mismatch: %x != %x", all, p.AllOccupied)
	}

	for sq := A1; sq <= H8; sq++ {
		want := NoPiece
		for c := White; c <= Black; c++ {
			for pt := Pawn; pt <= King; pt++ {
				if p.Pieces[c][pt].IsSet(sq) {
					want = NewPiece(pt, c)
				}
			}
		}
		if p.Mailbox[sq] != want {
			t.Fatalf("mailbox mismatch at %v: %v != %v", sq, p.Mailbox[sq], want)
		}
	}

	for c := White; c <= Black; c++ {
		if p.KingSquare[c] != p.Pieces[c][King].LSB() {
			t.Fatalf("king square cache mismatch for %v", c)
		}
	}

	if p.Hash != p.ComputeHash() {
		t.Fatalf("incremental hash %016x != recomputed %016x", p.Hash, p.ComputeHash())
	}
	if p.PawnKey != p.ComputePawnKey() {
		t.Fatalf("incremental pawn key %016x != recomputed %016x", p.PawnKey, p.ComputePawnKey())
	}
}

func TestFENRoundTrip(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		if got := pos.ToFEN(); got != fen {
			t.Errorf("FEN round trip: got %q, want %q", got, fen)
		}
		checkConsistency(t, pos)
	}
}

func TestParseFENRejectsGarbage(t *testing.T) {
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",  // 7 ranks
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1", // bad side
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w XYZ - 0 1",  // bad castling
		"9/8/8/8/8/8/8/8 w - - 0 1",                                // bad rank
		"8/8/8/8/8/8/8/8 w - - 0 1",                                // no kings
	}

	for _, fen := range bad {
		if _, err := ParseFEN(fen); err == nil {
			t.Errorf("ParseFEN(%q) should fail", fen)
		}
	}
}

// Every legal move in every test position must restore the board
// bit-identically when unmade.
func TestMakeUnmakeRestoresState(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}

		before := *pos
		moves := pos.GenerateLegalMoves()

		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			undo := pos.MakeMove(m)
			checkConsistency(t, pos)
			pos.UnmakeMove(m, undo)

			if *pos != before {
				t.Fatalf("%q: make/unmake of %v did not restore the position", fen, m)
			}
		}
	}
}

// Walking a few plies deep and unmaking everything must come back to the
// exact starting state, hash included.
func TestMakeUnmakeDeepWalk(t *testing.T) {
	pos, err := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	before := *pos

	var walk func(depth int)
	walk = func(depth int) {
		if depth == 0 {
			checkConsistency(t, pos)
			return
		}
		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			undo := pos.MakeMove(m)
			walk(depth - 1)
			pos.UnmakeMove(m, undo)
		}
	}
	walk(3)

	if *pos != before {
		t.Fatal("deep walk did not restore the position")
	}
}

func TestNullMoveRoundTrip(t *testing.T) {
	pos, err := ParseFEN("4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2")
	if err != nil {
		t.Fatal(err)
	}
	before := *pos

	undo := pos.MakeNullMove()

	if pos.SideToMove != Black {
		t.Error("null move must toggle the side to move")
	}
	if pos.EnPassant != NoSquare {
		t.Error("null move must clear the en passant square")
	}
	if pos.Hash != pos.ComputeHash() {
		t.Error("hash inconsistent after null move")
	}

	pos.UnmakeNullMove(undo)
	if *pos != before {
		t.Error("null move round trip did not restore the position")
	}
}

func TestHalfMoveClock(t *testing.T) {
	pos := NewPosition()

	// Knight move increments the clock.
	m := pos.ParseUCIMove("g1f3")
	pos.MakeMove(m)
	if pos.HalfMoveClock != 1 {
		t.Errorf("halfmove clock = %d, want 1", pos.HalfMoveClock)
	}

	// Pawn move resets it.
	m = pos.ParseUCIMove("e7e5")
	pos.MakeMove(m)
	if pos.HalfMoveClock != 0 {
		t.Errorf("halfmove clock = %d, want 0 after pawn move", pos.HalfMoveClock)
	}

	// Capture resets it too.
	pos.MakeMove(pos.ParseUCIMove("b1c3"))
	pos.MakeMove(pos.ParseUCIMove("b8c6"))
	if pos.HalfMoveClock != 2 {
		t.Errorf("halfmove clock = %d, want 2", pos.HalfMoveClock)
	}
	pos.MakeMove(pos.ParseUCIMove("f3e5"))
	if pos.HalfMoveClock != 0 {
		t.Errorf("halfmove clock = %d, want 0 after capture", pos.HalfMoveClock)
	}
}

func TestEnPassantSquareAfterDoublePush(t *testing.T) {
	pos := NewPosition()
	pos.MakeMove(pos.ParseUCIMove("e2e4"))

	if pos.EnPassant != E3 {
		t.Errorf("en passant square = %v, want e3", pos.EnPassant)
	}
	if pos.EnPassant.Rank() != 2 {
		t.Errorf("en passant square must be on rank 3 with Black to move")
	}
}

func TestCastlingRightsUpdates(t *testing.T) {
	pos, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	// King move removes both rights for the mover.
	undo := pos.MakeMove(pos.ParseUCIMove("e1e2"))
	if pos.CastlingRights&(WhiteKingSideCastle|WhiteQueenSideCastle) != 0 {
		t.Error("king move must clear white castling rights")
	}
	pos.UnmakeMove(NewMove(E1, E2), undo)

	// Rook move removes one side's right.
	pos.MakeMove(pos.ParseUCIMove("a1a8"))
	if pos.CastlingRights&WhiteQueenSideCastle != 0 {
		t.Error("a1 rook move must clear white queenside right")
	}
	// Capturing the a8 rook removes black's queenside right too.
	if pos.CastlingRights&BlackQueenSideCastle != 0 {
		t.Error("capture on a8 must clear black queenside right")
	}
}

func TestCastlingMoveExecution(t *testing.T) {
	pos, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	m := pos.ParseUCIMove("e1g1")
	if m == NoMove || !m.IsCastling() {
		t.Fatal("e1g1 should parse as castling")
	}

	undo := pos.MakeMove(m)
	if pos.PieceAt(G1) != WhiteKing || pos.PieceAt(F1) != WhiteRook {
		t.Error("kingside castling must place Kg1 and Rf1")
	}
	checkConsistency(t, pos)
	pos.UnmakeMove(m, undo)
	checkConsistency(t, pos)
}

func TestPromotionMoves(t *testing.T) {
	pos, err := ParseFEN("4k3/P7/8/8/8/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	m := pos.ParseUCIMove("a7a8q")
	if m == NoMove || !m.IsPromotion() || m.Promotion() != Queen {
		t.Fatal("a7a8q should parse as queen promotion")
	}

	undo := pos.MakeMove(m)
	if pos.PieceAt(A8) != WhiteQueen {
		t.Errorf("promotion square holds %v, want white queen", pos.PieceAt(A8))
	}
	if pos.Pieces[White][Pawn] != 0 {
		t.Error("promoted pawn must leave the pawn bitboard")
	}
	checkConsistency(t, pos)
	pos.UnmakeMove(m, undo)
	checkConsistency(t, pos)
	if pos.PieceAt(A7) != WhitePawn {
		t.Error("unmake must restore the pawn")
	}
}

func TestMoveEncoding(t *testing.T) {
	m := NewPromotion(E7, E8, Queen)
	if m.From() != E7 || m.To() != E8 || !m.IsPromotion() || m.Promotion() != Queen {
		t.Errorf("promotion encoding broken: %v", m)
	}
	if m.String() != "e7e8q" {
		t.Errorf("promotion string = %q, want e7e8q", m.String())
	}

	ep := NewEnPassant(E5, D6)
	if !ep.IsEnPassant() || ep.IsPromotion() || ep.IsCastling() {
		t.Error("en passant flags broken")
	}

	castle := NewCastling(E1, G1)
	if !castle.IsCastling() || castle.IsEnPassant() {
		t.Error("castling flags broken")
	}

	if NoMove.String() != "0000" {
		t.Errorf("NoMove string = %q, want 0000", NoMove.String())
	}
}

func TestZobristDeterminism(t *testing.T) {
	// Keys are generated from a fixed seed; the start position hash is a
	// canary against accidental reseeding.
	a := NewPosition()
	b := NewPosition()
	if a.Hash != b.Hash || a.Hash == 0 {
		t.Errorf("start position hash not deterministic: %016x vs %016x", a.Hash, b.Hash)
	}

	// Transposition: different move orders into the same position hash equal.
	p1 := NewPosition()
	p1.MakeMove(p1.ParseUCIMove("g1f3"))
	p1.MakeMove(p1.ParseUCIMove("g8f6"))
	p1.MakeMove(p1.ParseUCIMove("b1c3"))
	p1.MakeMove(p1.ParseUCIMove("b8c6"))

	p2 := NewPosition()
	p2.MakeMove(p2.ParseUCIMove("b1c3"))
	p2.MakeMove(p2.ParseUCIMove("b8c6"))
	p2.MakeMove(p2.ParseUCIMove("g1f3"))
	p2.MakeMove(p2.ParseUCIMove("g8f6"))

	if p1.Hash != p2.Hash {
		t.Error("transposed move orders must reach the same hash")
	}
}

func TestInsufficientMaterial(t *testing.T) {
	tests := []struct {
		fen  string
		want bool
	}{
		{"4k3/8/8/8/8/8/8/4K3 w - - 0 1", true},        // K vs K
		{"4k3/8/8/8/8/8/8/2B1K3 w - - 0 1", true},      // KB vs K
		{"4k3/8/8/8/8/8/8/1N2K3 w - - 0 1", true},      // KN vs K
		{"4k3/8/8/8/8/8/8/3QK3 w - - 0 1", false},      // queen
		{"4k3/7p/8/8/8/8/8/4K3 w - - 0 1", false},      // pawn
		{"2b1k3/8/8/8/8/8/8/2B1K3 w - - 0 1", false},   // minors both sides
	}

	for _, tc := range tests {
		pos, err := ParseFEN(tc.fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", tc.fen, err)
		}
		if got := pos.IsInsufficientMaterial(); got != tc.want {
			t.Errorf("IsInsufficientMaterial(%q) = %v, want %v", tc.fen, got, tc.want)
		}
	}
}

func TestInCheckMatchesAttackQuery(t *testing.T) {
	for _, fen := range testFENs {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatal(err)
		}
		want := pos.IsSquareAttacked(pos.KingSquare[pos.SideToMove], pos.SideToMove.Other())
		if pos.InCheck() != want {
			t.Errorf("%q: InCheck() disagrees with the attack query", fen)
		}
	}
}

func TestParseUCIMoveRejectsIllegal(t *testing.T) {
	pos := NewPosition()

	for _, s := range []string{"e2e5", "e7e5", "a1a8", "e2", "xxyy", "e2e4q"} {
		if m := pos.ParseUCIMove(s); m != NoMove {
			t.Errorf("ParseUCIMove(%q) = %v, want NoMove", s, m)
		}
	}

	if pos.ParseUCIMove("e2e4") == NoMove {
		t.Error("ParseUCIMove(e2e4) should be legal")
	}
}
