package engine

import (
	"unsafe"

	"github.com/wowthecoder/PandaChess/internal/board"
)

// TTFlag indicates the type of bound stored in a transposition table entry.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // exact score
	TTLowerBound               // failed high (beta cutoff)
	TTUpperBound               // failed low
)

// TTEntry is one transposition table slot. The full 64-bit key validates an
// entry on probe; a torn concurrent write fails the key check and reads as a
// miss, so no locking is needed on the hot path.
type TTEntry struct {
	Key        uint64
	Score      int32
	BestMove   board.Move
	Depth      int8
	Flag       TTFlag
	Generation uint8
}

// TranspositionTable is a single-bucket hash table of search results, shared
// between all workers of a search.
type TranspositionTable struct {
	entries    []TTEntry
	mask       uint64
	generation uint8
}

// MinHashMB and MaxHashMB bound the table size option.
const (
	MinHashMB = 1
	MaxHashMB = 4096
)

// NewTranspositionTable creates a table of roughly the given size in MB,
// clamped to [MinHashMB, MaxHashMB] and rounded down to a power-of-two entry
// count.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB < MinHashMB {
		sizeMB = MinHashMB
	}
	if sizeMB > MaxHashMB {
		sizeMB = MaxHashMB
	}

	entrySize := uint64(unsafe.Sizeof(TTEntry{}))
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize

	size := uint64(1)
	for size*2 <= numEntries {
		size *= 2
	}

	return &TranspositionTable{
		entries:    make([]TTEntry, size),
		mask:       size - 1,
		generation: 1,
	}
}

// Probe returns the entry for the hash if its stored key matches.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	entry := tt.entries[hash&tt.mask]
	if entry.Key == hash && entry.Generation != 0 {
		return entry, true
	}
	return TTEntry{}, false
}

// Store writes a search result, applying the replacement policy:
//   - empty slot: write
//   - same position: overwrite when the new entry is at least as deep, or exact
//   - collision: replace when the stored entry is two or more generations
//     stale, strictly shallower, or equally deep but weaker than an exact bound
func (tt *TranspositionTable) Store(hash uint64, score, depth int, flag TTFlag, bestMove board.Move) {
	entry := &tt.entries[hash&tt.mask]

	replace := false
	switch {
	case entry.Generation == 0:
		replace = true
	case entry.Key == hash:
		replace = depth >= int(entry.Depth) || flag == TTExact
	default:
		replace = generationAge(tt.generation, entry.Generation) >= 2 ||
			depth > int(entry.Depth) ||
			(depth == int(entry.Depth) && flag == TTExact && entry.Flag != TTExact)
	}

	if replace {
		*entry = TTEntry{
			Key:        hash,
			Score:      int32(score),
			BestMove:   bestMove,
			Depth:      int8(depth),
			Flag:       flag,
			Generation: tt.generation,
		}
	}
}

// generationAge measures how many searches ago the entry was written, with
// wraparound; the zero generation is reserved for empty slots.
func generationAge(current, stored uint8) int {
	age := int(current) - int(stored)
	if age < 0 {
		age += 255
	}
	return age
}

// NewSearch advances the generation counter, skipping zero so cleared slots
// stay distinguishable from live ones.
func (tt *TranspositionTable) NewSearch() {
	tt.generation++
	if tt.generation == 0 {
		tt.generation = 1
	}
}

// Clear resets all slots and the generation counter.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
	tt.generation = 1
}

// Size returns the number of entries.
func (tt *TranspositionTable) Size() uint64 {
	return uint64(len(tt.entries))
}

// HashfullPermille samples the first entries of the table and reports how
// many are in use, in parts per thousand, for UCI "hashfull".
func (tt *TranspositionTable) HashfullPermille() int {
	sample := 1000
	if uint64(sample) > tt.Size() {
		sample = int(tt.Size())
	}
	if sample == 0 {
		return 0
	}

	used := 0
	for i := 0; i < sample; i++ {
		if tt.entries[i].Generation != 0 {
			used++
		}
	}
	return used * 1000 / sample
}

// Search scores count mate distance from the root. They are stored as
// distance from the storing node and converted back to distance from the
// root at the probing ply, so the same entry is valid at any ply.

// ScoreToTT converts a search score at the given ply into TT form.
func ScoreToTT(score, ply int) int {
	if score >= MateScore-MaxPly {
		return score + ply
	}
	if score <= -MateScore+MaxPly {
		return score - ply
	}
	return score
}

// ScoreFromTT converts a stored TT score back into a score at the given ply.
func ScoreFromTT(score, ply int) int {
	if score >= MateScore-MaxPly {
		return score - ply
	}
	if score <= -MateScore+MaxPly {
		return score + ply
	}
	return score
}
