// Package uci implements the Universal Chess Interface protocol loop.
package uci

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wowthecoder/PandaChess/internal/board"
	"github.com/wowthecoder/PandaChess/internal/engine"
)

const (
	engineName   = "PandaChess"
	engineAuthor = "PandaChess Team"
)

// UCI drives the protocol: it reads commands from stdin, mutates the board,
// and hands searches to a worker goroutine. All engine output lines start
// with id, option, uciok, readyok, info or bestmove; diagnostics go to
// stderr.
type UCI struct {
	engine   *engine.Engine
	position *board.Position

	// Position hashes of the game so far, for repetition detection.
	positionHashes []uint64

	out io.Writer

	searchDone chan struct{}
}

// New creates a UCI protocol handler around an engine.
func New(eng *engine.Engine) *UCI {
	pos := board.NewPosition()
	return &UCI{
		engine:         eng,
		position:       pos,
		positionHashes: []uint64{pos.Hash},
		out:            os.Stdout,
	}
}

// Run reads commands until "quit" or EOF. It returns for a clean exit.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Fprintln(u.out, "readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "setoption":
			u.handleSetOption(args)
		case "quit":
			u.handleStop()
			return
		// Debug commands, not part of the protocol
		case "d":
			fmt.Fprintln(u.out, u.position.String())
		case "perft":
			u.handlePerft(args)
		}
		// Unknown commands are ignored.
	}
}

func (u *UCI) handleUCI() {
	fmt.Fprintf(u.out, "id name %s\n", engineName)
	fmt.Fprintf(u.out, "id author %s\n", engineAuthor)
	fmt.Fprintf(u.out, "option name Hash type spin default %d min %d max %d\n",
		engine.DefaultHashMB, engine.MinHashMB, engine.MaxHashMB)
	fmt.Fprintln(u.out, "option name Threads type spin default 1 min 1 max 256")
	fmt.Fprintln(u.out, "option name Eval type combo default NNUE var NNUE var Handcrafted")
	fmt.Fprintln(u.out, "uciok")
}

// waitForSearch blocks until any running search has produced its bestmove.
func (u *UCI) waitForSearch() {
	if u.searchDone != nil {
		<-u.searchDone
		u.searchDone = nil
	}
}

func (u *UCI) handleNewGame() {
	u.engine.Stop()
	u.waitForSearch()
	u.engine.Clear()
	u.position = board.NewPosition()
	u.positionHashes = []uint64{u.position.Hash}
}

// handlePosition parses "position startpos [moves ...]" and
// "position fen <fen> [moves ...]". Invalid input leaves the prior state
// untouched.
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var pos *board.Position
	moveStart := len(args)

	switch args[0] {
	case "startpos":
		pos = board.NewPosition()
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	case "fen":
		fenEnd := len(args)
		for i, arg := range args {
			if arg == "moves" {
				fenEnd = i
				moveStart = i + 1
				break
			}
		}
		parsed, err := board.ParseFEN(strings.Join(args[1:fenEnd], " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid FEN: %v\n", err)
			return
		}
		pos = parsed
	default:
		return
	}

	hashes := []uint64{pos.Hash}

	for _, moveStr := range args[min(moveStart, len(args)):] {
		m := pos.ParseUCIMove(moveStr)
		if m == board.NoMove {
			fmt.Fprintf(os.Stderr, "illegal move: %s\n", moveStr)
			return
		}
		pos.MakeMove(m)
		hashes = append(hashes, pos.Hash)
	}

	u.position = pos
	u.positionHashes = hashes
}

func (u *UCI) handleGo(args []string) {
	// Only one search at a time; its bestmove must precede our first info.
	u.engine.Stop()
	u.waitForSearch()

	limits := parseGoArgs(args)

	pos := u.position.Copy()
	repHistory := make([]uint64, len(u.positionHashes))
	copy(repHistory, u.positionHashes)

	resultCh := u.engine.StartSearch(pos, limits, repHistory, func(info engine.SearchInfo) {
		u.sendInfo(info)
	})

	done := make(chan struct{})
	u.searchDone = done

	go func() {
		defer close(done)

		result := <-resultCh

		if result.BestMove == board.NoMove {
			// Checkmate or stalemate at the root.
			fmt.Fprintln(u.out, "bestmove 0000")
			return
		}
		fmt.Fprintf(u.out, "bestmove %s\n", result.BestMove)
	}()
}

// parseGoArgs reads the whitespace-separated "go" parameters. Unknown or
// malformed tokens are skipped.
func parseGoArgs(args []string) engine.SearchLimits {
	var limits engine.SearchLimits

	intArg := func(i int) int {
		if i+1 < len(args) {
			n, _ := strconv.Atoi(args[i+1])
			return n
		}
		return 0
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			limits.Depth = intArg(i)
			i++
		case "movetime":
			limits.MoveTime = time.Duration(intArg(i)) * time.Millisecond
			i++
		case "wtime":
			limits.Time[board.White] = time.Duration(intArg(i)) * time.Millisecond
			i++
		case "btime":
			limits.Time[board.Black] = time.Duration(intArg(i)) * time.Millisecond
			i++
		case "winc":
			limits.Inc[board.White] = time.Duration(intArg(i)) * time.Millisecond
			i++
		case "binc":
			limits.Inc[board.Black] = time.Duration(intArg(i)) * time.Millisecond
			i++
		case "movestogo":
			limits.MovesToGo = intArg(i)
			i++
		case "infinite":
			limits.Infinite = true
		}
	}

	return limits
}

func (u *UCI) sendInfo(info engine.SearchInfo) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "info depth %d", info.Depth)

	if info.IsMate {
		fmt.Fprintf(&sb, " score mate %d", info.MateInPly)
	} else {
		fmt.Fprintf(&sb, " score cp %d", info.Score)
	}

	fmt.Fprintf(&sb, " nodes %d time %d", info.Nodes, info.Time.Milliseconds())

	if ms := info.Time.Milliseconds(); ms > 0 {
		fmt.Fprintf(&sb, " nps %d", info.Nodes*1000/uint64(ms))
	}

	if info.HashFull > 0 {
		fmt.Fprintf(&sb, " hashfull %d", info.HashFull)
	}

	if len(info.PV) > 0 {
		sb.WriteString(" pv")
		for _, m := range info.PV {
			sb.WriteByte(' ')
			sb.WriteString(m.String())
		}
	}

	fmt.Fprintln(u.out, sb.String())
}

func (u *UCI) handleStop() {
	u.engine.Stop()
	u.waitForSearch()
}

func (u *UCI) handleSetOption(args []string) {
	// Format: setoption name <Name> value <Value>
	var nameParts, valueParts []string
	target := &nameParts

	for _, arg := range args {
		switch arg {
		case "name":
			target = &nameParts
		case "value":
			target = &valueParts
		default:
			*target = append(*target, arg)
		}
	}

	name := strings.ToLower(strings.Join(nameParts, " "))
	value := strings.Join(valueParts, " ")

	// Option changes only apply between searches.
	u.engine.Stop()
	u.waitForSearch()

	switch name {
	case "hash":
		sizeMB, err := strconv.Atoi(value)
		if err != nil {
			return
		}
		u.engine.SetHash(sizeMB) // clamped by the table itself
	case "threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return
		}
		u.engine.SetThreads(n)
	case "eval":
		switch strings.ToLower(value) {
		case "nnue":
			u.engine.SetEvalMode(engine.EvalNNUE)
		case "handcrafted":
			u.engine.SetEvalMode(engine.EvalHandcrafted)
		}
	}
}

func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		if d, err := strconv.Atoi(args[0]); err == nil && d > 0 {
			depth = d
		}
	}

	start := time.Now()
	nodes := engine.Perft(u.position.Copy(), depth)
	elapsed := time.Since(start)

	fmt.Fprintf(u.out, "info string perft(%d) = %d in %v\n", depth, nodes, elapsed)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
