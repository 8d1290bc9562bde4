// Command pandachess is the UCI chess engine binary. It reads UCI commands
// on stdin and writes responses on stdout.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/wowthecoder/PandaChess/internal/engine"
	"github.com/wowthecoder/PandaChess/internal/uci"
)

// Default NNUE network file names (Stockfish-format, big and small).
const (
	defaultBigNet   = "nn-c288c895ea92.nnue"
	defaultSmallNet = "nn-37f18f62d772.nnue"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	eng := engine.NewEngine(engine.DefaultHashMB)

	if err := loadNNUE(eng); err != nil {
		log.Printf("warning: NNUE not loaded: %v (using handcrafted evaluation)", err)
		eng.SetEvalMode(engine.EvalHandcrafted)
	}

	uci.New(eng).Run()
}

// loadNNUE resolves the network files from the environment override or the
// default search paths and installs them on the engine.
func loadNNUE(eng *engine.Engine) error {
	bigPath := os.Getenv("PANDACHESS_EVALFILE")
	smallPath := os.Getenv("PANDACHESS_EVALFILE_SMALL")

	if bigPath == "" || smallPath == "" {
		dir, err := findNetworkDir()
		if err != nil {
			return err
		}
		if bigPath == "" {
			bigPath = filepath.Join(dir, defaultBigNet)
		}
		if smallPath == "" {
			smallPath = filepath.Join(dir, defaultSmallNet)
		}
	}

	nets, err := engine.LoadNNUENetworks(bigPath, smallPath)
	if err != nil {
		return err
	}

	eng.SetNNUENetworks(nets)
	return nil
}

// findNetworkDir returns the first directory containing both default
// network files.
func findNetworkDir() (string, error) {
	home, _ := os.UserHomeDir()
	searchPaths := []string{
		".",
		"./nnue",
		filepath.Join(home, ".pandachess", "nnue"),
	}

	for _, dir := range searchPaths {
		if fileExists(filepath.Join(dir, defaultBigNet)) &&
			fileExists(filepath.Join(dir, defaultSmallNet)) {
			return dir, nil
		}
	}

	return "", os.ErrNotExist
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
