// pgncheck parses and replays a PGN file and prints what a batch upload
// would report, without needing the daemon or its stores.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pgnlab/insight/internal/analysis"
	"github.com/pgnlab/insight/internal/opening"
	"github.com/pgnlab/insight/internal/pgn"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file.pgn>\n", os.Args[0])
		os.Exit(2)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer f.Close()

	catalog, err := opening.Load("", 8)
	if err != nil {
		log.Fatalf("opening catalog: %v", err)
	}

	stream := pgn.Parse(f)
	games, valid, failed := 0, 0, 0
	for {
		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		games++
		if err != nil {
			failed++
			fmt.Printf("game %d: parse failed: %v\n", games, err)
			continue
		}

		game, feats, replayErr := analysis.Replay(rec)
		label := catalog.Classify(game, rec)
		name := label.Name
		if label.ECO != "" {
			name = fmt.Sprintf("%s (%s)", name, label.ECO)
		}
		fmt.Printf("game %d: %s vs %s  %s  %d plies  %s\n",
			games, rec.White(), rec.Black(), rec.Result, rec.PlyCount(), name)

		if replayErr != nil {
			failed++
			fmt.Printf("  replay failed: %v\n", replayErr)
			continue
		}
		valid++
		if n := len(feats); n > 0 {
			last := feats[n-1]
			fmt.Printf("  final material: white=%d black=%d diff=%+d\n",
				last.MaterialWhite, last.MaterialBlack, last.MaterialDiff)
		}
	}

	fmt.Printf("\n%d games: %d ok, %d with problems\n", games, valid, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
