package main

import (
	"flag"
	"fmt"
	"os"

	"keryx/internal/domain"
	cryptoinfra "keryx/internal/infra/crypto"
	"keryx/internal/usecase"
	"keryx/pkg/controller"
)

type forkOutput struct {
	ForkDetected bool    `json:"fork_detected"`
	Sequence     *uint64 `json:"sequence,omitempty"`
}

func runFork(args []string) int {
	fs := flag.NewFlagSet("fork", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var pathA, pathB string
	var outPath string
	fs.StringVar(&pathA, "log-a", "", "first observed log JSON path")
	fs.StringVar(&pathB, "log-b", "", "second observed log JSON path")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if pathA == "" || pathB == "" {
		fmt.Fprintln(os.Stderr, "fork requires --log-a and --log-b")
		return 1
	}

	logA, ok := readEventLog(pathA)
	if !ok {
		return 1
	}
	logB, ok := readEventLog(pathB)
	if !ok {
		return 1
	}

	seq := usecase.DetectFork(logA, logB)
	out := forkOutput{ForkDetected: seq != nil, Sequence: seq}
	payload, err := cryptoinfra.CanonicalizeAny(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	if seq != nil {
		return 2
	}
	return 0
}

func readEventLog(path string) ([]domain.KeyEvent, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read log %s: %v\n", path, err)
		return nil, false
	}
	events, err := controller.UnmarshalEventLog(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode log %s: %v\n", path, err)
		return nil, false
	}
	return events, true
}
