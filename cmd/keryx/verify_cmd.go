package main

import (
	"flag"
	"fmt"
	"os"

	cryptoinfra "keryx/internal/infra/crypto"
	"keryx/internal/usecase"
	"keryx/pkg/controller"
)

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var logPath string
	var outPath string
	fs.StringVar(&logPath, "log", "", "event log JSON path")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if logPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --log")
		return 1
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read log: %v\n", err)
		return 1
	}
	events, err := controller.UnmarshalEventLog(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode log: %v\n", err)
		return 1
	}

	verifier := usecase.NewChainVerifier(cryptoinfra.NewService())
	report, err := verifier.VerifyChain(events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify chain: %v\n", err)
		return 1
	}

	payload, err := cryptoinfra.CanonicalizeAny(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal report: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	if !report.Valid {
		return 2
	}
	return 0
}
