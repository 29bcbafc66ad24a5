package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"keryx/internal/domain"
	"keryx/pkg/controller"
)

func runRecord(args []string) int {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var identityID string
	var oldKID, newKID string
	var oldKeyBase64, newKeyBase64 string
	var prevPath string
	var effectiveAtRaw string
	var reason string
	var outPath string
	fs.StringVar(&identityID, "identity", "", "identity id")
	fs.StringVar(&oldKID, "old-kid", "", "outgoing key id")
	fs.StringVar(&newKID, "new-kid", "", "incoming key id")
	fs.StringVar(&oldKeyBase64, "old-key-base64", "", "outgoing private key base64")
	fs.StringVar(&newKeyBase64, "new-key-base64", "", "incoming private key base64")
	fs.StringVar(&prevPath, "prev", "", "previous record JSON path")
	fs.StringVar(&effectiveAtRaw, "effective-at", "", "effective time (rfc3339, default now)")
	fs.StringVar(&reason, "reason", "", "rotation reason")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if identityID == "" || oldKID == "" || newKID == "" || oldKeyBase64 == "" || newKeyBase64 == "" {
		fmt.Fprintln(os.Stderr, "record requires --identity, --old-kid, --new-kid, --old-key-base64 and --new-key-base64")
		return 1
	}

	oldKey, err := controller.ParseEd25519PrivateKeyBase64(oldKeyBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse old key: %v\n", err)
		return 1
	}
	newKey, err := controller.ParseEd25519PrivateKeyBase64(newKeyBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse new key: %v\n", err)
		return 1
	}

	var prevRecord *domain.RotationRecord
	if prevPath != "" {
		data, err := os.ReadFile(prevPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read previous record: %v\n", err)
			return 1
		}
		record, err := controller.UnmarshalRotationRecord(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode previous record: %v\n", err)
			return 1
		}
		prevRecord = &record
	}

	var effectiveAt time.Time
	if effectiveAtRaw != "" {
		effectiveAt, err = time.Parse(time.RFC3339, effectiveAtRaw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse --effective-at: %v\n", err)
			return 1
		}
	}

	record, err := controller.BuildRotationRecord(identityID, oldKID, newKID, oldKey, newKey, effectiveAt, prevRecord, reason)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build record: %v\n", err)
		return 1
	}
	payload, err := controller.MarshalRotationRecord(record)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal record: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
