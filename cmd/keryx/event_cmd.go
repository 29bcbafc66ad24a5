package main

import (
	"crypto/ed25519"
	"flag"
	"fmt"
	"os"
	"time"

	"keryx/pkg/controller"
)

func runIncept(args []string) int {
	fs := flag.NewFlagSet("incept", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var identityID string
	var keyHex, keyBase64 string
	var nextPubHex, nextPubBase64 string
	var atRaw string
	var outPath string
	fs.StringVar(&identityID, "identity", "", "identity id")
	fs.StringVar(&keyHex, "key-hex", "", "signing private key hex")
	fs.StringVar(&keyBase64, "key-base64", "", "signing private key base64")
	fs.StringVar(&nextPubHex, "next-pubkey-hex", "", "next public key hex")
	fs.StringVar(&nextPubBase64, "next-pubkey-base64", "", "next public key base64")
	fs.StringVar(&atRaw, "at", "", "event timestamp (rfc3339, default now)")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if identityID == "" {
		fmt.Fprintln(os.Stderr, "incept requires --identity")
		return 1
	}
	privKey, nextPub, at, ok := eventInputs(keyHex, keyBase64, nextPubHex, nextPubBase64, atRaw)
	if !ok {
		return 1
	}

	event, err := controller.BuildInception(identityID, privKey, nextPub, at)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build inception: %v\n", err)
		return 1
	}
	payload, err := controller.MarshalEvent(event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal event: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runRotate(args []string) int {
	fs := flag.NewFlagSet("rotate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var identityID string
	var sequence uint64
	var keyHex, keyBase64 string
	var nextPubHex, nextPubBase64 string
	var priorPath string
	var atRaw string
	var outPath string
	fs.StringVar(&identityID, "identity", "", "identity id")
	fs.Uint64Var(&sequence, "sequence", 0, "event sequence number")
	fs.StringVar(&keyHex, "key-hex", "", "signing private key hex")
	fs.StringVar(&keyBase64, "key-base64", "", "signing private key base64")
	fs.StringVar(&nextPubHex, "next-pubkey-hex", "", "next public key hex")
	fs.StringVar(&nextPubBase64, "next-pubkey-base64", "", "next public key base64")
	fs.StringVar(&priorPath, "prior", "", "prior event JSON path")
	fs.StringVar(&atRaw, "at", "", "event timestamp (rfc3339, default now)")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if identityID == "" || priorPath == "" {
		fmt.Fprintln(os.Stderr, "rotate requires --identity and --prior")
		return 1
	}
	privKey, nextPub, at, ok := eventInputs(keyHex, keyBase64, nextPubHex, nextPubBase64, atRaw)
	if !ok {
		return 1
	}

	priorBytes, err := os.ReadFile(priorPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read prior event: %v\n", err)
		return 1
	}
	prior, err := controller.UnmarshalEvent(priorBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode prior event: %v\n", err)
		return 1
	}

	event, err := controller.BuildRotation(identityID, sequence, privKey, nextPub, prior, at)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build rotation: %v\n", err)
		return 1
	}
	payload, err := controller.MarshalEvent(event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal event: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func eventInputs(keyHex, keyBase64, nextPubHex, nextPubBase64, atRaw string) (ed25519.PrivateKey, ed25519.PublicKey, time.Time, bool) {
	privKey, err := parsePrivateKeyFlags(keyHex, keyBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse private key: %v\n", err)
		return nil, nil, time.Time{}, false
	}
	nextPub, err := parsePublicKeyFlags(nextPubHex, nextPubBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse next public key: %v\n", err)
		return nil, nil, time.Time{}, false
	}
	var at time.Time
	if atRaw != "" {
		at, err = time.Parse(time.RFC3339, atRaw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse --at: %v\n", err)
			return nil, nil, time.Time{}, false
		}
	}
	return privKey, nextPub, at, true
}

func parsePrivateKeyFlags(keyHex, keyBase64 string) (ed25519.PrivateKey, error) {
	switch {
	case keyHex != "" && keyBase64 != "":
		return nil, fmt.Errorf("exactly one of --key-hex or --key-base64 is required")
	case keyHex != "":
		return controller.ParseEd25519PrivateKeyHex(keyHex)
	case keyBase64 != "":
		return controller.ParseEd25519PrivateKeyBase64(keyBase64)
	default:
		return nil, fmt.Errorf("exactly one of --key-hex or --key-base64 is required")
	}
}

func parsePublicKeyFlags(pubHex, pubBase64 string) (ed25519.PublicKey, error) {
	switch {
	case pubHex != "" && pubBase64 != "":
		return nil, fmt.Errorf("exactly one hex or base64 public key is required")
	case pubHex != "":
		return controller.ParseEd25519PublicKeyHex(pubHex)
	case pubBase64 != "":
		return controller.ParseEd25519PublicKeyBase64(pubBase64)
	default:
		return nil, fmt.Errorf("exactly one hex or base64 public key is required")
	}
}
