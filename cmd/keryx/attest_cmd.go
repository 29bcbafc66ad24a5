package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"keryx/internal/domain"
	cryptoinfra "keryx/internal/infra/crypto"
	"keryx/pkg/controller"
)

type rotationRequestDoc struct {
	IdentityID     string `json:"identity_id"`
	OldKey         string `json:"old_key"`
	NewKey         string `json:"new_key"`
	Nonce          string `json:"nonce"`
	CreatedAt      string `json:"created_at"`
	Threshold      int    `json:"threshold"`
	TotalAttestors int    `json:"total_attestors"`
}

type attestationOutput struct {
	AttestorID  string `json:"attestor_id"`
	AttestorKey string `json:"attestor_key"`
	Signature   string `json:"signature"`
	Channel     string `json:"channel"`
	AttestedAt  string `json:"attested_at"`
}

func runAttest(args []string) int {
	fs := flag.NewFlagSet("attest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var requestPath string
	var attestorID string
	var channel string
	var keyHex, keyBase64 string
	var outPath string
	fs.StringVar(&requestPath, "request", "", "rotation request JSON path")
	fs.StringVar(&attestorID, "attestor-id", "", "attestor id")
	fs.StringVar(&channel, "channel", "", "channel the request arrived on")
	fs.StringVar(&keyHex, "key-hex", "", "attestor private key hex")
	fs.StringVar(&keyBase64, "key-base64", "", "attestor private key base64")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if requestPath == "" || attestorID == "" {
		fmt.Fprintln(os.Stderr, "attest requires --request and --attestor-id")
		return 1
	}
	privKey, err := parsePrivateKeyFlags(keyHex, keyBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse private key: %v\n", err)
		return 1
	}

	data, err := os.ReadFile(requestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read request: %v\n", err)
		return 1
	}
	request, err := parseRotationRequest(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode request: %v\n", err)
		return 1
	}

	payload, err := controller.AttestationPayload(request)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build payload: %v\n", err)
		return 1
	}
	att, err := controller.Attest(payload, attestorID, channel, privKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign attestation: %v\n", err)
		return 1
	}

	out := attestationOutput{
		AttestorID:  att.AttestorID,
		AttestorKey: base64.StdEncoding.EncodeToString(att.AttestorKey),
		Signature:   base64.StdEncoding.EncodeToString(att.Signature),
		Channel:     att.Channel,
		AttestedAt:  att.AttestedAt.Format(time.RFC3339),
	}
	encoded, err := cryptoinfra.CanonicalizeAny(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, encoded); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func parseRotationRequest(data []byte) (domain.RotationRequest, error) {
	var doc rotationRequestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.RotationRequest{}, err
	}
	oldKey, err := base64.StdEncoding.DecodeString(doc.OldKey)
	if err != nil {
		return domain.RotationRequest{}, fmt.Errorf("decode old_key: %w", err)
	}
	newKey, err := base64.StdEncoding.DecodeString(doc.NewKey)
	if err != nil {
		return domain.RotationRequest{}, fmt.Errorf("decode new_key: %w", err)
	}
	var createdAt time.Time
	if doc.CreatedAt != "" {
		createdAt, err = time.Parse(time.RFC3339, doc.CreatedAt)
		if err != nil {
			return domain.RotationRequest{}, fmt.Errorf("parse created_at: %w", err)
		}
	}
	return domain.RotationRequest{
		IdentityID:     doc.IdentityID,
		OldKey:         oldKey,
		NewKey:         newKey,
		Nonce:          doc.Nonce,
		CreatedAt:      createdAt,
		Threshold:      doc.Threshold,
		TotalAttestors: doc.TotalAttestors,
	}, nil
}
