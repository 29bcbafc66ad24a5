package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	cryptoinfra "keryx/internal/infra/crypto"
	"keryx/pkg/controller"
)

type keygenOutput struct {
	PublicKeyBase64  string `json:"public_key_base64"`
	PublicKeyHex     string `json:"public_key_hex"`
	PrivateKeyBase64 string `json:"private_key_base64"`
	KeyDigestHex     string `json:"key_digest_hex"`
}

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var seedHex string
	var outPath string
	fs.StringVar(&seedHex, "seed-hex", "", "deterministic 32-byte seed in hex")
	fs.StringVar(&outPath, "out", "", "output JSON path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	var pub ed25519.PublicKey
	var priv ed25519.PrivateKey
	if seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != ed25519.SeedSize {
			fmt.Fprintln(os.Stderr, "seed-hex must be 32 bytes of hex")
			return 1
		}
		priv = ed25519.NewKeyFromSeed(seed)
		pub = priv.Public().(ed25519.PublicKey)
	} else {
		var err error
		pub, priv, err = controller.GenerateKeypair()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate keypair: %v\n", err)
			return 1
		}
	}

	service := cryptoinfra.NewService()
	out := keygenOutput{
		PublicKeyBase64:  base64.StdEncoding.EncodeToString(pub),
		PublicKeyHex:     hex.EncodeToString(pub),
		PrivateKeyBase64: base64.StdEncoding.EncodeToString(priv),
		KeyDigestHex:     hex.EncodeToString(service.KeyDigest(pub)),
	}
	payload, err := cryptoinfra.CanonicalizeAny(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
