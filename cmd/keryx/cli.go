package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "keygen":
		return runKeygen(args[2:])
	case "incept":
		return runIncept(args[2:])
	case "rotate":
		return runRotate(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "fork":
		return runFork(args[2:])
	case "record":
		return runRecord(args[2:])
	case "attest":
		return runAttest(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "keryx"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s keygen [--seed-hex <hex>] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s incept --identity <id> (--key-hex <hex>|--key-base64 <b64>) (--next-pubkey-hex <hex>|--next-pubkey-base64 <b64>) [--at <rfc3339>] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s rotate --identity <id> --sequence <n> (--key-hex|--key-base64) (--next-pubkey-hex|--next-pubkey-base64) --prior <event.json> [--at <rfc3339>] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --log <events.json>\n", name)
	fmt.Fprintf(os.Stderr, "  %s fork --log-a <events.json> --log-b <events.json>\n", name)
	fmt.Fprintf(os.Stderr, "  %s record --identity <id> --old-kid <kid> --new-kid <kid> --old-key-base64 <b64> --new-key-base64 <b64> [--prev <record.json>] [--effective-at <rfc3339>] [--reason <text>] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s attest --request <request.json> --attestor-id <id> --channel <name> (--key-hex|--key-base64) [--out <file>]\n", name)
}
