// readlog decrypts an archived transcript and prints its messages, one JSON
// object per line, in append order.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/blasperez/Private-Chat/internal/archive"
)

func main() {
	keyB64 := flag.String("key", os.Getenv("ENCRYPTION_KEY"), "Base64-encoded 32-byte AES key")
	file := flag.String("file", "", "Archive file (.log.enc.json), or stdin")
	raw := flag.Bool("raw", false, "Print decrypted NDJSON without re-formatting")
	flag.Parse()

	if *keyB64 == "" {
		fmt.Fprintln(os.Stderr, "Usage: readlog -key <base64-key> [-file <archive>]")
		fmt.Fprintln(os.Stderr, "  Reads the archive from stdin if -file not specified")
		os.Exit(1)
	}

	key, err := base64.StdEncoding.DecodeString(*keyB64)
	if err != nil || len(key) != 32 {
		fmt.Fprintln(os.Stderr, "Invalid key: must be 32 bytes, base64-encoded")
		os.Exit(1)
	}

	var data []byte
	if *file != "" {
		data, err = os.ReadFile(*file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read archive: %v\n", err)
		os.Exit(1)
	}

	var env archive.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		fmt.Fprintf(os.Stderr, "Not an archive envelope: %v\n", err)
		os.Exit(1)
	}

	plaintext, err := archive.Decrypt(key, &env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decryption failed: %v\n", err)
		os.Exit(1)
	}

	if *raw {
		os.Stdout.Write(plaintext)
		return
	}

	messages, err := archive.Deserialize(plaintext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Malformed transcript: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	for i := range messages {
		if err := enc.Encode(&messages[i]); err != nil {
			fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
			os.Exit(1)
		}
	}
}
