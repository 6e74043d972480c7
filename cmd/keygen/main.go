package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/tjfontaine/tutor-gateway/internal/auth"
)

func main() {
	secret := ""
	if len(os.Args) > 1 {
		secret = os.Args[1]
	} else {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate secret: %v\n", err)
			os.Exit(1)
		}
		secret = hex.EncodeToString(buf)
	}

	keyHash := auth.HashAPIKey(secret)

	fmt.Printf("Proxy key: %s\n", secret)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("  auth:\n")
	fmt.Printf("    proxy_key_hash: \"%s\"\n", keyHash)
	fmt.Println("\nClients send the proxy key in the X-Proxy-Key header.")
}
