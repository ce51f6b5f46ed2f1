// Command keygen prints a fresh base64-encoded AES-256 key suitable for the
// ENCRYPTION_KEY environment variable.
package main

import (
	"fmt"
	"os"

	"github.com/KashishBagga/pamm/pkg/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
