package main

import (
	"flag"
	"fmt"
	"os"

	"trackamole/internal"
	"trackamole/internal/crypto"
)

func main() {
	out := flag.String("out", "asset.key", "file to write the hex key to")
	flag.Parse()

	key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}
	if err := internal.WriteAssetKey(*out, key); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Asset key written to %s\n", *out)
	fmt.Println("Set ASSET_ENCRYPTION_KEY to its contents when building the client.")
}
