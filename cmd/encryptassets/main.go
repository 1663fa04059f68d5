package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"trackamole/internal"
	"trackamole/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := internal.LoadConfig()
	dir := flag.String("dir", cfg.ModelDir, "directory holding the plaintext .glb models")
	flag.Parse()

	logger := utils.NewWriterLogger(os.Stderr)
	key, err := internal.ReadAssetKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	written, err := internal.EncryptAssets(*dir, key, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Encrypted %d model(s)\n", len(written))
}
