package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trackamole/internal/crypto"
	"trackamole/internal/utils"
)

const (
	assetKeyEnv  = "ASSET_ENCRYPTION_KEY"
	assetKeyFile = "asset.key"
	encSuffix    = ".enc"
)

// ReadAssetKey returns the model encryption key from ASSET_ENCRYPTION_KEY or,
// failing that, the asset.key file in the working directory.
func ReadAssetKey() ([]byte, error) {
	if h := os.Getenv(assetKeyEnv); h != "" {
		return crypto.ParseKeyHex(h)
	}
	return ReadAssetKeyFrom(assetKeyFile)
}

// ReadAssetKeyFrom reads a hex key file.
func ReadAssetKeyFrom(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s not set and %s not readable: %w", assetKeyEnv, path, err)
	}
	return crypto.ParseKeyHex(string(data))
}

// WriteAssetKey stores key as hex at path, refusing to replace an existing key.
func WriteAssetKey(path string, key []byte) error {
	if FileExists(path) {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%x\n", key)), 0o600)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

// EncryptAssets encrypts every *.glb in dir next to itself as *.glb.enc and
// returns the written paths in name order.
func EncryptAssets(dir string, key []byte, log *utils.Logger) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.glb"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var out []string
	for _, src := range matches {
		plain, err := os.ReadFile(src)
		if err != nil {
			return out, err
		}
		blob, err := crypto.Encrypt(key, plain)
		if err != nil {
			return out, fmt.Errorf("encrypt %s: %w", src, err)
		}
		dst := src + encSuffix
		if err := os.WriteFile(dst, blob, 0o644); err != nil {
			return out, err
		}
		log.Infof("encrypted %s -> %s (%d bytes)", filepath.Base(src), filepath.Base(dst), len(blob))
		out = append(out, dst)
	}
	if len(out) == 0 {
		log.Warnf("no .glb files found in %s", dir)
	}
	return out, nil
}

// IsEncryptedAsset reports whether name looks like an encrypted model file.
func IsEncryptedAsset(name string) bool {
	return strings.HasSuffix(name, encSuffix) && !strings.Contains(name, "..")
}
