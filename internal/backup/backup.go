// Package backup exports the marker database to a portable file and
// restores it, optionally password protected.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"trackamole/internal/crypto"
	"trackamole/internal/models"
)

// Version is the backup document version written by Export. Import accepts
// documents up to this version.
const Version = 1

const (
	ExtJSON      = ".json"
	ExtEncrypted = ".tam"
	filePrefix   = "trackamole-backup-"
)

var (
	ErrImportValidation  = errors.New("backup: invalid backup")
	ErrPasswordRequired  = errors.New("backup: password required for encrypted backup")
	ErrUnsupportedFormat = errors.New("backup: unsupported file format, use .json or .tam")
	ErrDecrypt           = errors.New("backup: failed to decrypt backup, check the password")
)

// Document is the backup file body.
type Document struct {
	Version   int             `json:"version"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Moles     []models.Marker `json:"moles"`
	Entries   []models.Entry  `json:"entries"`
}

// Store is the part of the marker store backups need.
type Store interface {
	Snapshot(ctx context.Context) ([]models.Marker, []models.Entry, error)
	Replace(ctx context.Context, markers []models.Marker, entries []models.Entry) error
}

// Filename is the conventional name for a backup taken at now.
func Filename(now time.Time, encrypted bool) string {
	ext := ExtJSON
	if encrypted {
		ext = ExtEncrypted
	}
	return filePrefix + now.UTC().Format("2006-01-02") + ext
}

// Export serializes the whole store. A non-blank password produces an
// encrypted .tam body, otherwise indented JSON.
func Export(ctx context.Context, store Store, password string, now time.Time) (data []byte, filename string, err error) {
	ms, es, err := store.Snapshot(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("snapshot: %w", err)
	}
	doc := Document{Version: Version, Timestamp: now.UnixMilli(), Moles: ms, Entries: es}

	if strings.TrimSpace(password) != "" {
		plain, err := json.Marshal(doc)
		if err != nil {
			return nil, "", err
		}
		blob, err := crypto.EncryptWithPassword(password, plain)
		if err != nil {
			return nil, "", err
		}
		return blob, Filename(now, true), nil
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return body, Filename(now, false), nil
}

// Decode reads and validates a backup. The format is chosen by the file
// name's extension.
func Decode(name string, data []byte, password string) (*Document, error) {
	var plain []byte
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtEncrypted:
		if password == "" {
			return nil, ErrPasswordRequired
		}
		p, err := crypto.DecryptWithPassword(password, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
		}
		plain = p
	case ExtJSON:
		plain = data
	default:
		return nil, ErrUnsupportedFormat
	}
	return parse(plain)
}

func parse(plain []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(plain, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrImportValidation)
	}
	if !isArray(fields["moles"]) || !isArray(fields["entries"]) {
		return nil, fmt.Errorf("%w: missing moles or entries data", ErrImportValidation)
	}
	var doc Document
	if err := json.Unmarshal(plain, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportValidation, err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d", ErrImportValidation, doc.Version, Version)
	}
	return &doc, nil
}

func isArray(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
}

// Import validates the backup and replaces the store contents with it. The
// store is untouched when validation or decryption fails.
func Import(ctx context.Context, store Store, name string, data []byte, password string) (*Document, error) {
	doc, err := Decode(name, data, password)
	if err != nil {
		return nil, err
	}
	if err := store.Replace(ctx, doc.Moles, doc.Entries); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return doc, nil
}
