package backup

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"trackamole/internal/markers"
	"trackamole/internal/models"
	"trackamole/internal/utils"
)

var now = time.Date(2025, 6, 14, 18, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *markers.Store {
	t.Helper()
	s, err := markers.Open(filepath.Join(t.TempDir(), "b.db"), utils.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	m, err := s.CreateMarker(ctx, models.Marker{
		Variant: models.VariantFemale, Position: r3.Vec{X: 0.1, Y: 1.2, Z: 0.05},
		Category: models.CategoryMole, Label: "neck", CreatedAt: now.AddDate(0, -2, 0),
	})
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, models.Entry{MarkerID: m.ID, Date: now.AddDate(0, -1, 0), Notes: "unchanged", SizeMM: 2.5})
	require.NoError(t, err)
	return s
}

func emptyStore(t *testing.T) *markers.Store {
	t.Helper()
	s, err := markers.Open(filepath.Join(t.TempDir(), "e.db"), utils.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapshot(t *testing.T, s *markers.Store) ([]models.Marker, []models.Entry) {
	t.Helper()
	ms, es, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	return ms, es
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "trackamole-backup-2025-06-14.json", Filename(now, false))
	assert.Equal(t, "trackamole-backup-2025-06-14.tam", Filename(now, true))
}

func TestExportImport_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededStore(t)
	data, name, err := Export(ctx, src, "  ", now)
	require.NoError(t, err)
	assert.Equal(t, Filename(now, false), name)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["version"])
	assert.EqualValues(t, now.UnixMilli(), raw["timestamp"])

	dst := emptyStore(t)
	doc, err := Import(ctx, dst, name, data, "")
	require.NoError(t, err)
	assert.Len(t, doc.Moles, 1)

	wantM, wantE := snapshot(t, src)
	gotM, gotE := snapshot(t, dst)
	assert.Equal(t, wantM, gotM)
	assert.Equal(t, wantE, gotE)
}

func TestExportImport_EncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededStore(t)
	data, name, err := Export(ctx, src, "hunter2", now)
	require.NoError(t, err)
	assert.Equal(t, Filename(now, true), name)
	assert.False(t, json.Valid(data))

	dst := emptyStore(t)
	_, err = Import(ctx, dst, name, data, "hunter2")
	require.NoError(t, err)
	wantM, _ := snapshot(t, src)
	gotM, _ := snapshot(t, dst)
	assert.Equal(t, wantM, gotM)
}

func TestImport_WrongPasswordLeavesStore(t *testing.T) {
	ctx := context.Background()
	data, name, err := Export(ctx, seededStore(t), "right", now)
	require.NoError(t, err)

	dst := seededStore(t)
	beforeM, beforeE := snapshot(t, dst)
	_, err = Import(ctx, dst, name, data, "wrong")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Import(ctx, dst, name, data, "")
	assert.ErrorIs(t, err, ErrPasswordRequired)

	afterM, afterE := snapshot(t, dst)
	assert.Equal(t, beforeM, afterM)
	assert.Equal(t, beforeE, afterE)
}

func TestImport_ValidationLeavesStore(t *testing.T) {
	cases := map[string]string{
		"newer version":   `{"version":2,"timestamp":0,"moles":[],"entries":[]}`,
		"missing moles":   `{"version":1,"entries":[]}`,
		"entries object":  `{"version":1,"moles":[],"entries":{}}`,
		"not an object":   `[1,2,3]`,
		"invalid json":    `{"version":`,
		"null document":   `null`,
		"bad marker body": `{"version":1,"moles":[{"position":"x"}],"entries":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dst := seededStore(t)
			before, _ := snapshot(t, dst)
			_, err := Import(context.Background(), dst, "b.json", []byte(body), "")
			assert.ErrorIs(t, err, ErrImportValidation)
			after, _ := snapshot(t, dst)
			assert.Equal(t, before, after)
		})
	}
}

func TestImport_VersionlessAccepted(t *testing.T) {
	dst := seededStore(t)
	_, err := Import(context.Background(), dst, "old.JSON", []byte(`{"moles":[],"entries":[]}`), "")
	require.NoError(t, err)
	ms, es := snapshot(t, dst)
	assert.Empty(t, ms)
	assert.Empty(t, es)
}

func TestImport_UnsupportedFormat(t *testing.T) {
	_, err := Import(context.Background(), emptyStore(t), "backup.zip", []byte("{}"), "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImport_TwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	data, name, err := Export(ctx, seededStore(t), "", now)
	require.NoError(t, err)

	dst := emptyStore(t)
	_, err = Import(ctx, dst, name, data, "")
	require.NoError(t, err)
	firstM, firstE := snapshot(t, dst)
	_, err = Import(ctx, dst, name, data, "")
	require.NoError(t, err)
	secondM, secondE := snapshot(t, dst)
	assert.Equal(t, firstM, secondM)
	assert.Equal(t, firstE, secondE)
}
