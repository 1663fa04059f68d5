// Package report renders captured marker images and their history into a
// self-contained HTML document.
package report

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"trackamole/internal/models"
)

//go:embed templates/report.html
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// Item is one marker section of a report.
type Item struct {
	Marker  models.Marker
	Name    string
	Entries []models.Entry
	Image   template.URL // PNG data URL, empty when the capture is missing
}

// Report is the data behind one generated document.
type Report struct {
	ID          string
	Title       string
	GeneratedAt time.Time
	Items       []Item
}

// Build assembles a report for the selected markers in selection order.
// Selected IDs that no longer exist are skipped; missing captures leave the
// item without an image.
func Build(all []models.Marker, entries []models.Entry, selected []int64, captures map[int64][]byte, now time.Time) Report {
	byID := make(map[int64]models.Marker, len(all))
	for _, m := range all {
		byID[m.ID] = m
	}
	history := make(map[int64][]models.Entry)
	for _, e := range entries {
		history[e.MarkerID] = append(history[e.MarkerID], e)
	}

	r := Report{ID: uuid.NewString(), Title: "Track-A-Mole Report", GeneratedAt: now}
	for _, id := range selected {
		m, ok := byID[id]
		if !ok {
			continue
		}
		hist := history[id]
		sort.SliceStable(hist, func(i, j int) bool { return hist[i].Date.Before(hist[j].Date) })
		item := Item{Marker: m, Name: displayName(m), Entries: hist}
		if png, ok := captures[id]; ok && len(png) > 0 {
			item.Image = DataURL(png)
		}
		r.Items = append(r.Items, item)
	}
	return r
}

func displayName(m models.Marker) string {
	if m.Label != "" {
		return m.Label
	}
	return fmt.Sprintf("%s #%d", m.Category, m.ID)
}

// DataURL embeds PNG bytes for use in an img src.
func DataURL(png []byte) template.URL {
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}

// Filename is the conventional report file name for now.
func Filename(now time.Time) string {
	return "TrackAMole_Report_" + now.UTC().Format("2006-01-02") + ".html"
}

// Write renders r as HTML.
func Write(w io.Writer, r Report) error {
	if err := tmpl.Execute(w, r); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteFile renders r into dir under Filename and returns the path.
func WriteFile(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, Filename(r.GeneratedAt))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Write(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
