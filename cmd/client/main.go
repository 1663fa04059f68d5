package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"trackamole/internal"
	"trackamole/internal/markers"
	"trackamole/internal/models"
	"trackamole/internal/utils"
)

type options struct {
	cmd      string
	gender   string
	category string
	id       int64
	ids      string
	label    string
	notes    string
	size     float64
	x, y, z  float64
	tap      string
	file     string
	out      string
	password string
}

func main() {
	var o options
	flag.StringVar(&o.cmd, "cmd", "markers", "Command: markers|add|entry|history|delete|render|report|export|import|remind")
	flag.StringVar(&o.gender, "gender", "", "Body variant (male|female); default from config")
	flag.StringVar(&o.category, "category", "", "Marker category filter or category for add")
	flag.Int64Var(&o.id, "id", 0, "Marker ID (entry/history/delete/render)")
	flag.StringVar(&o.ids, "ids", "", "Comma separated marker IDs for report; default all markers of the variant")
	flag.StringVar(&o.label, "label", "", "Marker label (add)")
	flag.StringVar(&o.notes, "notes", "", "Entry notes (entry)")
	flag.Float64Var(&o.size, "size", 0, "Entry size in mm (entry)")
	flag.Float64Var(&o.x, "x", 0, "Marker X in model space (add)")
	flag.Float64Var(&o.y, "y", 0, "Marker Y in model space (add)")
	flag.Float64Var(&o.z, "z", 0, "Marker Z in model space (add)")
	flag.StringVar(&o.tap, "tap", "", "Screen position \"x,y\" to place the marker on the body instead of -x/-y/-z (add)")
	flag.StringVar(&o.file, "file", "", "Backup file to import")
	flag.StringVar(&o.out, "out", "", "Output directory (export/render/report)")
	flag.StringVar(&o.password, "password", "", "Backup password; export encrypts when set")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "loaded .env")
	}
	cfg := internal.LoadConfig()
	logger, err := utils.OpenLogger(cfg.LogPath)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer logger.Close()
	if err := internal.ConfigError(); err != nil {
		logger.Warnf("config.json ignored: %v", err)
	}

	variant := cfg.DefaultGender
	if o.gender != "" {
		if variant, err = models.ParseVariant(o.gender); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := markers.Open(cfg.DatabasePath, logger)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer store.Close()

	app := &app{cfg: cfg, log: logger, store: store, variant: variant}
	commands := map[string]func(context.Context, options) error{
		"markers": app.listMarkers,
		"add":     app.addMarker,
		"entry":   app.addEntry,
		"history": app.history,
		"delete":  app.deleteMarker,
		"render":  app.render,
		"report":  app.report,
		"export":  app.export,
		"import":  app.importBackup,
		"remind":  app.remind,
	}
	run, ok := commands[strings.ToLower(o.cmd)]
	if !ok {
		fmt.Println("Unknown command")
		os.Exit(1)
	}
	if err := run(ctx, o); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
