package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"trackamole/internal"
	"trackamole/internal/utils"
)

type handlers struct {
	modelDir string
	log      *utils.Logger
}

// serveModel returns an encrypted model blob. Only *.enc files are exposed so
// a plaintext model left in the directory is never served.
func (h *handlers) serveModel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["file"]
	if name != filepath.Base(name) || !internal.IsEncryptedAsset(name) {
		utils.WriteError(w, &utils.CustomError{Code: http.StatusNotFound, Message: "model not found"})
		return
	}
	path := filepath.Join(h.modelDir, name)
	f, err := os.Open(path)
	if err != nil {
		h.log.Warnf("model %s: %v", name, err)
		utils.WriteError(w, &utils.CustomError{Code: http.StatusNotFound, Message: "model not found"})
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		utils.WriteError(w, &utils.CustomError{Code: http.StatusNotFound, Message: "model not found"})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, name, info.ModTime(), f)
}
