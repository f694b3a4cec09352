package httpserver

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"talok/internal/export"
)

// export buffers the whole file so that a failure still maps to a JSON error.
func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, fmt.Errorf("%v: %w", err, errBadRequest))
		return
	}
	var buf bytes.Buffer
	if err := h.Exports.Export(r.Context(), caller(r), entity, f, &buf); err != nil {
		writeError(w, err)
		return
	}
	name := fmt.Sprintf("%s-%s%s", entity, time.Now().UTC().Format("20060102"), f.Extension())
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Error().Err(err).Str("entity", entity).Msg("failed to write export")
	}
}
