package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coolbeans/regparser/pkg/output"
	"github.com/coolbeans/regparser/pkg/pipeline"
	"github.com/coolbeans/regparser/pkg/source"
)

// handleParse parses the request body. Query parameters: profile, part,
// supplement and format (text, markdown or xml).
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("document exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	profileID := q.Get("profile")
	if profileID == "" {
		profileID = s.cfg.Profile
	}
	p, ok := s.profiles.Get(profileID)
	if !ok {
		jsonError(w, fmt.Sprintf("unknown profile %q", profileID), http.StatusNotFound)
		return
	}

	format, err := source.ParseFormat(q.Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	part := q.Get("part")
	text, err := source.Read(bytes.NewReader(data), format, source.Options{Part: part})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	supplementID := q.Get("supplement")
	if supplementID == "" {
		supplementID = s.cfg.SupplementFor(p)
	}
	pl, err := pipeline.New(p, pipeline.Options{Part: part, SupplementID: supplementID}, s.log)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := pl.Parse(text)
	if err != nil {
		s.documentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, output.NewBundle(result, text, output.Meta{Profile: p.ProfileID}))
}

// documentError reports a failed parse. Structural failures carry their
// text code and, when known, the offending source range.
func (s *Server) documentError(w http.ResponseWriter, err error) {
	if !pipeline.IsDocumentError(err) {
		s.log.Error("parse failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	body := map[string]any{
		"error": err.Error(),
		"code":  pipeline.Code(err),
	}
	if start, end, ok := pipeline.SourceRange(err); ok {
		body["start"] = start
		body["end"] = end
	}
	writeJSON(w, http.StatusUnprocessableEntity, body)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": s.profiles.List(),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	p, ok := s.profiles.Get(profileID)
	if !ok {
		jsonError(w, fmt.Sprintf("unknown profile %q", profileID), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
