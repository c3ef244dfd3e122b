package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/michaelbrown/execbridge/internal/engine"
)

// maxFragmentSize bounds a POSTed fragment.
const maxFragmentSize = 16 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleIndex answers liveness checks.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleExecute runs the request body as a fragment.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFragmentSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("fragment too large: limit is %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}

	var res engine.Result
	if err := s.loop.Do(r.Context(), func() { res = s.exec.Execute(string(body)) }); err != nil {
		s.log.Warn("fragment not executed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	status := http.StatusOK
	if res.Failed() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}
