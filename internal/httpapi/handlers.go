package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type statusResponse struct {
	Server      string `json:"server"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Connections int    `json:"connections"`
}

func Health(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, healthResponse{
			Status:    "ok",
			Timestamp: opts.Clock.Now().UTC().Format(time.RFC3339Nano),
			Version:   opts.Version,
		})
	}
}

func Status(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Server:      ServerName,
			Version:     opts.Version,
			Environment: opts.Env,
		}
		if opts.Connections != nil {
			resp.Connections = opts.Connections()
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to write response")
	}
}
