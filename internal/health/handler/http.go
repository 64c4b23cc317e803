package handler

import (
	"encoding/json"
	"net/http"
	"sort"
)

type readyzBody struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

// ReadyzHandler serves the same checks over HTTP: 200 when ready, 503 listing the failed checks otherwise.
func (s *Server) ReadyzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failures := s.run(r.Context())
		body := readyzBody{Status: "ok"}
		code := http.StatusOK
		if len(failures) > 0 {
			body.Status = "unavailable"
			for name := range failures {
				body.Failed = append(body.Failed, name)
			}
			sort.Strings(body.Failed)
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})
}

// LivezHandler always answers 200 while the process is serving HTTP.
func LivezHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
}
