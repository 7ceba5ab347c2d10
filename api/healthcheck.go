package api

import "net/http"

func (s *server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "OK",
	}, nil)
}

func (s *server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if s.services.Stats == nil {
		s.handleError(w, r, errNoTarget)
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"table": s.services.Stats.TableName(),
			"stats": s.services.Stats.Stats(),
		},
	}, nil)
}
