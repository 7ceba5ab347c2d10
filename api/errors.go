package api

import (
	"errors"
	"net/http"

	"github.com/thisisjab/logtable/fault"
)

// handleError writes err as a JSON error response. Faults map to a status by
// code; anything else is logged and answered with 500.
func (s *server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var f fault.Fault
	if !errors.As(err, &f) {
		s.internalServerError(w, r, err)
		return
	}

	res := apiResponse{Success: false, Message: f.Message()}

	switch f.Code() {
	case fault.BadInputCode:
		// Field errors are 422, anything else the client sent wrong is 400.
		if md, ok := f.Metadata().(fault.FieldErrorsMetadata); ok {
			res.Metadata = map[string]any{"fields": md}
			s.writeError(w, r, http.StatusUnprocessableEntity, res)
			return
		}
		if f.Metadata() != nil {
			res.Metadata = map[string]any{"context": f.Metadata()}
		}
		s.writeError(w, r, http.StatusBadRequest, res)

	case fault.NotFoundCode:
		if res.Message == "" {
			res.Message = "Requested resource not found."
		}
		s.writeError(w, r, http.StatusNotFound, res)

	default:
		s.internalServerError(w, r, f)
	}
}

// errNoTarget answers endpoints that need a target the server was started without.
var errNoTarget = fault.New(fault.NotFoundCode, "No target is configured.")

func (s *server) rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	s.writeError(w, r, http.StatusTooManyRequests, apiResponse{Success: false, Message: "Rate limit exceeded."})
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, response apiResponse) {
	if err := s.writeJson(w, status, response, nil); err != nil {
		s.logger.Error("cannot write error response", "path", r.URL.Path, "error", err)
	}
}

func (s *server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal server error", "method", r.Method, "path", r.RequestURI, "remote-addr", r.RemoteAddr, "error", err)
	s.writeError(w, r, http.StatusInternalServerError, apiResponse{Success: false, Message: "Internal server error"})
}
