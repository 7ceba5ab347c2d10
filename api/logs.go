package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/thisisjab/logtable/entity"
	"github.com/thisisjab/logtable/fault"
)

type ingestRequest struct {
	// Logs are JSON objects decoded by the configured processor.
	Logs []json.RawMessage `json:"logs"`
}

// ingestLogsHandler decodes every record before writing any, so a request is
// either accepted whole or rejected whole.
func (s *server) ingestLogsHandler(w http.ResponseWriter, r *http.Request) {
	if s.services.Writer == nil {
		s.handleError(w, r, errNoTarget)
		return
	}

	var req ingestRequest
	if s.returnOnError(w, r, s.readJson(w, r, &req)) {
		return
	}

	if len(req.Logs) == 0 {
		s.handleError(w, r, fieldError("logs", "At least one record is required."))
		return
	}
	if len(req.Logs) > s.cfg.MaxRecords {
		s.handleError(w, r, fieldError("logs", fmt.Sprintf("At most %d records are accepted per request.", s.cfg.MaxRecords)))
		return
	}

	now := time.Now()
	records := make([]entity.LogRecord, len(req.Logs))
	fieldErrors := fault.FieldErrorsMetadata{}
	for i, raw := range req.Logs {
		rec, err := s.services.Processor.Process(entity.RawLogRecord{Source: "api", Data: raw, Timestamp: now})
		if err != nil {
			key := fmt.Sprintf("logs[%d]", i)
			fieldErrors[key] = append(fieldErrors[key], err.Error())
			continue
		}
		if rec.LoggerName == "" {
			rec.LoggerName = "api"
		}
		if rec.Timestamp.IsZero() {
			rec.Timestamp = now
		}
		records[i] = rec
	}
	if len(fieldErrors) > 0 {
		s.handleError(w, r, fault.New(fault.BadInputCode, "Some records could not be decoded.").WithMetadata(fieldErrors))
		return
	}

	for _, rec := range records {
		s.services.Writer.Write(rec)
	}

	s.writeJson(w, http.StatusAccepted, apiResponse{ //nolint:errcheck
		Success: true,
		Data:    map[string]any{"accepted": len(records)},
	}, nil)
}
