package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/thisisjab/logtable/fault"
)

type apiResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func badInput(format string, args ...any) error {
	return fault.New(fault.BadInputCode, fmt.Sprintf(format, args...))
}

func fieldError(field, msg string) error {
	return fault.New(fault.BadInputCode, "").WithMetadata(fault.FieldErrorsMetadata{field: []string{msg}})
}

// readJson decodes exactly one JSON value of at most MaxBodyBytes into dst.
// Decoding problems come back as BadInputCode faults.
func (s *server) readJson(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var invalidErr *json.InvalidUnmarshalError
		var sizeErr *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxErr):
			return badInput("Body contains badly-formed JSON at character %d.", syntaxErr.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return badInput("Body contains badly-formed JSON.")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return fieldError(typeErr.Field, fmt.Sprintf("Expected type %s.", typeErr.Type))
		case errors.As(err, &typeErr):
			return badInput("Body contains badly-formed JSON at character %d.", typeErr.Offset)
		case errors.Is(err, io.EOF):
			return badInput("Body cannot be empty.")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			name := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return fieldError(name, "Key is unknown.")
		case errors.As(err, &sizeErr):
			return badInput("Body must not be larger than %d bytes.", sizeErr.Limit)
		case errors.As(err, &invalidErr):
			panic(err)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badInput("Body must only contain a single JSON value.")
	}
	return nil
}

// returnOnError writes err as a response and reports whether there was one.
func (s *server) returnOnError(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}
	s.handleError(w, r, err)
	return true
}

func (s *server) writeJson(w http.ResponseWriter, status int, data apiResponse, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}
