package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/goAccount/apperr"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every JSON response.
type envelope struct {
	Success  bool       `json:"success"`
	Data     any        `json:"data,omitempty"`
	Message  string     `json:"message,omitempty"`
	Error    *errorBody `json:"error,omitempty"`
	Metadata *metadata  `json:"metadata,omitempty"`
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
}

type metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// respondWithJSON writes payload with the given status.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondOK(w http.ResponseWriter, code int, data any, message string) {
	respondWithJSON(w, code, envelope{Success: true, Data: data, Message: message})
}

// writeError converts err to its API form and writes it. Every handler
// failure goes through here.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := s.classify(err)

	status := ae.Status()
	body := &errorBody{Code: ae.Code(), Message: ae.Message, StatusCode: status, Details: ae.Details}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"code", body.Code,
			"status", status,
			"error", err,
		)
	} else {
		s.logger.Debug("request rejected", "request_id", middleware.GetReqID(r.Context()), "code", body.Code, "error", err)
	}

	if s.production {
		if !ae.Operational {
			body.Code = apperr.KindInternal.Code()
			body.Message = "Something went wrong"
			body.StatusCode = http.StatusInternalServerError
			status = http.StatusInternalServerError
		}
		body.Details = nil
	}

	respondWithJSON(w, status, envelope{
		Success:  false,
		Error:    body,
		Metadata: &metadata{Timestamp: s.now().UTC(), RequestID: middleware.GetReqID(r.Context())},
	})
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is required", nil)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Request body too large", nil)
		}
		return apperr.Validation("Invalid request body", err.Error())
	}
	return nil
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, apperr.New(apperr.KindNotFound, "Cannot "+r.Method+" "+r.URL.RequestURI()))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, apperr.New(apperr.KindNotFound, "Cannot "+r.Method+" "+r.URL.RequestURI()))
}
