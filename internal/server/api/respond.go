package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"xmlcustomizer/syndicator/internal/admin"
	"xmlcustomizer/syndicator/internal/origin"
	"xmlcustomizer/syndicator/internal/storage"
	"xmlcustomizer/syndicator/internal/xmlfeed"
)

// ErrorResponse is the JSON body of every failed JSON endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
		return
	}
	log.Debug().Int("bytes_written", len(jsonBytes)).Msg("Response completed")
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}

// writeError maps a service error to its HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := hlog.FromRequest(r)

	var (
		validation *admin.ValidationError
		parseErr   *xmlfeed.ParseError
		fetchErr   *origin.FetchError
	)

	switch {
	case errors.As(err, &validation):
		writeErrorMessage(w, r, http.StatusBadRequest, validation.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeErrorMessage(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &parseErr):
		log.Warn().Err(err).Msg("Origin returned a malformed document")
		writeErrorMessage(w, r, http.StatusUnprocessableEntity, parseErr.Error())
	case errors.As(err, &fetchErr):
		log.Warn().Err(err).Msg("Origin request failed")
		writeErrorMessage(w, r, http.StatusBadGateway, fetchErr.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		writeErrorMessage(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

const maxBodyBytes = 4 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}
