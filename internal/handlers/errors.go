package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"lautcoach/internal/audio"
	"lautcoach/internal/auth"
	"lautcoach/internal/observe"
	"lautcoach/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
}

// respondWithError logs err (if any) and writes a JSON error body. logMsg
// defaults to userMsg.
func respondWithError(w http.ResponseWriter, r *http.Request, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger := observe.Logger(r.Context())
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), logMsg, "status", status, "error", err)
		} else {
			logger.DebugContext(r.Context(), logMsg, "status", status, "error", err)
		}
	}
	respondWithJSON(w, status, errorBody{Error: userMsg})
}

func respondWithJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondWithServiceError maps a service error to its status code. Unknown
// errors become a 500 with a generic message.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *audio.ValidationError
	switch {
	case errors.Is(err, service.ErrModuleNotFound):
		respondWithError(w, r, http.StatusNotFound, "Module not found", "", err)
	case errors.Is(err, service.ErrExerciseNotFound):
		respondWithError(w, r, http.StatusNotFound, "Exercise not found", "", err)
	case errors.Is(err, service.ErrInvalidArgument):
		respondWithError(w, r, http.StatusBadRequest, err.Error(), "", err)
	case errors.Is(err, audio.ErrEmptyAudio):
		respondWithError(w, r, http.StatusBadRequest, "Empty audio file", "", err)
	case errors.As(err, &verr):
		respondWithError(w, r, http.StatusBadRequest, verr.Error(), "", err)
	case errors.Is(err, service.ErrTranscriptionFailed):
		respondWithError(w, r, http.StatusBadGateway, "Transcription failed", "", err)
	case errors.Is(err, service.ErrStorageFailed):
		respondWithError(w, r, http.StatusBadGateway, "Audio upload failed", "", err)
	case errors.Is(err, auth.ErrMissingBearer), errors.Is(err, auth.ErrInvalidToken):
		respondWithError(w, r, http.StatusUnauthorized, "Unauthorized", "", err)
	default:
		respondWithError(w, r, http.StatusInternalServerError, fallback, "", err)
	}
}
