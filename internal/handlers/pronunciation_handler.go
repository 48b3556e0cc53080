package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"lautcoach/internal/audio"
	"lautcoach/internal/auth"
	"lautcoach/internal/models"
	"lautcoach/internal/service"
)

// multipartOverhead is the allowance for form fields and part headers on
// top of the audio itself.
const multipartOverhead = 1 << 20

// PronunciationHandler handles the pronunciation API
type PronunciationHandler struct {
	svc       *service.PronunciationService
	maxUpload int64
}

// NewPronunciationHandler creates a new pronunciation handler. maxUpload
// bounds the recording size; zero means audio.MaxSize.
func NewPronunciationHandler(svc *service.PronunciationService, maxUpload int64) *PronunciationHandler {
	if maxUpload <= 0 {
		maxUpload = audio.MaxSize
	}
	return &PronunciationHandler{svc: svc, maxUpload: maxUpload}
}

// ListModules handles GET /modules
func (h *PronunciationHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	difficulty := models.DifficultyLevel(r.URL.Query().Get("difficulty"))
	modules, err := h.svc.ListModules(r.Context(), auth.UserFrom(r.Context()), difficulty)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch modules")
		return
	}
	respondWithJSON(w, http.StatusOK, modules)
}

// GetModule handles GET /modules/{soundID}
func (h *PronunciationHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	module, err := h.svc.GetModule(r.Context(), auth.UserFrom(r.Context()), r.PathValue("soundID"))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch module")
		return
	}
	respondWithJSON(w, http.StatusOK, module)
}

// GetExercise handles GET /modules/{soundID}/exercises/{index}
func (h *PronunciationHandler) GetExercise(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Invalid exercise index", "", err)
		return
	}
	exercise, err := h.svc.GetExercise(r.Context(), auth.UserFrom(r.Context()), r.PathValue("soundID"), index)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch exercise")
		return
	}
	respondWithJSON(w, http.StatusOK, exercise)
}

// Analyze handles POST /analyze with a multipart form holding the audio
// file, sound_id and exercise_index.
func (h *PronunciationHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	if user == nil {
		respondWithError(w, r, http.StatusUnauthorized, "Unauthorized", "", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, r, http.StatusRequestEntityTooLarge, "Audio file too large", "", err)
			return
		}
		respondWithError(w, r, http.StatusBadRequest, "Invalid multipart form", "", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	soundID := r.FormValue("sound_id")
	if soundID == "" {
		respondWithError(w, r, http.StatusBadRequest, "sound_id is required", "", nil)
		return
	}
	index, err := strconv.Atoi(r.FormValue("exercise_index"))
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Invalid exercise_index", "", err)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "audio file is required", "", err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Failed to read audio", "", err)
		return
	}
	if int64(len(data)) > h.maxUpload {
		respondWithError(w, r, http.StatusRequestEntityTooLarge, "Audio file too large", "", nil)
		return
	}

	result, err := h.svc.Analyze(r.Context(), service.AnalyzeRequest{
		User:          *user,
		SoundID:       soundID,
		ExerciseIndex: index,
		Audio:         data,
		Filename:      header.Filename,
	})
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to process pronunciation")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// History handles GET /history
func (h *PronunciationHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := intParam(q.Get("skip"), 0)
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Invalid skip", "", err)
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Invalid limit", "", err)
		return
	}
	items, err := h.svc.History(r.Context(), *auth.UserFrom(r.Context()), q.Get("sound_id"), skip, limit)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch history")
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

// Stats handles GET /stats
func (h *PronunciationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), *auth.UserFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch stats")
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// Recommended handles GET /recommended
func (h *PronunciationHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Invalid limit", "", err)
		return
	}
	modules, err := h.svc.Recommend(r.Context(), *auth.UserFrom(r.Context()), limit)
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to get recommendations")
		return
	}
	respondWithJSON(w, http.StatusOK, modules)
}

// DifficultyLevels handles GET /difficulty-levels
func (h *PronunciationHandler) DifficultyLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.DifficultyLevels(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "Failed to fetch difficulty levels")
		return
	}
	respondWithJSON(w, http.StatusOK, levels)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
