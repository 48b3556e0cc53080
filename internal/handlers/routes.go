package handlers

import "net/http"

// APIPrefix is the mount point of the pronunciation API.
const APIPrefix = "/api/pronunciation"

// Register mounts the pronunciation API on mux.
func Register(mux *http.ServeMux, h *PronunciationHandler, mw *Middleware) {
	mux.HandleFunc("GET "+APIPrefix+"/modules", mw.OptionalAuth(h.ListModules))
	mux.HandleFunc("GET "+APIPrefix+"/modules/{soundID}", mw.OptionalAuth(h.GetModule))
	mux.HandleFunc("GET "+APIPrefix+"/modules/{soundID}/exercises/{index}", mw.OptionalAuth(h.GetExercise))
	mux.HandleFunc("GET "+APIPrefix+"/difficulty-levels", h.DifficultyLevels)

	mux.HandleFunc("POST "+APIPrefix+"/analyze", mw.RequireAuth(mw.RateLimit("analyze", h.Analyze)))
	mux.HandleFunc("GET "+APIPrefix+"/history", mw.RequireAuth(h.History))
	mux.HandleFunc("GET "+APIPrefix+"/stats", mw.RequireAuth(h.Stats))
	mux.HandleFunc("GET "+APIPrefix+"/recommended", mw.RequireAuth(h.Recommended))
}
