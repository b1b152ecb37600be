package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /v1/providers/health", handler.ProvidersHealth)
}

func registerScoringRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/sports", handler.ListSports)
	mux.HandleFunc("GET /v1/sports/{sportID}/schedule", handler.GetSchedule)
	mux.HandleFunc("POST /v1/matches/{matchID}/events", handler.SubmitMatchEvent)
	mux.HandleFunc("GET /v1/matches/{matchID}/projections/{name}", handler.GetMatchProjection)
	mux.HandleFunc("GET /v1/matches/{matchID}/scores/stream", handler.StreamScores)
}

func registerInternalRoutes(mux *http.ServeMux, handler *Handler, internalToken string) {
	mux.Handle("POST /v1/internal/matches/{matchID}/projections/{name}/rebuild",
		RequireInternalToken(internalToken, http.HandlerFunc(handler.RebuildProjection)))
	mux.Handle("POST /v1/internal/matches/{matchID}/bonuses/evaluate",
		RequireInternalToken(internalToken, http.HandlerFunc(handler.EvaluateMatchBonuses)))
}
