package web

import (
	"net/http"

	"github.com/JonMunkholm/cms/internal/core"
)

type healthResponse struct {
	Status  string                   `json:"status"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, healthResponse{Status: "ok", Imports: s.service.Limiter().Status()})
}
