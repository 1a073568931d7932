package api

import (
	"net/http"

	"github.com/seenimoa/openrank/internal/config"
)

// ConfigResponse is the payload of GET /api/v1/config.
type ConfigResponse struct {
	Config    config.Config      `json:"config"`
	Keys      []config.KeyStatus `json:"keys"`
	LLMReady  bool               `json:"llm_ready"`
	Providers []string           `json:"providers,omitempty"`
}

// handleGetConfig returns the running configuration with API keys masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{
		Config:   s.cfg.Redacted(),
		Keys:     config.CheckAPIKeys(s.cfg),
		LLMReady: s.llm != nil,
	}
	if s.llm != nil {
		resp.Providers = s.llm.ProviderNames()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handleGetConfigKeys returns the status of every LLM provider key.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}
