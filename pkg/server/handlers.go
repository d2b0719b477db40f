package server

import (
	"net/http"

	"github.com/entrhq/browserapi/pkg/actions"
	"github.com/entrhq/browserapi/pkg/metrics"
	"github.com/entrhq/browserapi/pkg/types"
)

// InitRequest is the body of the init endpoint.
type InitRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.session.Health() {
		respondJSON(w, http.StatusOK, types.HealthStatus{Status: types.StatusHealthy, Service: s.service})
		return
	}
	respondJSON(w, http.StatusInternalServerError, types.HealthStatus{Status: types.StatusUnhealthy, Service: s.service})
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if status, err := decodeJSONBody(w, r, &req, true); err != nil {
		respondJSON(w, status, types.HealthStatus{Status: types.StatusError, Message: err.Error()})
		return
	}

	result, err := s.session.Init(r.Context(), req.APIKey)
	metrics.CountInit(err == nil)
	if err != nil {
		s.logger.Errorf("Init failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, types.HealthStatus{Status: types.StatusError, Message: result.Message})
		return
	}

	respondJSON(w, http.StatusOK, types.HealthStatus{
		Status:  types.StatusHealthy,
		Service: s.service,
		Message: result.Message,
	})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	result := s.session.Shutdown(r.Context())
	respondJSON(w, http.StatusOK, types.HealthStatus{
		Status:  result.Status,
		Service: s.service,
		Message: result.Message,
	})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req actions.NavigateRequest
	if !s.decodeAction(w, r, &req, true) {
		return
	}
	s.respondAction(w, s.dispatcher.Navigate(r.Context(), req))
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	var req struct{}
	if !s.decodeAction(w, r, &req, true) {
		return
	}
	s.respondAction(w, s.dispatcher.Screenshot(r.Context()))
}

func (s *Server) handleAct(w http.ResponseWriter, r *http.Request) {
	var req actions.ActRequest
	if !s.decodeAction(w, r, &req, true) {
		return
	}
	s.respondAction(w, s.dispatcher.Act(r.Context(), req))
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req actions.ExtractRequest
	if !s.decodeAction(w, r, &req, true) {
		return
	}
	s.respondAction(w, s.dispatcher.Extract(r.Context(), req))
}

func (s *Server) handleConvertSVG(w http.ResponseWriter, r *http.Request) {
	var req actions.ConvertRequest
	if !s.decodeAction(w, r, &req, true) {
		return
	}
	s.respondAction(w, s.dispatcher.Convert(r.Context(), req))
}

// decodeAction decodes an action body, answering with an ActionResult
// shaped error when the body is unusable.
func (s *Server) decodeAction(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	status, err := decodeJSONBody(w, r, dst, allowEmpty)
	if err == nil {
		return true
	}
	s.logger.Warnf("Rejected %s body: %v", r.URL.Path, err)
	respondJSON(w, status, types.NewFailure("Invalid request body", err.Error()))
	return false
}

func (s *Server) respondAction(w http.ResponseWriter, resp actions.Response) {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	respondJSON(w, status, resp.Result)
}
