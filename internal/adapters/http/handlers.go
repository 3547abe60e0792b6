package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sourcepole/qgis-interlis-plugin/internal/application"
	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
	"github.com/sourcepole/qgis-interlis-plugin/internal/ports/input"
)

// Content types of generated documents.
const (
	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml"
	contentTypeGML  = "application/gml+xml"
)

// vrtFromConfigRequest is the body of POST /api/v1/vrt.
type vrtFromConfigRequest struct {
	DS     string          `json:"ds"`
	Config json.RawMessage `json:"config"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":        boolToStatus(details.Healthy),
		"ready":         details.Ready,
		"models_loaded": details.ModelsLoaded,
		"models_ready":  details.ModelsReady,
		"components":    details.Components,
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.registry.ListModels(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list models")
		return
	}

	response := make([]map[string]interface{}, len(models))
	for i := range models {
		status, _ := s.registry.GetModelStatus(r.Context(), models[i].ID)
		response[i] = formatModel(&models[i], status)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": response,
		"count":  len(models),
	})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	modelID := mux.Vars(r)["modelId"]

	m, err := s.registry.GetModel(r.Context(), modelID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	status, _ := s.registry.GetModelStatus(r.Context(), modelID)

	resp := formatModel(m, status)
	resp["topics"] = nonNil(m.Topics)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnums(w http.ResponseWriter, r *http.Request) {
	modelID := mux.Vars(r)["modelId"]

	enums, err := s.transform.Enums(r.Context(), modelID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_id": modelID,
		"enums":    enums,
		"count":    enums.Len(),
	})
}

func (s *Server) handleEnumsGML(w http.ResponseWriter, r *http.Request) {
	out, err := s.transform.EnumsGML(r.Context(), mux.Vars(r)["modelId"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeDocument(w, contentTypeGML, out)
}

func (s *Server) handleEmptyTransfer(w http.ResponseWriter, r *http.Request) {
	modelID := mux.Vars(r)["modelId"]

	out, err := s.transform.EmptyTransfer(r.Context(), modelID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", modelID+".xtf"))
	s.writeDocument(w, contentTypeXML, out)
}

func (s *Server) handleGenerateConfig(w http.ResponseWriter, r *http.Request) {
	var req input.GenerateRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.transform.GenerateConfig(r.Context(), mux.Vars(r)["modelId"], req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeDocument(w, contentTypeJSON, out)
}

func (s *Server) handleGenerateVRT(w http.ResponseWriter, r *http.Request) {
	reverse, err := parseReverse(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req input.GenerateRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.transform.GenerateVRT(r.Context(), mux.Vars(r)["modelId"], req, reverse)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeDocument(w, contentTypeXML, out)
}

func (s *Server) handleVRTFromConfig(w http.ResponseWriter, r *http.Request) {
	reverse, err := parseReverse(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req vrtFromConfigRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Config) == 0 {
		s.writeError(w, http.StatusBadRequest, "config is required")
		return
	}

	out, err := s.transform.VRTFromConfig(r.Context(), req.DS, req.Config, reverse)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeDocument(w, contentTypeXML, out)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncService.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(application.SyncCooldown.Seconds())))
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err, "request_id", RequestID(r.Context()))
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI document", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI document")
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	_, _ = w.Write(doc)
}

// decodeBody decodes an optional JSON body. An empty body leaves v unchanged.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseReverse(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("reverse")
	if v == "" {
		return false, nil
	}
	reverse, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New("invalid reverse parameter")
	}
	return reverse, nil
}

func formatModel(m *domain.ModelFile, status domain.ModelFileStatus) map[string]interface{} {
	return map[string]interface{}{
		"id":          m.ID,
		"name":        m.Name,
		"models":      nonNil(m.Models),
		"size":        m.Size,
		"class_count": m.ClassCount,
		"enum_count":  m.EnumCount,
		"status":      status,
		"ready":       status == domain.StatusReady,
		"loaded_at":   m.LoadedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// handleError maps domain errors to HTTP status codes.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestID(r.Context()))
		s.writeError(w, status, http.StatusText(status))
		return
	}
	s.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrModelParse), errors.Is(err, domain.ErrConfigLoad), errors.Is(err, domain.ErrNameCollision):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfigGeneration), errors.Is(err, domain.ErrLayerNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDocument(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
