package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/inovacc/pagewright/internal/admin"
	"github.com/inovacc/pagewright/internal/model"
	"github.com/inovacc/pagewright/internal/upload"
)

// maxUploadSize bounds one image upload.
const maxUploadSize = 10 << 20

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// APIResponse is a generic API response
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PublishError is the body of a rejected or failed publish.
type PublishError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("json encode error", "error", err)
	}
}

// jsonError writes a JSON error response
func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, status, APIResponse{Success: false, Error: message})
}

// apiError reports a failed content operation. Validation failures list the
// missing fields; store failures are logged and reported generically.
func (s *Server) apiError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		s.jsonResponse(w, status, APIResponse{
			Error: err.Error(),
			Data:  map[string]any{"missing": verr.Missing},
		})

		return
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("api request failed", "error", err)
		s.jsonError(w, genericError, status)

		return
	}

	s.jsonError(w, err.Error(), status)
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (model.Record, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.UseNumber()

	var rec model.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}

	if rec == nil {
		rec = model.Record{}
	}

	return rec, nil
}

// handleGetContent serves the aggregate content object. It is public: the
// live site reads it at runtime.
func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	snap, err := s.content.GetAllContent(r.Context())
	if err != nil {
		s.apiError(w, err)

		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")
	s.jsonResponse(w, http.StatusOK, snap)
}

func (s *Server) handleAPIGetSection(w http.ResponseWriter, r *http.Request, _ *admin.Session) {
	rec, err := s.content.GetSection(r.Context(), r.PathValue("name"))
	if err != nil {
		s.apiError(w, err)

		return
	}

	s.jsonResponse(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleAPISaveSection(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	rec, err := decodeRecord(w, r)
	if err != nil {
		s.jsonError(w, "invalid JSON body", http.StatusBadRequest)

		return
	}

	saved, err := s.ctrl.SaveSection(r.Context(), sess, r.PathValue("name"), rec)
	if err != nil {
		s.apiError(w, err)

		return
	}

	s.jsonResponse(w, http.StatusOK, APIResponse{Success: true, Message: "saved", Data: saved})
}

func (s *Server) handleAPIListItems(w http.ResponseWriter, r *http.Request, _ *admin.Session) {
	items, err := s.content.ListItems(r.Context(), r.PathValue("name"))
	if err != nil {
		s.apiError(w, err)

		return
	}

	if items == nil {
		items = []model.Record{}
	}

	s.jsonResponse(w, http.StatusOK, APIResponse{Success: true, Data: items})
}

func (s *Server) handleAPIGetItem(w http.ResponseWriter, r *http.Request, _ *admin.Session) {
	rec, err := s.content.GetItem(r.Context(), r.PathValue("name"), r.PathValue("id"))
	if err != nil {
		s.apiError(w, err)

		return
	}

	if rec == nil {
		s.apiError(w, admin.ErrNotFound)

		return
	}

	s.jsonResponse(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleAPICreateItem(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	rec, err := decodeRecord(w, r)
	if err != nil {
		s.jsonError(w, "invalid JSON body", http.StatusBadRequest)

		return
	}

	created, err := s.ctrl.AddItem(r.Context(), sess, r.PathValue("name"), rec)
	if err != nil {
		s.apiError(w, err)

		return
	}

	s.jsonResponse(w, http.StatusCreated, APIResponse{Success: true, Message: "created", Data: created})
}

func (s *Server) handleAPIUpdateItem(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	rec, err := decodeRecord(w, r)
	if err != nil {
		s.jsonError(w, "invalid JSON body", http.StatusBadRequest)

		return
	}

	updated, err := s.ctrl.EditItem(r.Context(), sess, r.PathValue("name"), r.PathValue("id"), rec)
	if err != nil {
		s.apiError(w, err)

		return
	}

	s.jsonResponse(w, http.StatusOK, APIResponse{Success: true, Message: "updated", Data: updated})
}

func (s *Server) handleAPIDeleteItem(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	if err := s.ctrl.DeleteItem(r.Context(), sess, r.PathValue("name"), r.PathValue("id")); err != nil {
		s.apiError(w, err)

		return
	}

	s.jsonResponse(w, http.StatusOK, APIResponse{Success: true, Message: "deleted"})
}

func (s *Server) handleAPIReorder(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	var body struct {
		IDs []string `json:"ids"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		s.jsonError(w, "invalid JSON body", http.StatusBadRequest)

		return
	}

	if err := s.ctrl.ReorderItems(r.Context(), sess, r.PathValue("name"), body.IDs); err != nil {
		s.apiError(w, err)

		return
	}

	s.jsonResponse(w, http.StatusOK, APIResponse{Success: true, Message: "reordered"})
}

// handleUpload takes a multipart "file" field and hands it to the image host.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, _ *admin.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.jsonResponse(w, http.StatusBadRequest, &upload.Result{Error: "no file received"})

		return
	}

	defer func() { _ = file.Close() }()

	res := s.ctrl.UploadImage(r.Context(), header.Filename, file)

	status := http.StatusOK

	switch {
	case res.Unavailable:
		status = http.StatusServiceUnavailable
	case !res.Success:
		status = http.StatusBadGateway
	}

	s.jsonResponse(w, status, res)
}

// handleSessionPublish is the panel's publish button.
func (s *Server) handleSessionPublish(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	s.BroadcastEvent(EventPublishStarted, "publishing", map[string]any{"by": sess.Email})

	resp, err := s.ctrl.Publish(r.Context(), sess)
	if err != nil {
		if !errors.Is(err, admin.ErrPublishInFlight) {
			s.BroadcastEvent(EventPublishFailed, err.Error(), nil)
		}

		s.writePublishError(w, err)

		return
	}

	s.BroadcastEvent(EventPublishFinished, resp.Message, resp)
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleTokenPublish is the trigger endpoint for bearer-token callers.
func (s *Server) handleTokenPublish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, PublishError{
			Error:   "Publishing unavailable",
			Message: "no publish target is configured",
		})

		return
	}

	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

	resp, err := s.publisher.Publish(r.Context(), strings.TrimSpace(token))
	if err != nil {
		s.writePublishError(w, err)

		return
	}

	s.BroadcastEvent(EventPublishFinished, resp.Message, resp)
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) writePublishError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	body := PublishError{Message: err.Error()}

	switch status {
	case http.StatusUnauthorized:
		body.Error = "Unauthorized"
	case http.StatusForbidden:
		body.Error = "Only admins can publish"
	case http.StatusConflict:
		body.Error = "Publish in progress"
	default:
		body.Error = "Publish failed"
	}

	s.jsonResponse(w, status, body)
}
