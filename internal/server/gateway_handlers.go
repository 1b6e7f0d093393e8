package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// --- conversations ---

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, s.chatLog.Conversations())
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.chatLog.Conversation(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	JSON(w, http.StatusOK, conv)
}

// --- auto-reply ---

func (s *Server) getAutoReply(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{"active": s.responder.Active()})
}

func (s *Server) setAutoReply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active bool `json:"active"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.responder.SetActive(body.Active)
	JSON(w, http.StatusOK, map[string]bool{"active": body.Active})
}

// --- send ---

func (s *Server) sendText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Instance string `json:"instance"`
		To       string `json:"to"`
		Text     string `json:"text"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.To == "" || body.Text == "" {
		Error(w, http.StatusBadRequest, "to and text are required")
		return
	}
	if body.Instance == "" {
		body.Instance = s.cfg.Gateway.DefaultInstance
	}
	res, err := s.gateway.SendText(r.Context(), body.Instance, body.To, body.Text)
	if err != nil {
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, res)
}

// sendMass fans one text out to an explicit recipient list or to every
// contact in a group. A stored text can be referenced by text_id instead of
// an inline body.
func (s *Server) sendMass(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Instance   string   `json:"instance"`
		Text       string   `json:"text"`
		TextID     int64    `json:"text_id"`
		Recipients []string `json:"recipients"`
		GroupID    int64    `json:"group_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Instance == "" {
		body.Instance = s.cfg.Gateway.DefaultInstance
	}

	if body.Text == "" && body.TextID != 0 {
		if s.store == nil {
			Error(w, http.StatusBadRequest, "text_id requires a store")
			return
		}
		t, err := s.store.GetText(r.Context(), body.TextID)
		if err != nil {
			Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if t == nil {
			Error(w, http.StatusNotFound, "text not found")
			return
		}
		body.Text = t.Content
	}
	if body.Text == "" {
		Error(w, http.StatusBadRequest, "text or text_id is required")
		return
	}

	recipients := body.Recipients
	if len(recipients) == 0 && body.GroupID != 0 {
		if s.store == nil {
			Error(w, http.StatusBadRequest, "group_id requires a store")
			return
		}
		contacts, err := s.store.ListContactsByGroup(r.Context(), body.GroupID)
		if err != nil {
			Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, c := range contacts {
			recipients = append(recipients, c.Phone)
		}
	}
	if len(recipients) == 0 {
		Error(w, http.StatusBadRequest, "no recipients")
		return
	}

	report := s.broadcast.Send(r.Context(), body.Instance, body.Text, recipients)
	JSON(w, http.StatusOK, report)
}

// --- instances ---

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.gateway.FetchInstances(r.Context())
	if err != nil {
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, instances)
}

func (s *Server) createInstance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.gateway.CreateInstance(r.Context(), body.Name); err != nil {
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"name": body.Name})
}

func (s *Server) connectInstance(w http.ResponseWriter, r *http.Request) {
	qr, err := s.gateway.Connect(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, qr)
}

func (s *Server) instanceState(w http.ResponseWriter, r *http.Request) {
	state, err := s.gateway.ConnectionState(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"state": state})
}

func (s *Server) logoutInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.Logout(r.Context(), chi.URLParam(r, "name")); err != nil {
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.DeleteInstance(r.Context(), chi.URLParam(r, "name")); err != nil {
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
