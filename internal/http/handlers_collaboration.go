package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListCollaborations(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Collaborations.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]collaborationResponse, 0, len(list))
	for _, c := range list {
		out = append(out, newCollaborationResponse(c))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	invitee, err := p.Required("invitee_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Collaborations.Invite(r.Context(), userID(r), invitee)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newCollaborationResponse(c)).Write(w)
}

// handleRespond accepts {"accept": true|false} or {"status": "accepted"|"rejected"}.
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	var accept bool
	switch status := strings.ToLower(p.Get("status")); status {
	case "accepted", "accept":
		accept = true
	case "rejected", "reject":
		accept = false
	case "":
		if !p.Has("accept") {
			UnprocessableEntityError("accept: value is required").Write(w)
			return
		}
		accept = p.Bool("accept")
	default:
		UnprocessableEntityError("status: must be accepted or rejected").Write(w)
		return
	}

	c, err := s.svc.Collaborations.Respond(r.Context(), chi.URLParam(r, "id"), userID(r), accept)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(newCollaborationResponse(c)).Write(w)
}

func (s *Server) handleRemoveCollaboration(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Collaborations.Remove(r.Context(), chi.URLParam(r, "id"), userID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
