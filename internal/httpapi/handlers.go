package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/usecase"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/utils"
)

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.NewFatal(apperrors.ErrBadRequest, "malformed request body: %v", err)
	}
	return nil
}

type requestHandoffBody struct {
	ConversationRef     string          `json:"conversation_ref"`
	Reason              string          `json:"reason"`
	Snapshot            json.RawMessage `json:"snapshot"`
	ContactEmail        string          `json:"contact_email"`
	LastCustomerMessage string          `json:"last_customer_message"`
}

func (s *Server) handleRequestHandoff(w http.ResponseWriter, r *http.Request) {
	var body requestHandoffBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	handoff, err := s.service.RequestHandoff(r.Context(), usecase.RequestHandoffInput{
		ConversationRef:     body.ConversationRef,
		Reason:              body.Reason,
		Snapshot:            body.Snapshot,
		ContactEmail:        body.ContactEmail,
		LastCustomerMessage: body.LastCustomerMessage,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, handoff)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	handoffs, err := s.service.ListPending(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if handoffs == nil {
		handoffs = []model.Handoff{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"handoffs": handoffs})
}

type pickUpBody struct {
	AgentID string `json:"agent_id"`
}

func (s *Server) handlePickUp(w http.ResponseWriter, r *http.Request) {
	var body pickUpBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	handoff, err := s.service.PickUp(r.Context(), r.PathValue("id"), body.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, handoff)
}

type sendMessageBody struct {
	SenderKind model.SenderKind `json:"sender_kind"`
	SenderID   string           `json:"sender_id"`
	Content    string           `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	message, err := s.service.SendMessage(r.Context(), r.PathValue("id"), body.SenderKind, body.SenderID, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, message)
}

type resolveBody struct {
	ResolvedBy string `json:"resolved_by"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body resolveBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	handoff, err := s.service.Resolve(r.Context(), r.PathValue("id"), body.ResolvedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, handoff)
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	handoff, err := s.service.Expire(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, handoff)
}

// handleGetSnapshot serves the polling fallback: status plus messages past
// the caller's cursor, read from the store in one place so push and poll
// consumers observe identical data.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sinceSeq, err := parseInt64(query.Get("since_seq"))
	if err != nil {
		writeError(w, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid since_seq"))
		return
	}
	limit, _ := strconv.Atoi(query.Get("limit"))

	snapshot, err := s.service.GetSnapshot(r.Context(), r.PathValue("id"), sinceSeq, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if snapshot.Messages == nil {
		snapshot.Messages = []model.HandoffMessage{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, snapshot)
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var input usecase.RegisterAgentInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, err)
		return
	}

	agent, err := s.service.RegisterAgent(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, agent)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.service.GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, agent)
}

type setAvailabilityBody struct {
	Availability model.AgentAvailability `json:"availability"`
}

func (s *Server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	var body setAvailabilityBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	agent, err := s.service.SetAvailability(r.Context(), r.PathValue("id"), body.Availability)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, agent)
}

type captureContactBody struct {
	Email   string `json:"email"`
	Message string `json:"message"`
	Note    string `json:"note"`
}

func (s *Server) handleCaptureContact(w http.ResponseWriter, r *http.Request) {
	var body captureContactBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	handoff, err := s.service.CaptureContact(r.Context(), body.Email, body.Message, body.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, handoff)
}

func parseInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
