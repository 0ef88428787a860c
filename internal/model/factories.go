package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/utils"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// RandomSnapshot generates a plausible conversation snapshot for testing.
func RandomSnapshot(turns int) datatypes.JSON {
	type turn struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}
	out := make([]turn, 0, turns)
	for i := 0; i < turns; i++ {
		role := "assistant"
		if i%2 == 0 {
			role = "customer"
		}
		out = append(out, turn{Role: role, Text: gofakeit.Sentence(8)})
	}
	bytes, _ := json.Marshal(out)
	return datatypes.JSON(bytes)
}

// NewHandoff creates a Handoff with default fake data. The first override,
// when provided, replaces the identity and state fields.
func NewHandoff(overrideDefaults ...*Handoff) *Handoff {
	base := &Handoff{
		HandoffID:            uuid.NewString(),
		TenantID:             "tenant_" + gofakeit.LetterN(10),
		ConversationRef:      gofakeit.UUID(),
		Reason:               gofakeit.Sentence(4),
		Status:               HandoffStatusPending,
		ConversationSnapshot: RandomSnapshot(gofakeit.Number(0, 6)),
		RequestedAt:          utils.Now(),
		CreatedAt:            utils.Now(),
		UpdatedAt:            utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.HandoffID != "" {
			base.HandoffID = ovr.HandoffID
		}
		if ovr.TenantID != "" {
			base.TenantID = ovr.TenantID
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.AssignedAgentID != "" {
			base.AssignedAgentID = ovr.AssignedAgentID
		}
		if ovr.ConversationRef != "" {
			base.ConversationRef = ovr.ConversationRef
		}
		if ovr.Reason != "" {
			base.Reason = ovr.Reason
		}
		if ovr.ContactEmail != "" {
			base.ContactEmail = ovr.ContactEmail
		}
		if !ovr.RequestedAt.IsZero() {
			base.RequestedAt = ovr.RequestedAt
		}
		if ovr.AssignedAt != nil {
			base.AssignedAt = ovr.AssignedAt
		}
		if ovr.ResolvedAt != nil {
			base.ResolvedAt = ovr.ResolvedAt
		}
	}

	return base
}

// NewHandoffMessage creates a HandoffMessage with default fake data.
func NewHandoffMessage(overrideDefaults ...*HandoffMessage) *HandoffMessage {
	base := &HandoffMessage{
		MessageID:  uuid.NewString(),
		HandoffID:  uuid.NewString(),
		TenantID:   "tenant_" + gofakeit.LetterN(10),
		SenderKind: SenderCustomer,
		Content:    gofakeit.Sentence(10),
		Seq:        int64(gofakeit.Number(1, 100)),
		SentAt:     utils.Now(),
		CreatedAt:  utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.MessageID != "" {
			base.MessageID = ovr.MessageID
		}
		if ovr.HandoffID != "" {
			base.HandoffID = ovr.HandoffID
		}
		if ovr.TenantID != "" {
			base.TenantID = ovr.TenantID
		}
		if ovr.SenderKind != "" {
			base.SenderKind = ovr.SenderKind
		}
		if ovr.SenderID != "" {
			base.SenderID = ovr.SenderID
		}
		if ovr.Content != "" {
			base.Content = ovr.Content
		}
		if ovr.Seq != 0 {
			base.Seq = ovr.Seq
		}
		if !ovr.SentAt.IsZero() {
			base.SentAt = ovr.SentAt
		}
	}

	return base
}

// NewDirectoryAgent creates an Agent with default fake data.
func NewDirectoryAgent(overrideDefaults ...*Agent) *Agent {
	base := &Agent{
		AgentID:      "agent_" + gofakeit.LetterN(8),
		TenantID:     "tenant_" + gofakeit.LetterN(10),
		Name:         gofakeit.Name(),
		Availability: AgentAvailable,
		ActiveLoad:   0,
		Capacity:     int32(gofakeit.Number(1, 5)),
		CreatedAt:    utils.Now(),
		UpdatedAt:    utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.AgentID != "" {
			base.AgentID = ovr.AgentID
		}
		if ovr.TenantID != "" {
			base.TenantID = ovr.TenantID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Availability != "" {
			base.Availability = ovr.Availability
		}
		if ovr.ActiveLoad != 0 {
			base.ActiveLoad = ovr.ActiveLoad
		}
		if ovr.Capacity != 0 {
			base.Capacity = ovr.Capacity
		}
	}

	return base
}
