// Package handoff classifies conversational intent and decides when control
// of a conversation moves between specialist handlers.
package handoff

import (
	"strings"

	"github.com/platefulhq/plateful-backend/internal/conversation"
	"github.com/platefulhq/plateful-backend/pkg/enums"
)

// handoffThreshold is the classification confidence above which a transfer
// is proposed.
const handoffThreshold = 0.6

// intentVocabulary maps each intent to its trigger terms. Order matters:
// ties between equally scored intents resolve to the earlier declaration.
var intentVocabulary = []struct {
	intent  enums.Intent
	terms   []string
	handler enums.HandlerType
}{
	{enums.IntentNewOrder, []string{"order", "want", "get", "buy", "pizza", "burger", "food"}, enums.HandlerOrder},
	{enums.IntentOrderStatus, []string{"status", "where", "track", "eta", "when"}, enums.HandlerKitchen},
	{enums.IntentModifyOrder, []string{"change", "modify", "update", "add to"}, enums.HandlerOrder},
	{enums.IntentCancelOrder, []string{"cancel", "nevermind", "don't want"}, enums.HandlerSupport},
	{enums.IntentComplaint, []string{"complaint", "problem", "issue", "wrong", "bad", "cold"}, enums.HandlerSupport},
	{enums.IntentRefundRequest, []string{"refund", "money back", "return"}, enums.HandlerSupport},
	{enums.IntentDeliveryIssue, []string{"delivery", "driver", "address", "location"}, enums.HandlerDelivery},
}

// Classification is the result of scoring a message against the vocabulary.
type Classification struct {
	Intent     enums.Intent
	Confidence float64
	Handler    enums.HandlerType
}

// Decision says whether a conversation should transfer, and where.
type Decision struct {
	Transfer bool
	Target   enums.HandlerType
	Reason   string
}

type Router struct{}

func NewRouter() *Router {
	return &Router{}
}

// ClassifyIntent scores the fixed vocabulary against the message. Confidence
// is matched terms over three, capped at 1.0. A message matching nothing
// yields a low-confidence general inquiry kept with the orchestrator.
func (r *Router) ClassifyIntent(text string) Classification {
	lowered := strings.ToLower(text)

	best := Classification{
		Intent:     enums.IntentGeneralInquiry,
		Confidence: 0.5,
		Handler:    enums.HandlerOrchestrator,
	}
	bestScore := 0

	for _, candidate := range intentVocabulary {
		score := 0
		for _, term := range candidate.terms {
			if strings.Contains(lowered, term) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			confidence := float64(score) / 3
			if confidence > 1.0 {
				confidence = 1.0
			}
			best = Classification{
				Intent:     candidate.intent,
				Confidence: confidence,
				Handler:    candidate.handler,
			}
		}
	}

	return best
}

// DecideHandoff classifies the newest user message and proposes a transfer
// only when confidence clears the threshold and the suggested handler differs
// from the one currently active.
func (r *Router) DecideHandoff(conv *conversation.Conversation) Decision {
	if conv == nil {
		return Decision{}
	}
	last, ok := conv.LastUserMessage()
	if !ok {
		return Decision{}
	}

	classified := r.ClassifyIntent(last.Content)
	if classified.Confidence > handoffThreshold && classified.Handler != conv.ActiveHandler {
		return Decision{
			Transfer: true,
			Target:   classified.Handler,
			Reason:   "intent classified as " + classified.Intent.String(),
		}
	}
	return Decision{}
}
