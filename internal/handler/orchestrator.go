package handler

import (
	"context"

	"github.com/platefulhq/plateful-backend/internal/handoff"
	"github.com/platefulhq/plateful-backend/internal/menu"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/genai"
)

const orchestratorSystem = `You are the front-of-house assistant for a cloud kitchen.
Greet customers, answer menu and hours questions, and keep the conversation moving.
Specialists handle orders, kitchen timing, delivery, and support; you cover everything else.
Be brief and friendly.`

// OrchestratorCommand enumerates the orchestrator's operational commands.
type OrchestratorCommand string

const (
	OrchestratorClassifyIntent OrchestratorCommand = "classify_intent"
	OrchestratorGetMenuInfo    OrchestratorCommand = "get_menu_info"
	OrchestratorGetHours       OrchestratorCommand = "get_hours"
)

// MenuInfo is the lightweight menu summary the orchestrator serves itself.
type MenuInfo struct {
	Categories   []string    `json:"categories"`
	PopularItems []menu.Item `json:"popular_items"`
}

// Hours is the advertised operating schedule.
type Hours struct {
	MondayFriday     string `json:"monday_friday"`
	SaturdaySunday   string `json:"saturday_sunday"`
	CurrentlyServing bool   `json:"currently_serving"`
}

// Orchestrator greets customers, answers general inquiries, and classifies
// intent for routing.
type Orchestrator struct {
	responder
	router  *handoff.Router
	catalog *menu.Catalog
}

func NewOrchestrator(gen genai.Generator, router *handoff.Router, catalog *menu.Catalog, historySize int) *Orchestrator {
	return &Orchestrator{
		responder: responder{
			handlerType: enums.HandlerOrchestrator,
			system:      orchestratorSystem,
			gen:         gen,
			historySize: historySize,
		},
		router:  router,
		catalog: catalog,
	}
}

func (o *Orchestrator) Execute(ctx context.Context, command string, args Args) (any, error) {
	switch OrchestratorCommand(command) {
	case OrchestratorClassifyIntent:
		message, err := args.String("message")
		if err != nil {
			return nil, err
		}
		return o.router.ClassifyIntent(message), nil

	case OrchestratorGetMenuInfo:
		popular := []menu.Item{}
		for _, id := range []string{"pizza_pepperoni", "burger_cheese", "salad_caesar"} {
			if item, ok := o.catalog.Get(id); ok {
				popular = append(popular, item)
			}
		}
		return &MenuInfo{
			Categories:   []string{"pizza", "burgers", "salads", "drinks"},
			PopularItems: popular,
		}, nil

	case OrchestratorGetHours:
		return &Hours{
			MondayFriday:     "11:00 AM - 10:00 PM",
			SaturdaySunday:   "10:00 AM - 11:00 PM",
			CurrentlyServing: true,
		}, nil

	default:
		return nil, unknownCommand(o.handlerType, command)
	}
}
