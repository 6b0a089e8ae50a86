package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platefulhq/plateful-backend/api/controllers"
	"github.com/platefulhq/plateful-backend/api/middleware"
	"github.com/platefulhq/plateful-backend/internal/conversation"
	"github.com/platefulhq/plateful-backend/internal/dispatch"
	"github.com/platefulhq/plateful-backend/internal/handler"
	"github.com/platefulhq/plateful-backend/internal/inventory"
	"github.com/platefulhq/plateful-backend/internal/kitchen"
	"github.com/platefulhq/plateful-backend/internal/order"
	"github.com/platefulhq/plateful-backend/internal/support"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	conversations *conversation.Store,
	pipeline *handler.Pipeline,
	orderService *order.Service,
	inventoryEngine *inventory.Engine,
	kitchenQueue *kitchen.Queue,
	dispatchEngine *dispatch.Engine,
	supportService *support.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", controllers.StartConversation(conversations, logg))
			r.Get("/{conversationID}", controllers.ConversationStatus(conversations, logg))
			r.Post("/{conversationID}/messages", controllers.SendMessage(pipeline, logg))
			r.Post("/{conversationID}/end", controllers.EndConversation(conversations, logg))
		})

		r.Post("/handlers/{handler}/commands/{command}", controllers.ExecuteCommand(pipeline, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/menu", controllers.Menu(orderService, logg))
			r.Post("/quote", controllers.QuoteOrder(orderService, logg))
			r.Post("/", controllers.CreateOrder(orderService, logg))
			r.Get("/{orderID}", controllers.GetOrder(orderService, logg))
			r.Patch("/{orderID}/status", controllers.UpdateOrderStatus(orderService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/availability", controllers.CheckAvailability(inventoryEngine, logg))
			r.Get("/low-stock", controllers.LowStock(inventoryEngine, logg))
			r.Get("/substitutes", controllers.SuggestSubstitutes(inventoryEngine, logg))
			r.Post("/reservations", controllers.ReserveStock(inventoryEngine, logg))
			r.Delete("/reservations/{reservationID}", controllers.ReleaseReservation(inventoryEngine, logg))
			r.Post("/items/{itemID}/stock", controllers.AdjustStock(inventoryEngine, logg))
		})

		r.Route("/kitchen", func(r chi.Router) {
			r.Get("/status", controllers.KitchenStatus(kitchenQueue, logg))
			r.Post("/estimate", controllers.EstimatePrepTime(kitchenQueue, logg))
			r.Post("/orders/{orderID}", controllers.QueueOrder(kitchenQueue, logg))
			r.Patch("/orders/{orderID}/status", controllers.UpdateTicketStatus(kitchenQueue, logg))
			r.Get("/orders/{orderID}/eta", controllers.OrderEta(kitchenQueue, logg))
			r.Post("/orders/{orderID}/prioritize", controllers.PrioritizeOrder(kitchenQueue, logg))
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/drivers", controllers.AvailableDrivers(dispatchEngine, logg))
			r.Get("/drivers/{driverID}", controllers.DriverLocation(dispatchEngine, logg))
			r.Patch("/drivers/{driverID}/status", controllers.UpdateDriverStatus(dispatchEngine, logg))
			r.Post("/orders/{orderID}/assign", controllers.AssignDelivery(dispatchEngine, logg))
			r.Get("/orders/{orderID}/eta", controllers.DeliveryEta(dispatchEngine, logg))
			r.Post("/orders/{orderID}/issues", controllers.ReportDeliveryIssue(dispatchEngine, logg))
			r.Get("/issues/{ticketID}", controllers.DeliveryIssue(dispatchEngine, logg))
		})

		r.Route("/support", func(r chi.Router) {
			r.Get("/orders/{orderID}/timeline", controllers.OrderTimeline(supportService, logg))
			r.Post("/orders/{orderID}/refunds", controllers.IssueRefund(supportService, logg))
			r.Post("/orders/{orderID}/escalations", controllers.EscalateOrder(supportService, logg))
			r.Post("/credits", controllers.ApplyCredit(supportService, logg))
			r.Post("/tickets", controllers.CreateTicket(supportService, logg))
			r.Get("/customers/{customerID}", controllers.CustomerHistory(supportService, logg))
			r.Post("/resolutions", controllers.ApplyResolution(supportService, logg))
		})
	})

	return r
}
