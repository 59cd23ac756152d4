package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mjRam27/Explorix/internal/api/chat"
	"github.com/mjRam27/Explorix/internal/api/itinerary"
	"github.com/mjRam27/Explorix/internal/api/poi"
)

// Config contains dependencies needed for the router setup
type Config struct {
	ChatHandler            *chat.Handler
	ItineraryHandler       *itinerary.Handler
	POIHandler             *poi.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected to be
// applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public catalog routes
		r.Group(func(r chi.Router) {
			r.Get("/pois", cfg.POIHandler.ListPOIs)
			r.Get("/pois/nearby", cfg.POIHandler.ListNearbyPOIs)
		})

		// Routes under this group require JWT authentication
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/chat", cfg.ChatHandler.ChatTurn)

			r.Post("/itinerary/from-text", cfg.ItineraryHandler.SaveFromText)
			r.Post("/itinerary/from-draft", cfg.ItineraryHandler.SaveFromDraft)
			r.Get("/itinerary/my", cfg.ItineraryHandler.ListMine)
			r.Get("/itinerary/{id}", cfg.ItineraryHandler.GetByID)
		})
	})

	return r
}
