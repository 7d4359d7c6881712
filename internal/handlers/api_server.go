// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/auth"
	"github.com/jason-s-yu/moviematch/internal/middleware"
	"github.com/jason-s-yu/moviematch/internal/room"
)

// RoomServer serves the room API on top of an Engine.
type RoomServer struct {
	Engine *room.Engine
	Seats  *auth.Issuer
	Log    *logrus.Logger

	// SecureCookies marks the seat cookie Secure; set in production.
	SecureCookies bool
}

// NewRoomServer wires the engine and seat issuer.
func NewRoomServer(engine *room.Engine, seats *auth.Issuer, logger *logrus.Logger) *RoomServer {
	return &RoomServer{Engine: engine, Seats: seats, Log: logger}
}

// Router mounts every route with logging, panic recovery, the /ping
// heartbeat and CORS for origins.
func (s *RoomServer) Router(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LogMiddleware(s.Log))
	r.Use(chimw.Recoverer)

	r.Use(chimw.Heartbeat("/ping"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", s.CreateRoomHandler)
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", s.GetRoomHandler)
			r.Post("/join", s.JoinRoomHandler)
			r.Post("/movies", s.AddMoviesHandler)
			r.Post("/start", s.StartGameHandler)
			r.Post("/vote", s.VoteHandler)
			r.Post("/timeout", s.TimeoutHandler)
			r.Post("/advance", s.AdvanceHandler)
			r.Get("/results", s.ResultsHandler)
			r.Post("/roulette", s.RouletteHandler)
			r.Post("/select", s.SelectHandler)
			r.Post("/resolve", s.ResolveHandler)
			r.Post("/close", s.CloseRoomHandler)
		})
	})
	return r
}
