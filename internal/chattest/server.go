// Package chattest is an in-process stand-in for the donation chat backend:
// the history endpoint and the websocket room channel, enough to drive a
// real client end to end in tests and local development.
package chattest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/umar/donaty-chat/internal/auth"
	"github.com/umar/donaty-chat/internal/models"
)

type Config struct {
	Secret string
	// CanJoin decides room access. Nil admits everyone.
	CanJoin func(claims *auth.Claims, roomID string) bool
	// Now stamps new messages. Nil uses time.Now.
	Now func() time.Time
	// CORSOrigin, when set, enables CORS for browser clients.
	CORSOrigin string
}

type Server struct {
	secret  string
	canJoin func(claims *auth.Claims, roomID string) bool
	hub     *Hub
	store   *messageStore
	router  *mux.Router
}

func NewServer(cfg Config) *Server {
	s := &Server{
		secret:  cfg.Secret,
		hub:     NewHub(),
		store:   newMessageStore(cfg.Now),
		canJoin: cfg.CanJoin,
	}

	router := mux.NewRouter()
	router.Use(Logging)
	if cfg.CORSOrigin != "" {
		router.Use(CORS(cfg.CORSOrigin))
	}
	router.HandleFunc("/health", s.health).Methods("GET", "OPTIONS")
	router.HandleFunc("/ws", s.serveWS).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware(cfg.Secret))
	api.HandleFunc("/chat/{id}", s.history).Methods("GET")

	s.router = router
	go s.hub.Run()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// IssueToken signs a one-hour token for a test identity.
func (s *Server) IssueToken(userID, name string, role models.Role) (string, error) {
	return auth.GenerateToken(userID, name, role, s.secret, time.Hour)
}

// Seed stores messages as if they had been sent before.
func (s *Server) Seed(msgs ...models.Message) {
	s.store.Append(msgs...)
}

func (s *Server) Messages(roomID string) []models.Message {
	return s.store.List(roomID)
}

// DisconnectAll drops every live connection.
func (s *Server) DisconnectAll() {
	s.hub.DisconnectAll()
}

// Members counts the live connections joined to roomID.
func (s *Server) Members(roomID string) int {
	return s.hub.RoomSize(roomID)
}

func (s *Server) Connections() int {
	return s.hub.Count()
}

func (s *Server) Shutdown() {
	s.hub.Shutdown()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chat-stub",
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	claims := auth.ClaimsFromContext(r.Context())
	if !s.allowed(claims, roomID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"msg": "No autorizado en esta sala"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": s.store.List(roomID)})
}

func (s *Server) allowed(claims *auth.Claims, roomID string) bool {
	return s.canJoin == nil || (claims != nil && s.canJoin(claims, roomID))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
