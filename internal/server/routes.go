package server

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// Routes wires the relay's HTTP endpoints.
func Routes(mm *Matchmaking, ss *SessionStore, log logrus.FieldLogger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", HandleLogin(ss, log))
	mux.HandleFunc("/api/rooms", HandleRooms(mm))
	mux.HandleFunc("/ws", HandleWebSocket(mm, ss, log))
	return mux
}
