package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	SessionDuration = 1 * time.Hour
	SessionCookie   = "session"
)

var ErrNoPassword = errors.New("GAME_PASSWORD environment variable not set")

// Session binds a logged-in peer to the room it asked for.
type Session struct {
	ID         string
	PlayerName string
	RoomCode   string
	CreatedAt  time.Time
}

type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	password string
	stop     chan struct{}
}

// NewSessionStore checks logins against password. An empty password turns
// authentication off and every websocket is admitted.
func NewSessionStore(password string) *SessionStore {
	ss := &SessionStore{
		sessions: make(map[string]*Session),
		password: password,
		stop:     make(chan struct{}),
	}
	// Cleanup expired sessions periodically
	go ss.cleanupExpired(5 * time.Minute)
	return ss
}

// Required reports whether peers must log in before connecting.
func (ss *SessionStore) Required() bool { return ss.password != "" }

func (ss *SessionStore) CreateSession(playerName, roomCode string) (*Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:         sessionID,
		PlayerName: playerName,
		RoomCode:   roomCode,
		CreatedAt:  time.Now(),
	}

	ss.mu.Lock()
	ss.sessions[sessionID] = session
	ss.mu.Unlock()
	return session, nil
}

func (ss *SessionStore) GetSession(sessionID string) (*Session, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	session, exists := ss.sessions[sessionID]
	if !exists || time.Since(session.CreatedAt) > SessionDuration {
		return nil, false
	}
	return session, true
}

func (ss *SessionStore) DeleteSession(sessionID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, sessionID)
}

func (ss *SessionStore) Close() { close(ss.stop) }

func (ss *SessionStore) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ss.stop:
			return
		case <-ticker.C:
		}
		ss.mu.Lock()
		now := time.Now()
		for id, session := range ss.sessions {
			if now.Sub(session.CreatedAt) > SessionDuration {
				delete(ss.sessions, id)
			}
		}
		ss.mu.Unlock()
	}
}

// FromRequest returns the session named by the request's cookie.
func (ss *SessionStore) FromRequest(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return ss.GetSession(c.Value)
}

func (ss *SessionStore) Authenticate(username, password string) (bool, error) {
	if !ss.Required() {
		return false, ErrNoPassword
	}
	if password != ss.password {
		return false, nil
	}
	if username == "" {
		return false, errors.New("username cannot be empty")
	}
	return true, nil
}

func generateSessionID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HandleLogin issues a session cookie for a correct password and room code.
func HandleLogin(ss *SessionStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			RoomCode string `json:"roomCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.RoomCode == "" {
			http.Error(w, "Room code is required", http.StatusBadRequest)
			return
		}

		authenticated, err := ss.Authenticate(req.Username, req.Password)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !authenticated {
			log.WithField("name", req.Username).Warn("Rejected login")
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		session, err := ss.CreateSession(req.Username, req.RoomCode)
		if err != nil {
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    session.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   int(SessionDuration / time.Second),
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"session": session.ID,
		})
	}
}
