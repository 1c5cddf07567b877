package net

// Relay control messages. They travel as websocket text frames; datagrams
// travel as binary frames and are never wrapped in JSON.

// Peer → Relay

type HelloMessage struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Room    string `json:"room"`
	Player  int    `json:"player"`
	Version int    `json:"version"`
}

// Relay → Peer

type WelcomeMessage struct {
	Type   string `json:"type"`
	Room   string `json:"room"`
	Player int    `json:"player"`
}

type PeerMessage struct {
	Type      string `json:"type"` // "paired", "left"
	Room      string `json:"room"`
	PeerName  string `json:"peerName"`
	Connected bool   `json:"connected"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	MsgHello   = "hello"
	MsgWelcome = "welcome"
	MsgPaired  = "paired"
	MsgLeft    = "left"
	MsgError   = "error"

	// RelayVersion must match between peer and relay.
	RelayVersion = 1
)
