package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	// client -> server
	TypeHello    = "HELLO"
	TypeGoto     = "GOTO"
	TypeAuth     = "AUTH"
	TypeLine     = "LINE"
	TypeComplete = "COMPLETE"

	// server -> client
	TypeWelcome     = "WELCOME"
	TypeGameMode    = "GAME_MODE"
	TypeTeleport    = "TELEPORT"
	TypeText        = "TEXT"
	TypeError       = "ERROR"
	TypeCompletions = "COMPLETIONS"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
