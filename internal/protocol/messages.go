package protocol

// HELLO (client -> server) opens a play session.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	World           string `json:"world,omitempty"`
	// Password, when set, must be the admin password; the player then
	// joins with the admin permission.
	Password string `json:"password,omitempty"`
}

// GOTO (client -> server) moves the player to another loaded world.
type GotoMsg struct {
	Type  string `json:"type"`
	World string `json:"world"`
}

// AUTH (client -> server) opens a console session.
type AuthMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Password        string `json:"password"`
}

// LINE (client -> server) is one console command line.
type LineMsg struct {
	Type string `json:"type"`
	Line string `json:"line"`
}

// COMPLETE (client -> server) asks for completions of a partial line.
type CompleteMsg struct {
	Type string `json:"type"`
	Line string `json:"line"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	World           string `json:"world,omitempty"`
	GameMode        string `json:"game_mode,omitempty"`
}

// GAME_MODE (server -> client)
type GameModeMsg struct {
	Type     string `json:"type"`
	GameMode string `json:"game_mode"`
}

// TELEPORT (server -> client)
type TeleportMsg struct {
	Type  string     `json:"type"`
	World string     `json:"world"`
	Pos   [3]float64 `json:"pos"`
	Yaw   float32    `json:"yaw"`
	Pitch float32    `json:"pitch"`
}

// TEXT (server -> client)
type TextMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// COMPLETIONS (server -> client) answers COMPLETE.
type CompletionsMsg struct {
	Type       string   `json:"type"`
	Line       string   `json:"line"`
	Candidates []string `json:"candidates"`
}
