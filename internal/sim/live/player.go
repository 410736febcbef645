package live

import (
	"encoding/json"

	"voxelworlds.ai/internal/protocol"
	"voxelworlds.ai/internal/worldcfg"
)

const outboxSize = 64

// Player is an online player. It is only touched from the primary context;
// the outbox is drained by the session writer.
type Player struct {
	name  string
	admin bool
	loc   worldcfg.Location
	mode  worldcfg.GameMode
	out   chan []byte
}

func newPlayer(name string, admin bool, loc worldcfg.Location) *Player {
	return &Player{
		name:  name,
		admin: admin,
		loc:   loc,
		mode:  worldcfg.Survival,
		out:   make(chan []byte, outboxSize),
	}
}

func (p *Player) Name() string                { return p.name }
func (p *Player) WorldName() string           { return p.loc.World }
func (p *Player) Location() worldcfg.Location { return p.loc }
func (p *Player) GameMode() worldcfg.GameMode { return p.mode }

func (p *Player) HasPermission(perm string) bool {
	return perm == worldcfg.PermAdmin && p.admin
}

// SetGameMode changes the mode and tells the client about it.
func (p *Player) SetGameMode(mode worldcfg.GameMode) {
	p.mode = mode
	p.Send(protocol.GameModeMsg{Type: protocol.TypeGameMode, GameMode: string(mode)})
}

// SendText delivers one line of text to the client.
func (p *Player) SendText(line string) {
	p.Send(protocol.TextMsg{Type: protocol.TypeText, Text: line})
}

// Outbox is the stream of encoded messages for the client.
func (p *Player) Outbox() <-chan []byte { return p.out }

// Send encodes msg onto the outbox. It drops the message when the client is
// not keeping up and is safe from any goroutine.
func (p *Player) Send(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case p.out <- b:
	default:
	}
}
