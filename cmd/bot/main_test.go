package main

import (
	"encoding/json"
	"testing"

	"voxelworlds.ai/internal/protocol"
)

func TestMessageFor(t *testing.T) {
	if m, ok := messageFor("goto alpha").(protocol.GotoMsg); !ok || m.World != "alpha" {
		t.Fatalf("goto: %#v", messageFor("goto alpha"))
	}
	if m, ok := messageFor("/world tp alpha").(protocol.LineMsg); !ok || m.Line != "world tp alpha" {
		t.Fatalf("line: %#v", messageFor("/world tp alpha"))
	}
	if m, ok := messageFor("complete world t").(protocol.CompleteMsg); !ok || m.Line != "world t" {
		t.Fatalf("complete: %#v", messageFor("complete world t"))
	}
}

func TestDescribe(t *testing.T) {
	b, _ := json.Marshal(protocol.TeleportMsg{Type: protocol.TypeTeleport, World: "alpha", Pos: [3]float64{1, 64, -2.5}, Yaw: 90})
	got, ok := describe(b)
	if !ok || got != "TELEPORT alpha 1 64 -2.5 yaw=90 pitch=0" {
		t.Fatalf("teleport: %q", got)
	}
	b, _ = json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: "E_NAME_TAKEN", Message: "steve"})
	if got, _ := describe(b); got != "ERROR E_NAME_TAKEN: steve" {
		t.Fatalf("error: %q", got)
	}
	if _, ok := describe([]byte(`{"type":"NOPE"}`)); ok {
		t.Fatalf("unknown type should be skipped")
	}
}
