package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelworlds.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: "steve", World: "alpha",
	})
	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: "op", Password: "hunter2",
	})
	validate(compile("goto.schema.json"), protocol.GotoMsg{Type: protocol.TypeGoto, World: "nether"})
	validate(compile("auth.schema.json"), protocol.AuthMsg{
		Type: protocol.TypeAuth, ProtocolVersion: protocol.Version, Password: "hunter2",
	})
	line := compile("line.schema.json")
	validate(line, protocol.LineMsg{Type: protocol.TypeLine, Line: "world list"})
	validate(line, protocol.CompleteMsg{Type: protocol.TypeComplete, Line: "world con"})
	validate(compile("game_mode.schema.json"), protocol.GameModeMsg{Type: protocol.TypeGameMode, GameMode: "CREATIVE"})
}

func TestSchemas_RejectBadHello(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "hello.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var v any
	_ = json.Unmarshal([]byte(`{"type":"HELLO","protocol_version":"1.0","name":""}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected empty name rejected")
	}
}
