package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"shopcraft.gg/internal/protocol"
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

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	commandSchema := compile("command.schema.json")
	replySchema := compile("reply.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"console",
	  "auth":{"token":"secret"}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"S1",
	  "server_name":"shopcraft",
	  "shop_count":3
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var command any
	_ = json.Unmarshal([]byte(`{
	  "type":"COMMAND",
	  "protocol_version":"1.0",
	  "id":"C1",
	  "command":"REMOVE",
	  "target":"all-admin"
	}`), &command)
	validate(commandSchema, command)

	var reply any
	_ = json.Unmarshal([]byte(`{
	  "type":"REPLY",
	  "protocol_version":"1.0",
	  "id":"C1",
	  "ok":true,
	  "messages":["About to remove 2 shop(s). Confirm to proceed."],
	  "shops":[{
	    "id":1,
	    "uuid":"5d9f2622-3f24-4ee1-8dbd-8e4a9c1f3a10",
	    "shop_type":"admin",
	    "object":"entity",
	    "name":"Tools",
	    "world":"overworld",
	    "pos":[12,64,-3],
	    "active":true
	  }],
	  "stats":{
	    "shops":3,
	    "active_shops":2,
	    "ui_sessions":1,
	    "tracked_mobs":2,
	    "active_ai_chunks":1,
	    "ai_avg_millis":0.2,
	    "save_flushes":4,
	    "dirty":false
	  },
	  "audit":[{
	    "seq":1,
	    "tick":120,
	    "kind":"create",
	    "shop_id":1,
	    "shop_uuid":"5d9f2622-3f24-4ee1-8dbd-8e4a9c1f3a10",
	    "shop_type":"admin",
	    "detail":""
	  }]
	}`), &reply)
	validate(replySchema, reply)
}

func TestDecodeBase_RoutesByType(t *testing.T) {
	b, err := json.Marshal(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "console",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if base.Type != protocol.TypeHello {
		t.Fatalf("type = %q, want HELLO", base.Type)
	}
	if base.ProtocolVersion != protocol.Version {
		t.Fatalf("protocol_version = %q, want %q", base.ProtocolVersion, protocol.Version)
	}
}
