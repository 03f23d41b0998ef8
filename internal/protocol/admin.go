package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ClientName      string     `json:"client_name"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ServerName      string `json:"server_name,omitempty"`
	ShopCount       int    `json:"shop_count"`
}

// Command names carried by CommandMsg.Command.
const (
	CmdList    = "LIST"
	CmdStats   = "STATS"
	CmdRemove  = "REMOVE"
	CmdConfirm = "CONFIRM"
	CmdAudit   = "AUDIT"
	CmdSave    = "SAVE"
)

// COMMAND (client -> server)
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Command         string `json:"command"`

	// REMOVE: target selector ("own" is rejected for console senders).
	Target string `json:"target,omitempty"`

	// AUDIT: maximum entries to return.
	Limit int `json:"limit,omitempty"`
}

// REPLY (server -> client)
type ReplyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	OK              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`

	Messages []string      `json:"messages,omitempty"`
	Shops    []ShopSummary `json:"shops,omitempty"`
	Stats    *StatsPayload `json:"stats,omitempty"`
	Audit    []AuditEntry  `json:"audit,omitempty"`
}

type ShopSummary struct {
	ID        int    `json:"id"`
	UUID      string `json:"uuid"`
	ShopType  string `json:"shop_type"`
	Object    string `json:"object"`
	Name      string `json:"name,omitempty"`
	World     string `json:"world,omitempty"`
	Pos       [3]int `json:"pos,omitempty"`
	OwnerUUID string `json:"owner_uuid,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`
	Active    bool   `json:"active"`
}

type StatsPayload struct {
	Shops          int     `json:"shops"`
	ActiveShops    int     `json:"active_shops"`
	UISessions     int     `json:"ui_sessions"`
	TrackedMobs    int     `json:"tracked_mobs"`
	ActiveAIChunks int     `json:"active_ai_chunks"`
	AIAvgMillis    float64 `json:"ai_avg_millis"`
	SaveFlushes    uint64  `json:"save_flushes"`
	Dirty          bool    `json:"dirty"`
}

type AuditEntry struct {
	Seq      int64  `json:"seq"`
	Tick     uint64 `json:"tick"`
	Kind     string `json:"kind"`
	ShopID   int    `json:"shop_id"`
	ShopUUID string `json:"shop_uuid"`
	ShopType string `json:"shop_type"`
	Detail   string `json:"detail,omitempty"`
}
