package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	SaveFile          string `yaml:"save_file"`
	AuditDBFile       string `yaml:"audit_db_file"`
	SaveDelayTicks    int    `yaml:"save_delay_ticks"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`

	Currency Currency `yaml:"currency"`
	AI       AI       `yaml:"ai"`

	ContainerCheckTicks     int `yaml:"container_check_ticks"`
	ConfirmationExpiryTicks int `yaml:"confirmation_expiry_ticks"`
}

type Currency struct {
	Item     string `yaml:"item"`
	MaxStack int    `yaml:"max_stack"`

	HighItem     string `yaml:"high_item"`
	HighValue    int    `yaml:"high_value"`
	HighMinCost  int    `yaml:"high_min_cost"`
	HighMaxStack int    `yaml:"high_max_stack"`
}

// HighEnabled mirrors the convention that a zero/empty high item disables the
// second denomination entirely.
func (c Currency) HighEnabled() bool {
	return c.HighItem != "" && c.HighValue > 0
}

type AI struct {
	ActivationTicks   int `yaml:"activation_ticks"`
	AIChunkRange      int `yaml:"ai_chunk_range"`
	GravityChunkRange int `yaml:"gravity_chunk_range"`
	GravityCheckTicks int `yaml:"gravity_check_ticks"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("config.yml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:        20,
		SaveFile:          "data/shopkeepers.sav",
		AuditDBFile:       "data/audit.db",
		SaveDelayTicks:    600,
		ShutdownTimeoutMs: 5000,
		Currency: Currency{
			Item:         "EMERALD",
			MaxStack:     64,
			HighItem:     "EMERALD_BLOCK",
			HighValue:    9,
			HighMinCost:  20,
			HighMaxStack: 64,
		},
		AI: AI{
			ActivationTicks:   20,
			AIChunkRange:      1,
			GravityChunkRange: 4,
			GravityCheckTicks: 10,
		},
		ContainerCheckTicks:     200,
		ConfirmationExpiryTicks: 600,
	}
}
