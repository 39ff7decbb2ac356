package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Bomb pot variants
const (
	BombPotSingleBoard = "single_board"
	BombPotDoubleBoard = "double_board"
)

// Bomb pot trigger modes
const (
	BombPotTriggerManual    = "manual"
	BombPotTriggerInterval  = "interval"
	BombPotTriggerRandom    = "random"
	BombPotTriggerVoting    = "voting"
	BombPotTriggerButtonWin = "button_money_win"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Tables []TableConfig  `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// TableConfig defines one poker table. All chip amounts are integer cents.
type TableConfig struct {
	Name       string `hcl:"name,label"`
	MaxPlayers int    `hcl:"max_players,optional"`
	SmallBlind int    `hcl:"small_blind"`
	BigBlind   int    `hcl:"big_blind,optional"`
	BuyInMin   int    `hcl:"buy_in_min,optional"`
	BuyInMax   int    `hcl:"buy_in_max,optional"`

	ActionTimerSeconds int  `hcl:"action_timer_seconds,optional"`
	TimeBankEnabled    bool `hcl:"time_bank_enabled,optional"`
	TimeBankSeconds    int  `hcl:"time_bank_seconds,optional"`

	BombPot *BombPotConfig `hcl:"bomb_pot,block"`
}

// BombPotConfig controls the bomb pot variant for a table.
type BombPotConfig struct {
	Variant string `hcl:"variant,optional"`
	Ante    int    `hcl:"ante,optional"`
	Trigger string `hcl:"trigger,optional"`
	// Interval is hands between automatic bomb pots when trigger is
	// "interval".
	Interval int `hcl:"interval,optional"`
	// Percent is the per-hand chance (1-100) when trigger is "random".
	Percent int `hcl:"percent,optional"`
	// VoteThreshold is the share of seated players (1-100) whose votes
	// schedule a bomb pot when trigger is "voting".
	VoteThreshold int `hcl:"vote_threshold,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Tables: []TableConfig{
			{
				Name:       "main",
				SmallBlind: 100,
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}

// LoadServerConfig loads server configuration from an HCL file, falling
// back to defaults when the file does not exist.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *ServerConfig) {
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}

	for i := range config.Tables {
		tc := &config.Tables[i]
		if tc.MaxPlayers == 0 {
			tc.MaxPlayers = 9
		}
		// The big blind is always twice the small blind.
		tc.BigBlind = tc.SmallBlind * 2
		if tc.BuyInMin == 0 {
			tc.BuyInMin = tc.BigBlind * 50
		}
		if tc.BuyInMax == 0 {
			tc.BuyInMax = tc.BigBlind * 200
		}
		if tc.ActionTimerSeconds == 0 {
			tc.ActionTimerSeconds = 30
		}
		if tc.TimeBankEnabled && tc.TimeBankSeconds == 0 {
			tc.TimeBankSeconds = 60
		}
		if tc.BombPot == nil {
			tc.BombPot = &BombPotConfig{}
		}
		if tc.BombPot.Variant == "" {
			tc.BombPot.Variant = BombPotSingleBoard
		}
		if tc.BombPot.Trigger == "" {
			tc.BombPot.Trigger = BombPotTriggerManual
		}
		if tc.BombPot.Trigger == BombPotTriggerVoting && tc.BombPot.VoteThreshold == 0 {
			tc.BombPot.VoteThreshold = 100
		}
		if tc.BombPot.Ante == 0 {
			tc.BombPot.Ante = tc.BigBlind * 2
		}
	}
}

var validTimerSeconds = map[int]bool{-1: true, 15: true, 30: true, 45: true, 60: true}

var validTimeBankSeconds = map[int]bool{30: true, 60: true, 90: true}

// Validate checks the enumerated options. action_timer_seconds accepts -1
// for an unlimited clock.
func (c *ServerConfig) Validate() error {
	for i := range c.Tables {
		tc := &c.Tables[i]
		if tc.Name == "" {
			return fmt.Errorf("table %d: name is required", i)
		}
		if tc.SmallBlind <= 0 {
			return fmt.Errorf("table %q: small_blind must be positive", tc.Name)
		}
		if tc.MaxPlayers < 2 || tc.MaxPlayers > 10 {
			return fmt.Errorf("table %q: max_players must be 2-10", tc.Name)
		}
		if tc.BuyInMin > tc.BuyInMax {
			return fmt.Errorf("table %q: buy_in_min exceeds buy_in_max", tc.Name)
		}
		if !validTimerSeconds[tc.ActionTimerSeconds] {
			return fmt.Errorf("table %q: action_timer_seconds must be one of -1, 15, 30, 45, 60", tc.Name)
		}
		if tc.TimeBankEnabled && !validTimeBankSeconds[tc.TimeBankSeconds] {
			return fmt.Errorf("table %q: time_bank_seconds must be one of 30, 60, 90", tc.Name)
		}
		switch tc.BombPot.Variant {
		case BombPotSingleBoard, BombPotDoubleBoard:
		default:
			return fmt.Errorf("table %q: bomb_pot variant must be %s or %s",
				tc.Name, BombPotSingleBoard, BombPotDoubleBoard)
		}
		switch tc.BombPot.Trigger {
		case BombPotTriggerManual, BombPotTriggerButtonWin:
		case BombPotTriggerInterval:
			if tc.BombPot.Interval <= 0 {
				return fmt.Errorf("table %q: bomb_pot interval must be positive", tc.Name)
			}
		case BombPotTriggerRandom:
			if tc.BombPot.Percent < 1 || tc.BombPot.Percent > 100 {
				return fmt.Errorf("table %q: bomb_pot percent must be 1-100", tc.Name)
			}
		case BombPotTriggerVoting:
			if tc.BombPot.VoteThreshold < 1 || tc.BombPot.VoteThreshold > 100 {
				return fmt.Errorf("table %q: bomb_pot vote_threshold must be 1-100", tc.Name)
			}
		default:
			return fmt.Errorf("table %q: unknown bomb_pot trigger %q", tc.Name, tc.BombPot.Trigger)
		}
		if tc.BombPot.Ante <= 0 {
			return fmt.Errorf("table %q: bomb_pot ante must be positive", tc.Name)
		}
	}
	return nil
}
