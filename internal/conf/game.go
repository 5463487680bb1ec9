package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/biz/usecase"
	"github.com/devricklin/feishu-random-wife/internal/service"
)

// GameFileConfig contains the game rules loaded from YAML
type GameFileConfig struct {
	DailyLimit              int      `yaml:"daily_limit"`
	ForceMarryCD            *int     `yaml:"force_marry_cd"` // days, 0 disables the cooldown
	MaxRecords              int      `yaml:"max_records"`
	MaxActiveUsers          int      `yaml:"max_active_users"`
	ExcludedUsers           []string `yaml:"excluded_users"`
	ForceMarryExcludedUsers []string `yaml:"force_marry_excluded_users"`
	WhitelistGroups         []string `yaml:"whitelist_groups"`
	BlacklistGroups         []string `yaml:"blacklist_groups"`
	AdminUsers              []string `yaml:"admin_users"`

	KeywordTriggerEnabled *bool                 `yaml:"keyword_trigger_enabled"`
	KeywordTriggerMode    string                `yaml:"keyword_trigger_mode"`
	KeywordRoutes         []domain.KeywordRoute `yaml:"keyword_routes"`

	AutoSetOtherHalf         bool `yaml:"auto_set_other_half"`
	AutoWithdrawEnabled      bool `yaml:"auto_withdraw_enabled"`
	AutoWithdrawDelaySeconds int  `yaml:"auto_withdraw_delay_seconds"`

	Timezone                  string `yaml:"timezone"`
	MemberQueryTimeoutSeconds int    `yaml:"member_query_timeout_seconds"`
	GraphIterations           int    `yaml:"graph_iterations"`
}

// LoadGameConfig loads game configuration from a YAML file.
// With an empty path the usual locations are searched; no file means defaults.
func LoadGameConfig(configPath string) (*GameFileConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/game.yaml",
			"/etc/feishu-random-wife/game.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "game.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		if b, err := os.ReadFile(p); err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("read game config %s: file not found", configPath)
		}
		fmt.Println("[Config] No game.yaml found, using defaults")
		return DefaultGameFileConfig(), nil
	}

	fmt.Printf("[Config] Loading game rules from: %s\n", loadedPath)

	var config GameFileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse game.yaml: %w", err)
	}

	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *GameFileConfig) fillDefaults() {
	defaults := DefaultGameFileConfig()

	if c.DailyLimit <= 0 {
		c.DailyLimit = defaults.DailyLimit
	}
	if c.ForceMarryCD == nil {
		c.ForceMarryCD = defaults.ForceMarryCD
	}
	if c.MaxRecords <= 0 {
		c.MaxRecords = defaults.MaxRecords
	}
	if c.MaxActiveUsers <= 0 {
		c.MaxActiveUsers = defaults.MaxActiveUsers
	}
	if c.KeywordTriggerEnabled == nil {
		c.KeywordTriggerEnabled = defaults.KeywordTriggerEnabled
	}
	c.KeywordTriggerMode = string(domain.ParseMatchMode(c.KeywordTriggerMode))
	if len(c.KeywordRoutes) == 0 {
		c.KeywordRoutes = defaults.KeywordRoutes
	}
	if c.AutoWithdrawDelaySeconds <= 0 {
		c.AutoWithdrawDelaySeconds = defaults.AutoWithdrawDelaySeconds
	}
	if c.Timezone == "" {
		c.Timezone = defaults.Timezone
	}
	if c.MemberQueryTimeoutSeconds <= 0 {
		c.MemberQueryTimeoutSeconds = defaults.MemberQueryTimeoutSeconds
	}
	if c.GraphIterations <= 0 {
		c.GraphIterations = defaults.GraphIterations
	}
}

// Validate checks values fillDefaults cannot repair
func (c *GameFileConfig) Validate() error {
	if c.ForceMarryCD != nil && *c.ForceMarryCD < 0 {
		return &ConfigError{Field: "force_marry_cd", Message: "must not be negative"}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &ConfigError{Field: "timezone", Message: err.Error()}
	}
	for i, r := range c.KeywordRoutes {
		if r.Permission != "" && r.Permission != domain.PermissionMember && r.Permission != domain.PermissionAdmin {
			return &ConfigError{Field: fmt.Sprintf("keyword_routes[%d].permission", i), Message: "must be member or admin"}
		}
	}
	return nil
}

// Location resolves the configured timezone, falling back to local time
func (c *GameFileConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		fmt.Printf("[Config] Warning: unknown timezone %q, using local time\n", c.Timezone)
		return time.Local
	}
	return loc
}

// ToGameConfig converts to the engine configuration
func (c *GameFileConfig) ToGameConfig() usecase.GameConfig {
	return usecase.GameConfig{
		DailyLimit:         c.DailyLimit,
		ForceCooldownDays:  c.forceCooldownDays(),
		MaxRecords:         c.MaxRecords,
		MaxActiveUsers:     c.MaxActiveUsers,
		ExcludedUsers:      c.ExcludedUsers,
		ForceExcludedUsers: c.ForceMarryExcludedUsers,
		Policy: domain.GroupPolicy{
			Whitelist: c.WhitelistGroups,
			Blacklist: c.BlacklistGroups,
		},
		AutoSetOtherHalf:   c.AutoSetOtherHalf,
		AdminUsers:         c.AdminUsers,
		Location:           c.Location(),
		MemberQueryTimeout: time.Duration(c.MemberQueryTimeoutSeconds) * time.Second,
	}
}

func (c *GameFileConfig) forceCooldownDays() int {
	if c.ForceMarryCD == nil {
		return *DefaultGameFileConfig().ForceMarryCD
	}
	return *c.ForceMarryCD
}

// ToServiceConfig converts to the command service configuration
func (c *GameFileConfig) ToServiceConfig() service.GameServiceConfig {
	return service.GameServiceConfig{
		KeywordTriggerEnabled: c.KeywordTriggerEnabled != nil && *c.KeywordTriggerEnabled,
		MatchMode:             domain.ParseMatchMode(c.KeywordTriggerMode),
		Routes:                c.KeywordRoutes,
		AutoWithdraw:          c.AutoWithdrawEnabled,
		WithdrawDelay:         time.Duration(c.AutoWithdrawDelaySeconds) * time.Second,
		GraphIterations:       c.GraphIterations,
	}
}

// DefaultGameFileConfig returns the default game configuration
func DefaultGameFileConfig() *GameFileConfig {
	enabled := false
	cooldownDays := 3
	return &GameFileConfig{
		DailyLimit:                1,
		ForceMarryCD:              &cooldownDays,
		MaxRecords:                500,
		MaxActiveUsers:            2000,
		KeywordTriggerEnabled:     &enabled,
		KeywordTriggerMode:        string(domain.MatchContains),
		KeywordRoutes:             domain.DefaultKeywordRoutes(),
		AutoWithdrawDelaySeconds:  30,
		Timezone:                  "Asia/Shanghai",
		MemberQueryTimeoutSeconds: 5,
		GraphIterations:           140,
	}
}
