package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RewardRuleConfig maps a level threshold to a role.
type RewardRuleConfig struct {
	Level  int    `yaml:"level"`
	RoleID string `yaml:"role_id"`
}

// RoleMenuConfig describes a self-assignable group of roles.
type RoleMenuConfig struct {
	Name        string            `yaml:"name"`
	Placeholder string            `yaml:"placeholder"`
	MaxValues   int               `yaml:"max_values"`
	Roles       []RoleOptionEntry `yaml:"roles"`
}

// RoleOptionEntry is one selectable role in a menu.
type RoleOptionEntry struct {
	RoleID string `yaml:"role_id"`
	Label  string `yaml:"label"`
}

// RuleFile is the YAML document referenced by REWARDS_FILE.
type RuleFile struct {
	Rewards   []RewardRuleConfig `yaml:"rewards"`
	RoleMenus []RoleMenuConfig   `yaml:"role_menus"`
}

// LoadRules reads the rule file when configured and falls back to REWARD_RULES.
// Reward rules are returned sorted by level.
func LoadRules(cfg RewardsConfig) (*RuleFile, error) {
	rules := &RuleFile{}
	if cfg.File != "" {
		raw, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("read rewards file: %w", err)
		}
		if err := yaml.Unmarshal(raw, rules); err != nil {
			return nil, fmt.Errorf("parse rewards file: %w", err)
		}
	}
	if len(rules.Rewards) == 0 && cfg.RawRules != "" {
		parsed, err := ParseRewardRules(cfg.RawRules)
		if err != nil {
			return nil, err
		}
		rules.Rewards = parsed
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(rules.Rewards, func(i, j int) bool {
		return rules.Rewards[i].Level < rules.Rewards[j].Level
	})
	return rules, nil
}

// ParseRewardRules parses "level:role,level:role".
func ParseRewardRules(raw string) ([]RewardRuleConfig, error) {
	var out []RewardRuleConfig
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		levelStr, roleID, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid reward rule %q", part)
		}
		level, err := strconv.Atoi(strings.TrimSpace(levelStr))
		if err != nil {
			return nil, fmt.Errorf("invalid reward level %q: %w", levelStr, err)
		}
		out = append(out, RewardRuleConfig{Level: level, RoleID: strings.TrimSpace(roleID)})
	}
	return out, nil
}

func (r *RuleFile) validate() error {
	for _, rule := range r.Rewards {
		if rule.Level <= 0 {
			return fmt.Errorf("reward level must be positive, got %d", rule.Level)
		}
		if rule.RoleID == "" {
			return fmt.Errorf("reward for level %d has no role_id", rule.Level)
		}
	}
	seen := map[string]struct{}{}
	for _, menu := range r.RoleMenus {
		if menu.Name == "" || strings.Contains(menu.Name, ":") {
			return fmt.Errorf("invalid role menu name %q", menu.Name)
		}
		if _, dup := seen[menu.Name]; dup {
			return fmt.Errorf("duplicate role menu %q", menu.Name)
		}
		seen[menu.Name] = struct{}{}
		if len(menu.Roles) == 0 {
			return fmt.Errorf("role menu %q has no roles", menu.Name)
		}
	}
	return nil
}
