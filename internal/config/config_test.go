package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndLists(t *testing.T) {
	t.Setenv("STAFF_ROLE_ID", "role-a, role-b,,")
	t.Setenv("ENGAGEMENT_COOLDOWN", "45s")
	t.Setenv("LEDGER_BACKEND", "redis")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"role-a", "role-b"}, cfg.Tickets.PrivilegedRoles)
	require.Equal(t, 45*time.Second, cfg.Engagement.Cooldown)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, 100, cfg.Engagement.CurveC)
}

func TestLoadAuthSettings(t *testing.T) {
	t.Setenv("API_JWT_SECRET", "s3cret")
	t.Setenv("API_TOKEN_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadRejectsBadCooldown(t *testing.T) {
	t.Setenv("ENGAGEMENT_COOLDOWN", "soon")
	_, err := Load()
	require.Error(t, err)
}

func TestValidateReportsMissing(t *testing.T) {
	cfg := &Config{Engagement: EngagementConfig{LedgerBackend: "file"}}
	err := cfg.Validate()
	require.ErrorContains(t, err, "TOKEN")
	require.ErrorContains(t, err, "STAFF_ROLE_ID")
}

func TestLoadReportsMalformedNumbers(t *testing.T) {
	t.Setenv("ENGAGEMENT_MAX_AWARD", "2O")
	t.Setenv("REDIS_ENABLED", "maybe")

	_, err := Load()
	require.ErrorContains(t, err, "ENGAGEMENT_MAX_AWARD")
	require.ErrorContains(t, err, "REDIS_ENABLED")
}

func validConfig() *Config {
	return &Config{
		Discord: DiscordConfig{Token: "token", GuildID: "guild"},
		Tickets: TicketConfig{PrivilegedRoles: []string{"staff"}},
		Engagement: EngagementConfig{
			LedgerBackend: "file",
			MinLength:     5,
			Cooldown:      time.Minute,
			BaseAward:     5,
			CharsPerXP:    10,
			MaxAward:      25,
			CurveA:        5,
			CurveB:        50,
			CurveC:        100,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Engagement.CurveA = 0
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsEngagementSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EngagementConfig)
		want   string
	}{
		{"uncapped award", func(e *EngagementConfig) { e.MaxAward = 0 }, "ENGAGEMENT_MAX_AWARD"},
		{"negative chars per xp", func(e *EngagementConfig) { e.CharsPerXP = -1 }, "ENGAGEMENT_CHARS_PER_XP"},
		{"negative min length", func(e *EngagementConfig) { e.MinLength = -1 }, "ENGAGEMENT_MIN_LENGTH"},
		{"negative cooldown", func(e *EngagementConfig) { e.Cooldown = -time.Second }, "ENGAGEMENT_COOLDOWN"},
		{"negative quadratic term", func(e *EngagementConfig) { e.CurveA = -1 }, "ENGAGEMENT_CURVE_A"},
		{"negative linear term", func(e *EngagementConfig) { e.CurveA, e.CurveB = 0, -10 }, "ENGAGEMENT_CURVE_B"},
		{"flat curve", func(e *EngagementConfig) { e.CurveA, e.CurveB = 0, 0 }, "ENGAGEMENT_CURVE_A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg.Engagement)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadRulesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	doc := `
rewards:
  - level: 10
    role_id: veteran
  - level: 1
    role_id: newcomer
role_menus:
  - name: pings
    placeholder: Pick notifications
    roles:
      - role_id: events
        label: Events
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	rules, err := LoadRules(RewardsConfig{File: path})
	require.NoError(t, err)
	require.Len(t, rules.Rewards, 2)
	require.Equal(t, 1, rules.Rewards[0].Level)
	require.Equal(t, "veteran", rules.Rewards[1].RoleID)
	require.Len(t, rules.RoleMenus, 1)
	require.Equal(t, "events", rules.RoleMenus[0].Roles[0].RoleID)
}

func TestLoadRulesEnvFallback(t *testing.T) {
	rules, err := LoadRules(RewardsConfig{RawRules: "5:silver, 2:bronze"})
	require.NoError(t, err)
	require.Equal(t, []RewardRuleConfig{{Level: 2, RoleID: "bronze"}, {Level: 5, RoleID: "silver"}}, rules.Rewards)

	_, err = LoadRules(RewardsConfig{RawRules: "five:silver"})
	require.Error(t, err)
	_, err = LoadRules(RewardsConfig{RawRules: "0:silver"})
	require.Error(t, err)
}
