package domain

// EngagementRecord is a user's position on the level ladder.
type EngagementRecord struct {
	UserID string `json:"-"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
}

// ActivitySample is one candidate qualifying activity.
type ActivitySample struct {
	UserID    string
	ChannelID string
	Content   string
}

// LevelUpEvent is emitted when a user crosses a level threshold.
type LevelUpEvent struct {
	UserID    string
	ChannelID string
	NewLevel  int
}

// RewardRule maps a level threshold to a role grant.
type RewardRule struct {
	Level  int
	RoleID string
}

// RoleMenu is a group of self-assignable roles.
type RoleMenu struct {
	Name        string
	Placeholder string
	MaxValues   int
	Options     []RoleOption
}

// RoleOption is one entry of a RoleMenu.
type RoleOption struct {
	RoleID string
	Label  string
}
