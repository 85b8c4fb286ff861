package dto

// EngagementRecordResponse is one member's standing.
type EngagementRecordResponse struct {
	UserID   string `json:"user_id"`
	Level    int    `json:"level"`
	XP       int    `json:"xp"`
	NeededXP int    `json:"needed_xp"`
	Rank     int    `json:"rank,omitempty"`
}
