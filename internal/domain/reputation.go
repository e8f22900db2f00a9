package domain

// Reputation scores are owned by the backend; the client only mirrors
// snapshots and never computes a score itself.
const (
	MinScore = 0
	MaxScore = 100
)

type ReputationLevel string

const (
	LevelRestricted ReputationLevel = "restricted"
	LevelNewcomer   ReputationLevel = "newcomer"
	LevelMember     ReputationLevel = "member"
	LevelTrusted    ReputationLevel = "trusted"
	LevelExemplary  ReputationLevel = "exemplary"
)

// ReputationSnapshot is the read-mostly local cache of a backend record.
type ReputationSnapshot struct {
	Score        int             `json:"score"`
	Level        ReputationLevel `json:"level"`
	IsRestricted bool            `json:"isRestricted"`
}
