package model

type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Rating       int    `json:"rating"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	TotalMatches int    `json:"total_matches"`
}

// RankProfiles turns profiles already ordered by rating into ranked entries.
// Equal ratings share a rank.
func RankProfiles(profiles []Profile) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		rank := i + 1
		if i > 0 && p.Rating == profiles[i-1].Rating {
			rank = entries[i-1].Rank
		}
		entries = append(entries, LeaderboardEntry{
			Rank:         rank,
			UserID:       p.UserID,
			Username:     p.Username,
			Rating:       p.Rating,
			Wins:         p.Wins,
			Losses:       p.Losses,
			TotalMatches: p.TotalMatches,
		})
	}
	return entries
}
