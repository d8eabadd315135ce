package retrieval

import "strings"

// positionBoostWeight scales how strongly an early query-term mention is favored.
const positionBoostWeight = 0.3

// PositionBoost returns a score multiplier favoring chunks that mention any
// query token early: 1 + (1 - earliestOffset/contentLength) * 0.3. Chunks
// with no token match (or empty content) keep their score (boost 1.0).
func PositionBoost(queryTokens []string, content string) float64 {
	if len(content) == 0 {
		return 1.0
	}
	lower := strings.ToLower(content)
	earliest := -1
	for _, tok := range queryTokens {
		if idx := strings.Index(lower, tok); idx >= 0 && (earliest < 0 || idx < earliest) {
			earliest = idx
		}
	}
	if earliest < 0 {
		return 1.0
	}
	return 1.0 + (1.0-float64(earliest)/float64(len(lower)))*positionBoostWeight
}
