package cmd

import "strings"

// classifyPriority infers a ticket priority from its title using keyword
// heuristics. Critical keywords are checked first. Defaults to "medium".
func classifyPriority(title string) string {
	lower := strings.ToLower(title)

	criticalKeywords := []string{
		"production down", "data loss", "outage", "p0", "security",
	}
	for _, kw := range criticalKeywords {
		if strings.Contains(lower, kw) {
			return "critical"
		}
	}

	highKeywords := []string{
		"critical", "urgent", "blocker", "crash", "broken", "p1",
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return "high"
		}
	}

	lowKeywords := []string{
		"minor", "nice to have", "cosmetic", "trivial",
		"low priority", "cleanup", "clean up", "typo",
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return "low"
		}
	}

	return "medium"
}
