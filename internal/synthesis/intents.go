package synthesis

import (
	"strings"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

// intentPatterns maps each category to the keyword patterns that signal it.
// Matching is case-insensitive substring matching over the question label;
// the category with the most hits wins, ties going to the earlier entry in
// intentOrder.
var intentPatterns = map[schemas.IntentCategory][]string{
	schemas.IntentQualification: {
		"years of experience", "experience with", "how many years",
		"qualified", "qualification", "have you worked", "proficien",
	},
	schemas.IntentAvailability: {
		"when can you start", "start date", "available to start",
		"notice period", "availability", "earliest start",
	},
	schemas.IntentLocation: {
		"located", "location", "relocat", "commute", "on-site", "onsite",
		"remote", "hybrid", "time zone", "timezone", "city",
	},
	schemas.IntentLegalAuthorization: {
		"authorized to work", "work authorization", "legally authorized",
		"work permit", "sponsorship", "visa", "citizen", "right to work",
	},
	schemas.IntentCompensation: {
		"salary", "compensation", "pay expectation", "desired pay",
		"hourly rate", "expected rate", "wage",
	},
	schemas.IntentSkills: {
		"skill", "technolog", "tools you", "programming", "software",
		"certif", "language",
	},
	schemas.IntentCultureFit: {
		"why do you want", "why are you interested", "our company",
		"our team", "our mission", "culture", "values",
	},
	schemas.IntentCommitment: {
		"commit", "full-time", "full time", "part-time", "part time",
		"long term", "long-term", "contract length", "duration",
	},
	schemas.IntentEducation: {
		"degree", "education", "diploma", "university", "college",
		"graduate", "gpa", "bachelor", "master",
	},
	schemas.IntentSchedule: {
		"shift", "weekend", "evening", "overnight", "schedule",
		"hours per week", "overtime",
	},
}

// intentOrder fixes tie-breaking so classification is deterministic.
var intentOrder = []schemas.IntentCategory{
	schemas.IntentLegalAuthorization,
	schemas.IntentCompensation,
	schemas.IntentAvailability,
	schemas.IntentLocation,
	schemas.IntentEducation,
	schemas.IntentSchedule,
	schemas.IntentCommitment,
	schemas.IntentQualification,
	schemas.IntentSkills,
	schemas.IntentCultureFit,
}

// openEndedPhrases signal questions that need free-form composition and are
// always escalated to assistance.
var openEndedPhrases = []string{
	"describe", "explain", "tell us about", "tell me about",
	"walk us through", "give an example", "why",
}

// openEndedLengthThreshold escalates unusually long question text even
// without an open-ended phrase; long prompts rarely have a keyword answer.
const openEndedLengthThreshold = 120

// classifyIntent matches the label against the fixed taxonomy.
func classifyIntent(label string) schemas.IntentCategory {
	lower := strings.ToLower(label)

	best := schemas.IntentUnknown
	bestScore := 0
	for _, intent := range intentOrder {
		score := 0
		for _, pattern := range intentPatterns[intent] {
			if strings.Contains(lower, pattern) {
				score++
			}
		}
		if score > bestScore {
			best = intent
			bestScore = score
		}
	}
	return best
}

// isOpenEnded reports whether the question requires free-form composition.
func isOpenEnded(label string) bool {
	if len(label) > openEndedLengthThreshold {
		return true
	}
	lower := strings.ToLower(label)
	for _, phrase := range openEndedPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
