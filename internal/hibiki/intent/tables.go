package intent

// Keyword and synonym tables are kept as data rather than inline conditionals
// so they can be tested and tuned without touching control flow.

// writeVerbs flags a request as a state mutation when any of them appears in
// the text and no explicit mode or handler metadata decides first.
var writeVerbs = []string{
	"transfer", "send", "mint", "burn",
	"create", "update", "delete", "set",
	"add", "remove", "register", "revoke",
	"stake", "unstake", "withdraw", "deposit",
	"vote", "propose", "approve", "claim",
}

// readVerbs flags a request as a read. When a text matches both tables (or
// neither) classification falls back to read: failing toward non-mutation is
// the cheaper mistake.
var readVerbs = []string{
	"get", "check", "balance", "info",
	"status", "list", "query", "view",
	"show", "find", "read", "fetch",
	"describe", "history", "count",
}

// actionSynonyms maps a normalized handler action to request words that
// commonly stand in for it. A synonym hit scores lower than the action name
// itself appearing verbatim.
var actionSynonyms = map[string][]string{
	"balance":  {"check", "get", "show", "funds", "holdings"},
	"transfer": {"send", "give", "pay", "move"},
	"info":     {"describe", "about", "details"},
	"mint":     {"issue", "create"},
	"burn":     {"destroy"},
	"stake":    {"lock", "delegate"},
	"withdraw": {"unlock", "redeem"},
	"vote":     {"cast", "ballot"},
	"propose":  {"proposal", "suggest"},
}

// Rule weights for the match scorer. The accumulated score is clipped to
// [0,1]; only candidates above MatchThreshold are eligible.
const (
	actionVerbatimScore   = 0.6
	actionSynonymScore    = 0.4
	descriptionWordScore  = 0.1
	parameterMentionScore = 0.2
	exampleWordScore      = 0.05

	// MatchThreshold is the confidence floor below which no handler is
	// considered a match.
	MatchThreshold = 0.3
)
