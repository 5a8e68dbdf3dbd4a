// Package moderation holds the rule-based message classifier and the
// enforcement plumbing around it. Classification is pure; persistence of
// verdicts is done by the Enforcer.
package moderation

import (
	"regexp"
	"strings"
	"sync"

	"github.com/parley/backend/internal/models"
)

// Verdict is the outcome of classifying one message.
type Verdict string

const (
	VerdictAllow      Verdict = "allow"
	VerdictFlag       Verdict = "flag"
	VerdictAutoDelete Verdict = "autoDelete"
)

// Result carries the verdict plus reason and severity for flagged text.
type Result struct {
	Verdict  Verdict
	Reason   models.FlagReason
	Severity models.Severity
}

// DefaultLengthCeiling is the in-band flag threshold; the post-write
// monitor uses a looser server-side ceiling.
const (
	DefaultLengthCeiling = 800
	ServerLengthCeiling  = 1000
)

// Lexicons are matched on word boundaries, lowercased. Substring matching
// was rejected to avoid false positives on innocent words.
var (
	severeProfanity   = []string{"fuck", "cunt", "motherfucker"}
	moderateProfanity = []string{"shit", "bitch", "asshole", "bastard", "dick"}
	mildProfanity     = []string{"damn", "hell", "crap", "piss"}
)

// Harassment patterns cover direct threats and dismissive abuse aimed at
// another person.
var harassmentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bkill\s+yourself\b`),
	regexp.MustCompile(`(?i)\bkys\b`),
	regexp.MustCompile(`(?i)\bgo\s+die\b`),
	regexp.MustCompile(`(?i)\bi\s+will\s+(hurt|find|kill|get)\s+you\b`),
	regexp.MustCompile(`(?i)\byou\s*(?:'re|\s+are)\s+(worthless|pathetic|trash|garbage|nothing)\b`),
	regexp.MustCompile(`(?i)\bnobody\s+(likes|wants|needs)\s+you\b`),
}

var (
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+)`)
	digitRun   = regexp.MustCompile(`[0-9]{8,}`)
	capsLine   = regexp.MustCompile(`^[A-Z0-9\s!?.,]{20,}$`)
)

// Classifier evaluates the moderation rules in fixed precedence order.
// First match wins; rules are never combined.
type Classifier struct {
	ceiling  int
	severe   *regexp.Regexp
	moderate *regexp.Regexp
	mild     *regexp.Regexp

	mu     sync.RWMutex
	custom []customRule
}

// customRule is a compiled admin-defined lexicon entry.
type customRule struct {
	pattern  *regexp.Regexp
	reason   models.FlagReason
	severity models.Severity
}

// NewClassifier builds a classifier with the given length ceiling.
// A ceiling <= 0 falls back to DefaultLengthCeiling.
func NewClassifier(ceiling int) *Classifier {
	if ceiling <= 0 {
		ceiling = DefaultLengthCeiling
	}
	return &Classifier{
		ceiling:  ceiling,
		severe:   wordListPattern(severeProfanity),
		moderate: wordListPattern(moderateProfanity),
		mild:     wordListPattern(mildProfanity),
	}
}

func wordListPattern(words []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
}

// SetRules replaces the admin-defined rules. Words are matched on the
// same boundary terms as the built-in lexicons. Safe for concurrent use
// with Classify.
func (c *Classifier) SetRules(rules []models.ModerationRule) {
	compiled := make([]customRule, 0, len(rules))
	for _, r := range rules {
		compiled = append(compiled, customRule{
			pattern:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(r.Word)) + `\b`),
			reason:   r.Reason,
			severity: r.Severity,
		})
	}
	c.mu.Lock()
	c.custom = compiled
	c.mu.Unlock()
}

// classifyCustom applies the admin-defined rules. High severity means
// removal, anything lower flags for review.
func (c *Classifier) classifyCustom(text string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.custom {
		if r.pattern.MatchString(text) {
			verdict := VerdictFlag
			if r.severity == models.SeverityHigh {
				verdict = VerdictAutoDelete
			}
			return Result{verdict, r.reason, r.severity}, true
		}
	}
	return Result{}, false
}

// Classify assigns a verdict to text. It assumes the text already passed
// basic validation (non-empty, within the pre-send bound). Pure.
func (c *Classifier) Classify(text string) Result {
	if c.severe.MatchString(text) {
		return Result{VerdictAutoDelete, models.ReasonProfanity, models.SeverityHigh}
	}
	for _, p := range harassmentPatterns {
		if p.MatchString(text) {
			return Result{VerdictAutoDelete, models.ReasonHarassment, models.SeverityHigh}
		}
	}
	if res, ok := c.classifyCustom(text); ok {
		return res
	}
	if c.moderate.MatchString(text) {
		return Result{VerdictFlag, models.ReasonProfanity, models.SeverityMedium}
	}
	if c.mild.MatchString(text) {
		return Result{VerdictFlag, models.ReasonProfanity, models.SeverityLow}
	}
	if IsSpam(text) {
		return Result{VerdictFlag, models.ReasonSpam, models.SeverityMedium}
	}
	if len(text) > c.ceiling {
		return Result{VerdictFlag, models.ReasonInappropriate, models.SeverityLow}
	}
	return Result{Verdict: VerdictAllow}
}

// IsSpam reports whether text trips any spam heuristic: a run of six or
// more identical characters, a long all-caps exclamatory line, a phrase
// repeated three or more times, an embedded URL, or a long digit run.
func IsSpam(text string) bool {
	return hasCharRun(text, 6) ||
		isCapsShouting(text) ||
		hasRepeatedPhrase(text, 3) ||
		urlPattern.MatchString(text) ||
		digitRun.MatchString(text)
}

// hasCharRun detects n or more identical consecutive runes.
func hasCharRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

func isCapsShouting(text string) bool {
	line := strings.TrimSpace(text)
	if !strings.Contains(line, "!") {
		return false
	}
	if !capsLine.MatchString(line) {
		return false
	}
	// Require actual letters so "!!!! 1111" alone does not count here.
	letters := 0
	for _, r := range line {
		if r >= 'A' && r <= 'Z' {
			letters++
		}
	}
	return letters >= 5
}

// hasRepeatedPhrase detects a token of three or more characters repeated
// n or more times in a row.
func hasRepeatedPhrase(text string, n int) bool {
	tokens := strings.Fields(strings.ToLower(text))
	run := 1
	for i := 1; i < len(tokens); i++ {
		if len(tokens[i]) >= 3 && tokens[i] == tokens[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
