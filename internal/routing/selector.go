// Package routing decides whether an inbound chat message should be answered
// by the automated responder.
package routing

import (
	"regexp"
	"strings"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

// DefaultSummonToken force-invokes the automated responder while an agent is present.
const DefaultSummonToken = "@ai"

// Decision is the outcome of responder selection for one message.
type Decision struct {
	// Respond is true when the automated responder must answer.
	Respond bool
	// Summoned is true when the body carried the summon token.
	Summoned bool
	// Body is the text handed to the responder, with the token stripped when summoned.
	Body string
}

// Selector applies the selection rule with a configurable summon token.
type Selector struct {
	token   string
	pattern *regexp.Regexp
}

// NewSelector builds a Selector for the given token. An empty token falls
// back to DefaultSummonToken.
func NewSelector(token string) *Selector {
	token = strings.TrimSpace(token)
	if token == "" {
		token = DefaultSummonToken
	}
	return &Selector{
		token:   strings.ToLower(token),
		pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(token) + `\s*`),
	}
}

// Token returns the summon token in lowercase.
func (s *Selector) Token() string { return s.token }

// Select decides whether the automated responder answers a message.
//
// A reply is warranted only for customers, and then either when no agent is
// present or when the body summons the responder explicitly. The result
// depends on the arguments alone.
func (s *Selector) Select(body string, role domain.Role, agentCount int) Decision {
	if role != domain.RoleCustomer {
		return Decision{Body: body}
	}

	summoned := strings.Contains(strings.ToLower(body), s.token)
	d := Decision{Summoned: summoned, Body: body}
	if summoned {
		d.Body = strings.TrimSpace(s.pattern.ReplaceAllString(body, ""))
	}
	d.Respond = agentCount == 0 || summoned
	return d
}

var defaultSelector = NewSelector(DefaultSummonToken)

// Select applies the rule with DefaultSummonToken.
func Select(body string, role domain.Role, agentCount int) Decision {
	return defaultSelector.Select(body, role, agentCount)
}
