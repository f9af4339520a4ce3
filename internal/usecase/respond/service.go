// Package respond writes a shopping-assistant reply for a search result page.
package respond

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	"github.com/kailas-cloud/shelfsearch/internal/metrics"
)

// Agent names.
const (
	AgentOpenAI = "openai"
	AgentGemini = "gemini"
)

const (
	// PromptRecords caps how many records the prompt lists.
	PromptRecords = 5
	// descriptionRunes caps each record's description in the prompt.
	descriptionRunes = 100
	defaultTimeout   = 15 * time.Second
)

const promptTemplate = `You are a smart shopping assistant for an e-commerce store.
User asked: %q

Here are the available products that match their query:
%s

Provide a helpful response recommending these products. Be enthusiastic and mention specific product names, brands, and key features that match what they're looking for.

If the products don't seem relevant to their query, say:
"Sorry, we don't have exactly what you're looking for, but here are some similar products that might interest you."

Keep the response concise and engaging (max 200 words).`

// Reply is the generated text and the agent that produced it.
type Reply struct {
	Text  string
	Agent string
}

// Service dispatches prompts to the configured agents.
type Service struct {
	agents       map[string]Completer
	defaultAgent string
	timeout      time.Duration
	logger       *zap.Logger
}

// New creates a responder. Agents with a nil Completer are skipped.
func New(agents map[string]Completer, defaultAgent string, timeout time.Duration, logger *zap.Logger) *Service {
	m := make(map[string]Completer, len(agents))
	for name, c := range agents {
		if c != nil {
			m[strings.ToLower(name)] = c
		}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{agents: m, defaultAgent: strings.ToLower(defaultAgent), timeout: timeout, logger: logger}
}

// Agents returns the names of the configured agents, sorted.
func (s *Service) Agents() []string {
	names := make([]string, 0, len(s.agents))
	for name := range s.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a requested agent to a configured one; unknown or empty names
// resolve to the default agent.
func (s *Service) Resolve(agent string) string {
	agent = strings.ToLower(strings.TrimSpace(agent))
	if _, ok := s.agents[agent]; ok {
		return agent
	}
	return s.defaultAgent
}

// Respond writes a reply for query over recs. It never fails: an empty page
// yields an apology and a provider failure yields a generic sentence.
func (s *Service) Respond(ctx context.Context, query string, recs []record.Record, agent string) Reply {
	name := s.Resolve(agent)
	if len(recs) == 0 {
		return Reply{Text: fmt.Sprintf("Sorry, we don't currently have any products related to %q.", query), Agent: name}
	}

	generic := Reply{Text: fmt.Sprintf("Here are some products that match your search for '%s'.", query), Agent: name}

	c, ok := s.agents[name]
	if !ok {
		s.logger.Warn("No responder agent configured", zap.String("agent", name))
		metrics.ResponderRequestsTotal.WithLabelValues(name, "unconfigured").Inc()
		return generic
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := c.Complete(cctx, BuildPrompt(query, recs))
	if err != nil {
		s.logger.Warn("Responder failed, using generic reply", zap.String("agent", name), zap.Error(err))
		metrics.ResponderRequestsTotal.WithLabelValues(name, "error").Inc()
		return generic
	}

	metrics.ResponderRequestsTotal.WithLabelValues(name, "success").Inc()
	return Reply{Text: text, Agent: name}
}

// BuildPrompt lists up to PromptRecords records as "- name (brand): description...".
func BuildPrompt(query string, recs []record.Record) string {
	if len(recs) > PromptRecords {
		recs = recs[:PromptRecords]
	}

	lines := make([]string, len(recs))
	for i, r := range recs {
		brand := r.Brand
		if brand == "" {
			brand = "No Brand"
		}
		lines[i] = fmt.Sprintf("- %s (%s): %s...", r.Name, brand, truncate(r.Description, descriptionRunes))
	}
	return fmt.Sprintf(promptTemplate, query, strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
