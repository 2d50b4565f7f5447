// Package fetch implements the renderer adapter: a static probe fetcher, a
// headless browser renderer, and the promotion logic between them.
package fetch

import "sync"

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// AgentRotator hands out user-agent strings round-robin so consecutive
// fetches do not present an identical client signature.
type AgentRotator struct {
	mu     sync.Mutex
	agents []string
	next   int
}

// NewAgentRotator builds a rotator; an empty list falls back to a single
// default agent.
func NewAgentRotator(agents []string) *AgentRotator {
	if len(agents) == 0 {
		agents = []string{defaultUserAgent}
	}
	return &AgentRotator{agents: agents}
}

// Next returns the next user agent in rotation.
func (r *AgentRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ua := r.agents[r.next%len(r.agents)]
	r.next++
	return ua
}
