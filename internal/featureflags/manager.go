// Package featureflags evaluates runtime switches read from FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// VoteEvents publishes a vote_updated event after every applied vote.
	VoteEvents = "vote_events"
	// FeedCache serves ranked feed snapshots through Redis.
	FeedCache = "feed_cache"
)

// defaults apply when FEATURE_FLAGS does not mention a known flag.
var defaults = map[string]string{
	VoteEvents: "on",
	FeedCache:  "on",
}

// Manager evaluates flags from a "name=value" list.
// Example: "vote_events=on,feed_cache=25%"
type Manager struct {
	flags map[string]string
}

// NewManager parses raw on top of the defaults for known flags.
func NewManager(raw string) *Manager {
	out := make(map[string]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled reports whether name is on for the given key.
// Values are on/true/1, off/false/0 or N%. Percentage rollouts bucket by
// key (usually the voter id) and are off for an empty key.
func (m *Manager) Enabled(name, key string) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if key == "" {
		return false
	}
	return rolloutBucket(name, key) < pct
}

// On reports whether name is fully on, for flags not tied to a viewer.
func (m *Manager) On(name string) bool {
	return m.Enabled(name, "")
}

// Names returns the configured flag names, sorted.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.flags))
	for k := range m.flags {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns evaluated flag status for one key.
func (m *Manager) Snapshot(key string) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, key)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + key))
	return int(h.Sum32() % 100)
}
