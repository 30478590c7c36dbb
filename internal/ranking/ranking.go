// Package ranking orders votable subjects under the new, top and hot policies.
package ranking

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"pulse/internal/models"
)

// Policy selects an ordering.
type Policy string

const (
	PolicyHot Policy = "hot"
	PolicyNew Policy = "new"
	PolicyTop Policy = "top"
)

// DefaultPolicy is used when the caller does not ask for one.
const DefaultPolicy = PolicyHot

const msPerHour = int64(time.Hour / time.Millisecond)

// ParsePolicy maps a query value to a Policy. Empty means DefaultPolicy.
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyHot, PolicyNew, PolicyTop:
		return p, nil
	default:
		return "", models.NewValidationError(fmt.Sprintf("unknown ranking policy %q (want hot, new or top)", raw))
	}
}

// Rankable is anything carrying vote counters and a creation time.
// A zero Created() means the creation time is unknown.
type Rankable interface {
	Votes() (up, down int64)
	Created() time.Time
}

// Engine ranks subjects against a clock that is read once per call.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an Engine on the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineWithClock is for tests and replay.
func NewEngineWithClock(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Now reads the engine clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Rank returns a new slice holding items ordered by policy. The input is not
// modified. Ties keep input order. An unknown policy falls back to
// DefaultPolicy.
func Rank[T Rankable](e *Engine, items []T, policy Policy) []T {
	return RankAt(items, policy, e.now())
}

// RankAt ranks against a pinned now.
func RankAt[T Rankable](items []T, policy Policy, now time.Time) []T {
	out := slices.Clone(items)

	switch policy {
	case PolicyNew:
		slices.SortStableFunc(out, func(a, b T) int {
			return compareNewest(a.Created(), b.Created())
		})
	case PolicyTop:
		slices.SortStableFunc(out, func(a, b T) int {
			return cmp.Compare(net(b), net(a))
		})
	default:
		// Scores are computed once so the comparator stays cheap and every
		// item is scored against the same now.
		type scored struct {
			item  T
			score float64
		}
		tmp := make([]scored, len(out))
		for i, it := range out {
			tmp[i] = scored{item: it, score: HotScore(it, now)}
		}
		slices.SortStableFunc(tmp, func(a, b scored) int {
			return cmp.Compare(b.score, a.score)
		})
		for i := range tmp {
			out[i] = tmp[i].item
		}
	}
	return out
}

// HotScore is net / max(1, whole hours since creation). Unknown creation
// times score negative infinity so they sink below everything.
func HotScore(r Rankable, now time.Time) float64 {
	created := r.Created()
	if created.IsZero() {
		return math.Inf(-1)
	}
	ageHours := now.Sub(created).Milliseconds() / msPerHour
	return float64(net(r)) / float64(max(1, ageHours))
}

func net(r Rankable) int64 {
	up, down := r.Votes()
	return up - down
}

func compareNewest(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	}
	return b.Compare(a)
}
