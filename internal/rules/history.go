package rules

import "time"

// MaxHistoryAge bounds the firing history. The longest cooldown window is 20
// hours, so anything older than a day can never suppress a firing again and
// is evicted on each evaluation pass. Date-scoped keys roll over naturally.
const MaxHistoryAge = 24 * time.Hour

// History maps a rule key to the time it last fired. Static keys (one per
// rule family) are suppressed by their cooldown; date-scoped keys are
// suppressed for as long as they exist. The foreground history lives only in
// memory and is lost on restart, which is acceptable: the next evaluation
// re-derives it, bounded by the cooldowns.
type History map[string]time.Time

// Clone returns a copy of the history with entries older than MaxHistoryAge
// dropped.
func (h History) Clone(now time.Time) History {
	out := make(History, len(h))
	for k, t := range h {
		if now.Sub(t) > MaxHistoryAge {
			continue
		}
		out[k] = t
	}
	return out
}
