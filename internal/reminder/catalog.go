package reminder

import "time"

// LeadTime is one catalog entry: a reminder fires Before the contest start
// and is labeled with Label in the outgoing message.
type LeadTime struct {
	Label  string
	Before time.Duration
}

// DefaultCatalog matches the classic 24h/1h/15m reminder ladder. Order
// matters: jobs are created in catalog order.
func DefaultCatalog() []LeadTime {
	return []LeadTime{
		{Label: "24h", Before: 24 * time.Hour},
		{Label: "1h", Before: time.Hour},
		{Label: "15m", Before: 15 * time.Minute},
	}
}

// Labels returns the catalog labels in order, for help/start texts.
func Labels(catalog []LeadTime) []string {
	out := make([]string, 0, len(catalog))
	for _, lt := range catalog {
		out = append(out, lt.Label)
	}
	return out
}
