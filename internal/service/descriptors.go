package service

// ActionDescriptor is a read-only summary of one registered action, used
// by the debug API.
type ActionDescriptor struct {
	Key              string `json:"key"`
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	Triggers         int    `json:"triggers"`
	CooldownSeconds  int    `json:"cooldown_seconds,omitempty"`
	ConcurrencyLimit int    `json:"concurrency_limit,omitempty"`
	IntervalSeconds  int    `json:"interval_seconds,omitempty"`
}

// Descriptors lists every registered action.
func (p *Processor) Descriptors() []ActionDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []ActionDescriptor
	for _, a := range p.commands {
		out = append(out, ActionDescriptor{
			Key:              a.Key,
			Name:             a.Name,
			Kind:             "command",
			Triggers:         len(a.Triggers),
			CooldownSeconds:  int(a.Cooldown.Seconds()),
			ConcurrencyLimit: a.ConcurrencyLimit,
		})
	}
	for _, a := range p.scheduled {
		out = append(out, ActionDescriptor{
			Key:             a.Key,
			Name:            a.Name,
			Kind:            "scheduled",
			Triggers:        len(a.Triggers),
			IntervalSeconds: int(a.Interval.Seconds()),
		})
	}
	for _, a := range p.inline {
		out = append(out, ActionDescriptor{
			Key:      a.Key,
			Name:     a.Name,
			Kind:     "inline",
			Triggers: len(a.Triggers),
		})
	}
	for _, e := range p.captures {
		out = append(out, ActionDescriptor{
			Key:  e.action.Key,
			Name: e.action.Name,
			Kind: "capture",
		})
	}
	return out
}
