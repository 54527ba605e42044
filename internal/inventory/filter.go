package inventory

import (
	"context"
	"fmt"
)

// Matcher evaluates a boolean expression against a set of variables
type Matcher interface {
	Match(ctx context.Context, expression string, vars map[string]interface{}) (bool, error)
}

// Filter returns an inventory holding only the hosts for which expression is true.
// The expression sees a single variable, host. An empty expression returns inv.
func (inv *Inventory) Filter(ctx context.Context, m Matcher, expression string) (*Inventory, error) {
	if expression == "" {
		return inv, nil
	}

	hosts := make(map[string]*Host)
	for _, name := range inv.Names() {
		h := inv.Hosts[name]
		matched, err := m.Match(ctx, expression, map[string]interface{}{"host": h.celVars()})
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", name, err)
		}
		if matched {
			hosts[name] = h
		}
	}

	return &Inventory{
		Hosts:    hosts,
		Groups:   inv.Groups,
		Defaults: inv.Defaults,
	}, nil
}

// celVars converts a host to a CEL-friendly map
func (h *Host) celVars() map[string]interface{} {
	groups := make([]interface{}, 0, len(h.Groups))
	for _, g := range h.Groups {
		groups = append(groups, g)
	}

	return map[string]interface{}{
		"name":     h.Name,
		"hostname": h.Hostname,
		"username": h.Username,
		"platform": h.Platform,
		"port":     h.Port,
		"groups":   groups,
		"data":     h.Extended(),
	}
}
