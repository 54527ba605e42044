package inventory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/aescanero/dago-node-template/internal/eval/template"
	"gopkg.in/yaml.v3"
)

// ErrKeyNotFound is matched by errors for data keys missing on a host
var ErrKeyNotFound = errors.New("key not found")

// KeyError reports a data key not found on a host, its groups or the defaults
type KeyError struct {
	Host string
	Key  string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("host %q has no key %q", e.Host, e.Key)
}

// Is reports whether target is ErrKeyNotFound or template.ErrUndefined, so a
// missing key looked up from a template fails like any undefined variable
func (e *KeyError) Is(target error) bool {
	return target == ErrKeyNotFound || target == template.ErrUndefined
}

// Attributes are the connection attributes shared by hosts, groups and defaults
type Attributes struct {
	Hostname string         `yaml:"hostname" json:"hostname,omitempty"`
	Username string         `yaml:"username" json:"username,omitempty"`
	Password string         `yaml:"password" json:"-"`
	Platform string         `yaml:"platform" json:"platform,omitempty"`
	Port     int            `yaml:"port" json:"port,omitempty"`
	Data     map[string]any `yaml:"data" json:"data,omitempty"`
}

// Defaults are applied to every host last
type Defaults struct {
	Attributes `yaml:",inline"`
}

// Group holds attributes shared by its member hosts
type Group struct {
	Name       string   `yaml:"-" json:"name"`
	Attributes `yaml:",inline"`
	Groups     []string `yaml:"groups" json:"groups,omitempty"`

	groups []*Group
}

// Host is a managed device
type Host struct {
	Name       string   `yaml:"-" json:"name"`
	Attributes `yaml:",inline"`
	Groups     []string `yaml:"groups" json:"groups,omitempty"`

	groups   []*Group
	defaults *Defaults
}

// Inventory is the set of hosts a task runs over
type Inventory struct {
	Hosts    map[string]*Host
	Groups   map[string]*Group
	Defaults *Defaults
}

type document struct {
	Hosts    map[string]*Host  `yaml:"hosts"`
	Groups   map[string]*Group `yaml:"groups"`
	Defaults *Defaults         `yaml:"defaults"`
}

// LoadFile reads an inventory from a YAML file
func LoadFile(path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}
	defer f.Close()

	inv, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory %s: %w", path, err)
	}
	return inv, nil
}

// Load reads an inventory document with top-level hosts, groups and defaults
func Load(r io.Reader) (*Inventory, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}

	return New(doc.Hosts, doc.Groups, doc.Defaults)
}

// New links hosts to their groups and defaults and fills inherited attributes
func New(hosts map[string]*Host, groups map[string]*Group, defaults *Defaults) (*Inventory, error) {
	if hosts == nil {
		hosts = make(map[string]*Host)
	}
	if groups == nil {
		groups = make(map[string]*Group)
	}
	if defaults == nil {
		defaults = &Defaults{}
	}

	for name, g := range groups {
		if g == nil {
			g = &Group{}
			groups[name] = g
		}
		g.Name = name
	}
	for name, g := range groups {
		linked, err := linkGroups(g.Groups, groups)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", name, err)
		}
		g.groups = linked
	}
	for name, g := range groups {
		if err := checkCycle(g, nil); err != nil {
			return nil, fmt.Errorf("group %q: %w", name, err)
		}
	}

	for name, h := range hosts {
		if h == nil {
			h = &Host{}
			hosts[name] = h
		}
		h.Name = name
		linked, err := linkGroups(h.Groups, groups)
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", name, err)
		}
		h.groups = linked
		h.defaults = defaults
		h.inherit()
	}

	return &Inventory{
		Hosts:    hosts,
		Groups:   groups,
		Defaults: defaults,
	}, nil
}

func linkGroups(names []string, groups map[string]*Group) ([]*Group, error) {
	linked := make([]*Group, 0, len(names))
	for _, name := range names {
		g, ok := groups[name]
		if !ok {
			return nil, fmt.Errorf("unknown group %q", name)
		}
		linked = append(linked, g)
	}
	return linked, nil
}

func checkCycle(g *Group, path []string) error {
	if slices.Contains(path, g.Name) {
		return fmt.Errorf("group cycle through %q", g.Name)
	}
	path = append(path, g.Name)
	for _, parent := range g.groups {
		if err := checkCycle(parent, path); err != nil {
			return err
		}
	}
	return nil
}

// inherit fills empty connection attributes from groups, then defaults
func (h *Host) inherit() {
	for _, attrs := range h.lineage() {
		if h.Hostname == "" {
			h.Hostname = attrs.Hostname
		}
		if h.Username == "" {
			h.Username = attrs.Username
		}
		if h.Password == "" {
			h.Password = attrs.Password
		}
		if h.Platform == "" {
			h.Platform = attrs.Platform
		}
		if h.Port == 0 {
			h.Port = attrs.Port
		}
	}
	if h.Hostname == "" {
		h.Hostname = h.Name
	}
}

// lineage lists the attribute sets a host resolves through, most specific first
func (h *Host) lineage() []*Attributes {
	var out []*Attributes
	var walk func(groups []*Group)
	walk = func(groups []*Group) {
		for _, g := range groups {
			out = append(out, &g.Attributes)
			walk(g.groups)
		}
	}
	walk(h.groups)
	if h.defaults != nil {
		out = append(out, &h.defaults.Attributes)
	}
	return out
}

// Get returns the value of a data key, looked up on the host, its groups
// (depth-first, in order) and finally the defaults.
func (h *Host) Get(key string) (any, error) {
	if v, ok := h.Data[key]; ok {
		return v, nil
	}
	for _, attrs := range h.lineage() {
		if v, ok := attrs.Data[key]; ok {
			return v, nil
		}
	}
	return nil, &KeyError{Host: h.Name, Key: key}
}

// Has reports whether Get would find key
func (h *Host) Has(key string) bool {
	_, err := h.Get(key)
	return err == nil
}

// Extended returns the merged data of the host, its groups and the defaults
func (h *Host) Extended() map[string]any {
	out := make(map[string]any)
	lineage := h.lineage()
	for i := len(lineage) - 1; i >= 0; i-- {
		for k, v := range lineage[i].Data {
			out[k] = v
		}
	}
	for k, v := range h.Data {
		out[k] = v
	}
	return out
}

func (h *Host) String() string {
	return h.Name
}

// Host returns the named host
func (inv *Inventory) Host(name string) (*Host, bool) {
	h, ok := inv.Hosts[name]
	return h, ok
}

// Names returns the sorted host names
func (inv *Inventory) Names() []string {
	names := make([]string, 0, len(inv.Hosts))
	for name := range inv.Hosts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of hosts
func (inv *Inventory) Len() int {
	return len(inv.Hosts)
}
