// Package inventory holds the group/host graph of an Ansible inventory,
// the parsers that build it and the dynamic-inventory document it
// serializes to.
//
// Groups and hosts live in two tables. Membership and nesting are stored as
// index lists, so the graph has no pointers between entries.
package inventory

import (
	"fmt"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	// AllGroup is the synthetic root every inventory has at index 0.
	AllGroup = "all"
	// UngroupedGroup collects hosts declared outside any section.
	UngroupedGroup = "ungrouped"
)

// Vars maps variable names to decoded values
type Vars map[string]interface{}

// Group is one entry of the group table
type Group struct {
	Name     string
	Vars     Vars
	Children []int
	Parents  []int
	Hosts    []int
}

// Host is one entry of the host table
type Host struct {
	Name   string
	Vars   Vars
	Groups []int
}

// Inventory is the parsed group/host graph
type Inventory struct {
	groups     []Group
	hosts      []Host
	groupIndex map[string]int
	hostIndex  map[string]int
}

// New returns an inventory holding only the all group.
func New() *Inventory {
	inv := &Inventory{
		groupIndex: make(map[string]int),
		hostIndex:  make(map[string]int),
	}
	inv.AddGroup(AllGroup)
	return inv
}

// AddGroup returns the index of the named group, creating it if needed.
func (inv *Inventory) AddGroup(name string) int {
	if i, ok := inv.groupIndex[name]; ok {
		return i
	}
	inv.groups = append(inv.groups, Group{Name: name, Vars: Vars{}})
	i := len(inv.groups) - 1
	inv.groupIndex[name] = i
	return i
}

// AddHost returns the index of the named host, creating it if needed.
func (inv *Inventory) AddHost(name string) int {
	if i, ok := inv.hostIndex[name]; ok {
		return i
	}
	inv.hosts = append(inv.hosts, Host{Name: name, Vars: Vars{}})
	i := len(inv.hosts) - 1
	inv.hostIndex[name] = i
	return i
}

// GroupIndex looks a group up by name.
func (inv *Inventory) GroupIndex(name string) (int, bool) {
	i, ok := inv.groupIndex[name]
	return i, ok
}

// HostIndex looks a host up by name.
func (inv *Inventory) HostIndex(name string) (int, bool) {
	i, ok := inv.hostIndex[name]
	return i, ok
}

// Group returns the group at index i. The pointer is only valid until the
// next AddGroup.
func (inv *Inventory) Group(i int) *Group { return &inv.groups[i] }

// Host returns the host at index i. The pointer is only valid until the
// next AddHost.
func (inv *Inventory) Host(i int) *Host { return &inv.hosts[i] }

// NumGroups returns the size of the group table, all included.
func (inv *Inventory) NumGroups() int { return len(inv.groups) }

// NumHosts returns the size of the host table.
func (inv *Inventory) NumHosts() int { return len(inv.hosts) }

// AddChild nests child under parent. Nesting all, nesting a group under
// itself or closing a loop is rejected.
func (inv *Inventory) AddChild(parent, child int) error {
	p, c := &inv.groups[parent], &inv.groups[child]
	switch {
	case child == 0:
		return fmt.Errorf("group '%s' cannot have '%s' as a child", p.Name, AllGroup)
	case parent == child:
		return fmt.Errorf("group '%s' cannot be a child of itself", p.Name)
	case slices.Contains(p.Children, child):
		return nil
	case inv.descendants(child).Has(parent):
		return fmt.Errorf("adding group '%s' as child to '%s' creates a loop", c.Name, p.Name)
	}
	p.Children = append(p.Children, child)
	c.Parents = append(c.Parents, parent)
	return nil
}

// AddMember puts host into group.
func (inv *Inventory) AddMember(group, host int) {
	g := &inv.groups[group]
	if slices.Contains(g.Hosts, host) {
		return
	}
	g.Hosts = append(g.Hosts, host)
	h := &inv.hosts[host]
	h.Groups = append(h.Groups, group)
}

// SetGroupVar sets a group-scoped variable.
func (inv *Inventory) SetGroupVar(group int, key string, value interface{}) {
	inv.groups[group].Vars[key] = value
}

// SetHostVar sets a host-scoped variable, replacing any earlier value.
func (inv *Inventory) SetHostVar(host int, key string, value interface{}) {
	inv.hosts[host].Vars[key] = value
}

// attachRoots nests every parentless group under all.
func (inv *Inventory) attachRoots() {
	for i := 1; i < len(inv.groups); i++ {
		if len(inv.groups[i].Parents) == 0 {
			// cannot fail: i is neither all nor an ancestor of all
			_ = inv.AddChild(0, i)
		}
	}
}

// descendants returns the indices of every group nested below g.
func (inv *Inventory) descendants(g int) sets.Set[int] {
	seen := sets.New[int]()
	var walk func(int)
	walk = func(i int) {
		for _, c := range inv.groups[i].Children {
			if !seen.Has(c) {
				seen.Insert(c)
				walk(c)
			}
		}
	}
	walk(g)
	return seen
}

// HostsUnder lists the hosts of group g and of every group below it, each
// host once. Child groups are visited before the group's own hosts.
func (inv *Inventory) HostsUnder(g int) []int {
	visited := sets.New[int]()
	seen := sets.New[int]()
	var out []int

	var walk func(int)
	walk = func(i int) {
		if visited.Has(i) {
			return
		}
		visited.Insert(i)
		for _, c := range inv.groups[i].Children {
			walk(c)
		}
		for _, h := range inv.groups[i].Hosts {
			if !seen.Has(h) {
				seen.Insert(h)
				out = append(out, h)
			}
		}
	}
	walk(g)
	return out
}
