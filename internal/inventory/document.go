package inventory

import (
	"encoding/json"
	"maps"

	"k8s.io/klog/v2"
)

// MetaKey is the reserved top-level key carrying host variables.
const MetaKey = "_meta"

// GroupDocument is one group of the dynamic inventory output
type GroupDocument struct {
	Children []string `json:"children"`
	Hosts    []string `json:"hosts"`
	Vars     Vars     `json:"vars"`
}

// Meta carries the per-host variables
type Meta struct {
	HostVars map[string]Vars `json:"hostvars"`
}

// Document is the JSON answer to a --list request
type Document struct {
	Groups map[string]GroupDocument
	Meta   Meta
}

// MarshalJSON flattens the groups and _meta into one object.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Groups)+1)
	for name, g := range d.Groups {
		out[name] = g
	}
	out[MetaKey] = d.Meta
	return json.Marshal(out)
}

// Document converts the inventory into its dynamic inventory form. Every
// group but all is listed with its direct children, direct hosts and own
// vars. Host vars are gathered by walking all once; a host met again has
// its vars merged over the earlier ones.
func (inv *Inventory) Document() *Document {
	doc := &Document{
		Groups: make(map[string]GroupDocument, len(inv.groups)),
		Meta:   Meta{HostVars: make(map[string]Vars)},
	}

	for i := 1; i < len(inv.groups); i++ {
		g := &inv.groups[i]
		if g.Name == MetaKey {
			klog.Warningf("Skipping group '%s': the name is reserved", g.Name)
			continue
		}

		gd := GroupDocument{
			Children: make([]string, 0, len(g.Children)),
			Hosts:    make([]string, 0, len(g.Hosts)),
			Vars:     Vars{},
		}
		for _, c := range g.Children {
			gd.Children = append(gd.Children, inv.groups[c].Name)
		}
		for _, h := range g.Hosts {
			gd.Hosts = append(gd.Hosts, inv.hosts[h].Name)
		}
		maps.Copy(gd.Vars, g.Vars)
		doc.Groups[g.Name] = gd
	}

	for _, i := range inv.HostsUnder(0) {
		h := &inv.hosts[i]
		if vars, ok := doc.Meta.HostVars[h.Name]; ok {
			maps.Copy(vars, h.Vars)
			continue
		}
		doc.Meta.HostVars[h.Name] = maps.Clone(h.Vars)
	}

	return doc
}
