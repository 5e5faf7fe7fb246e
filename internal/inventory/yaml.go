package inventory

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseYAML reads a static inventory in Ansible's YAML format:
//
//	all:
//	  hosts:
//	    a: {role: web}
//	  children:
//	    db:
//	      hosts: {c: null}
//	      vars: {env: prod}
//
// Key order of the source is kept for hosts and children.
func ParseYAML(r io.Reader, filename string) (*Inventory, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return New(), nil
		}
		return nil, &ParseError{File: filename, Msg: err.Error()}
	}

	p := &yamlParser{inv: New(), filename: filename}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return p.inv, nil
		}
		root = resolve(root.Content[0])
	}
	if isNull(root) {
		return p.inv, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, p.errorf(root, "inventory must be a mapping of groups")
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if err := p.parseGroup(root.Content[i], root.Content[i+1], -1); err != nil {
			return nil, err
		}
	}
	p.inv.attachRoots()
	return p.inv, nil
}

type yamlParser struct {
	inv      *Inventory
	filename string
}

func (p *yamlParser) errorf(n *yaml.Node, format string, args ...interface{}) error {
	return &ParseError{File: p.filename, Line: n.Line, Msg: fmt.Sprintf(format, args...)}
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func (p *yamlParser) parseGroup(key, body *yaml.Node, parent int) error {
	if key.Kind != yaml.ScalarNode || key.Value == "" {
		return p.errorf(key, "group name must be a string")
	}
	g := p.inv.AddGroup(key.Value)
	if parent >= 0 {
		if err := p.inv.AddChild(parent, g); err != nil {
			return p.errorf(key, "%v", err)
		}
	}
	body = resolve(body)
	if isNull(body) {
		return nil
	}
	if body.Kind != yaml.MappingNode {
		return p.errorf(body, "group '%s' must be a mapping", key.Value)
	}

	for i := 0; i+1 < len(body.Content); i += 2 {
		k, v := body.Content[i], body.Content[i+1]
		var err error
		switch k.Value {
		case "hosts":
			err = p.parseHosts(g, v)
		case "vars":
			err = p.parseVars(v, func(name string, value interface{}) { p.inv.SetGroupVar(g, name, value) })
		case "children":
			err = p.parseChildren(g, v)
		default:
			err = p.errorf(k, "invalid key '%s' in group '%s'", k.Value, key.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *yamlParser) parseHosts(g int, n *yaml.Node) error {
	n = resolve(n)
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return p.errorf(n, "hosts must be a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		names, port, err := parseHostPattern(k.Value)
		if err != nil {
			return p.errorf(k, "%v", err)
		}
		for _, name := range names {
			h := p.inv.AddHost(name)
			if port != 0 {
				p.inv.SetHostVar(h, "ansible_port", port)
			}
			err := p.parseVars(v, func(key string, value interface{}) { p.inv.SetHostVar(h, key, value) })
			if err != nil {
				return err
			}
			p.inv.AddMember(g, h)
		}
	}
	return nil
}

func (p *yamlParser) parseChildren(g int, n *yaml.Node) error {
	n = resolve(n)
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return p.errorf(n, "children must be a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := p.parseGroup(n.Content[i], n.Content[i+1], g); err != nil {
			return err
		}
	}
	return nil
}

func (p *yamlParser) parseVars(n *yaml.Node, set func(string, interface{})) error {
	n = resolve(n)
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return p.errorf(n, "vars must be a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var value interface{}
		if err := n.Content[i+1].Decode(&value); err != nil {
			return p.errorf(n.Content[i+1], "%v", err)
		}
		set(n.Content[i].Value, normalize(value))
	}
	return nil
}
