package inventory

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

var (
	sectionPattern   = regexp.MustCompile(`^\[([^:\]\s]+)(?::(\w+))?\]\s*(?:[#;].*)?$`)
	groupNamePattern = regexp.MustCompile(`^([^:\]\s]+)\s*(?:[#;].*)?$`)
)

type sectionKind int

const (
	hostsSection sectionKind = iota
	childrenSection
	varsSection
)

// ParseError locates a problem in an inventory source
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

type iniParser struct {
	inv      *Inventory
	filename string
	lineno   int

	group int
	kind  sectionKind

	// groups seen only in a [name:vars] header, by line
	pending map[string]int
}

// ParseINI reads a static inventory in Ansible's INI format.
func ParseINI(r io.Reader, filename string) (*Inventory, error) {
	p := &iniParser{
		inv:      New(),
		filename: filename,
		pending:  make(map[string]int),
		group:    -1,
	}
	if err := p.parse(r); err != nil {
		return nil, err
	}
	p.inv.attachRoots()
	return p.inv, nil
}

func (p *iniParser) errorf(format string, args ...interface{}) error {
	return &ParseError{File: p.filename, Line: p.lineno, Msg: fmt.Sprintf(format, args...)}
}

func (p *iniParser) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		p.lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' {
			if err := p.parseSection(line); err != nil {
				return err
			}
			continue
		}

		var err error
		switch p.kind {
		case hostsSection:
			err = p.parseHostLine(line)
		case childrenSection:
			err = p.parseChildLine(line)
		case varsSection:
			err = p.parseVarLine(line)
		}
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &ParseError{File: p.filename, Line: p.lineno, Msg: err.Error()}
	}

	return p.checkPending()
}

func (p *iniParser) parseSection(line string) error {
	m := sectionPattern.FindStringSubmatch(line)
	if m == nil {
		return p.errorf("invalid section entry: '%s'", line)
	}
	name, suffix := m[1], m[2]

	switch suffix {
	case "":
		p.kind = hostsSection
	case "children":
		p.kind = childrenSection
	case "vars":
		p.kind = varsSection
	default:
		return p.errorf("section [%s:%s] has unknown type: %s", name, suffix, suffix)
	}

	if p.kind == varsSection {
		if _, ok := p.inv.GroupIndex(name); !ok && name != UngroupedGroup {
			if _, ok := p.pending[name]; !ok {
				p.pending[name] = p.lineno
			}
		}
	} else {
		delete(p.pending, name)
	}
	p.group = p.inv.AddGroup(name)
	return nil
}

func (p *iniParser) parseHostLine(line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return p.errorf("error parsing host definition '%s': %v", line, err)
	}
	if len(tokens) == 0 {
		return nil
	}

	names, port, err := parseHostPattern(tokens[0])
	if err != nil {
		return p.errorf("%v", err)
	}

	type assignment struct {
		key   string
		value interface{}
	}
	vars := make([]assignment, 0, len(tokens)-1)
	for _, t := range tokens[1:] {
		k, v, ok := strings.Cut(t, "=")
		if !ok || k == "" {
			return p.errorf("expected key=value host variable assignment, got: %s", t)
		}
		vars = append(vars, assignment{key: k, value: parseValue(v)})
	}

	if p.group < 0 {
		p.group = p.inv.AddGroup(UngroupedGroup)
	}
	for _, name := range names {
		h := p.inv.AddHost(name)
		if port != 0 {
			p.inv.SetHostVar(h, "ansible_port", port)
		}
		for _, a := range vars {
			p.inv.SetHostVar(h, a.key, a.value)
		}
		p.inv.AddMember(p.group, h)
	}
	return nil
}

func (p *iniParser) parseChildLine(line string) error {
	m := groupNamePattern.FindStringSubmatch(line)
	if m == nil {
		return p.errorf("expected group name, got: %s", line)
	}
	delete(p.pending, m[1])
	child := p.inv.AddGroup(m[1])
	if err := p.inv.AddChild(p.group, child); err != nil {
		return p.errorf("%v", err)
	}
	return nil
}

func (p *iniParser) parseVarLine(line string) error {
	k, v, ok := strings.Cut(line, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return p.errorf("expected key=value, got: %s", line)
	}
	p.inv.SetGroupVar(p.group, k, parseValue(v))
	return nil
}

// checkPending fails on the first [name:vars] section whose group was
// never declared.
func (p *iniParser) checkPending() error {
	name, line := "", 0
	for n, l := range p.pending {
		if line == 0 || l < line {
			name, line = n, l
		}
	}
	if line == 0 {
		return nil
	}
	return &ParseError{
		File: p.filename,
		Line: line,
		Msg:  fmt.Sprintf("section [%s:vars] not valid for undefined group: %s", name, name),
	}
}
