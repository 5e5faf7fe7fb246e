package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_GroupsAndHostvars(t *testing.T) {
	inv := parseINI(t, `
[web]
a
b
[web:vars]
env=prod
[db]
c
`)
	doc := inv.Document()

	assert.Equal(t, GroupDocument{
		Children: []string{},
		Hosts:    []string{"a", "b"},
		Vars:     Vars{"env": "prod"},
	}, doc.Groups["web"])
	assert.Equal(t, GroupDocument{
		Children: []string{},
		Hosts:    []string{"c"},
		Vars:     Vars{},
	}, doc.Groups["db"])
	assert.NotContains(t, doc.Groups, AllGroup)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"web": {"children": [], "hosts": ["a", "b"], "vars": {"env": "prod"}},
		"db": {"children": [], "hosts": ["c"], "vars": {}},
		"_meta": {"hostvars": {"a": {}, "b": {}, "c": {}}}
	}`, string(out))
}

func TestDocument_Empty(t *testing.T) {
	out, err := json.Marshal(New().Document())
	require.NoError(t, err)
	assert.Equal(t, `{"_meta":{"hostvars":{}}}`, string(out))
}

func TestDocument_LaterAssignmentWins(t *testing.T) {
	inv := parseINI(t, `
[legacy]
a role=legacy
[web]
a role=web
`)
	doc := inv.Document()
	assert.Equal(t, "web", doc.Meta.HostVars["a"]["role"])
}

func TestDocument_Children(t *testing.T) {
	inv := parseINI(t, `
[prod:children]
web
db
[prod:vars]
tier=gold
[web]
a
[db]
b
`)
	doc := inv.Document()

	assert.Equal(t, []string{"web", "db"}, doc.Groups["prod"].Children)
	assert.Empty(t, doc.Groups["prod"].Hosts)
	// no inheritance: children keep only their own vars
	assert.Equal(t, Vars{}, doc.Groups["web"].Vars)
	assert.Equal(t, Vars{}, doc.Meta.HostVars["a"])
	assert.Len(t, doc.Meta.HostVars, 2)
}

func TestDocument_HostVarsAreCopies(t *testing.T) {
	inv := parseINI(t, "[web]\na x=1\n")
	doc := inv.Document()
	doc.Meta.HostVars["a"]["x"] = "changed"
	assert.Equal(t, int64(1), mustHost(t, inv, "a").Vars["x"])
}

func TestDocument_RebuiltOnEachCall(t *testing.T) {
	inv := New()
	web := inv.AddGroup("web")
	h := inv.AddHost("a")
	inv.SetHostVar(h, "role", "web")
	inv.AddMember(web, h)
	inv.attachRoots()

	doc := inv.Document()
	doc.Meta.HostVars["a"]["extra"] = true

	// a second serialization starts from scratch
	again := inv.Document()
	assert.Equal(t, Vars{"role": "web"}, again.Meta.HostVars["a"])
}

func TestDocument_SkipsReservedGroupName(t *testing.T) {
	inv := parseINI(t, "[_meta]\na\n")
	doc := inv.Document()

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_meta": {"hostvars": {"a": {}}}}`, string(out))
}
