package graph

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/papernet/internal/reference"
)

func resolved(title string, year int) *reference.Metadata {
	return &reference.Metadata{Title: title, Authors: []string{"Smith"}, Year: year, Venue: "J"}
}

func TestUpsertNode_IdempotentMerge(t *testing.T) {
	g := New()
	md := resolved("Paper", 2020)

	if !g.UpsertNode("a", reference.RoleReference, "p", md) {
		t.Error("first upsert should create")
	}
	if g.UpsertNode("a", reference.RoleReference, "p", nil) {
		t.Error("second upsert should merge")
	}

	n, _ := g.Node("a")
	if len(n.Roles) != 2 {
		t.Fatalf("roles = %v, want 2 entries", n.Roles)
	}
	if n.Metadata.Title != "Paper" || n.Metadata.Year != 2020 {
		t.Errorf("metadata overwritten: %+v", n.Metadata)
	}
	if nodes, _ := g.Size(); nodes != 1 {
		t.Errorf("node count = %d, want 1", nodes)
	}
}

func TestUpsertNode_UnknownUpgrade(t *testing.T) {
	g := New()
	g.UpsertNode("a", reference.RoleCitation, "p", nil)

	n, _ := g.Node("a")
	if n.Metadata.Title != reference.UnknownTitle {
		t.Fatalf("title = %q, want Unknown", n.Metadata.Title)
	}

	g.UpsertNode("a", reference.RoleReference, "q", resolved("Found", 2001))
	n, _ = g.Node("a")
	if n.Metadata.Title != "Found" {
		t.Errorf("unresolved metadata not upgraded: %+v", n.Metadata)
	}

	g.UpsertNode("a", reference.RoleReference, "r", resolved("Other", 1999))
	n, _ = g.Node("a")
	if n.Metadata.Title != "Found" {
		t.Errorf("resolved metadata replaced: %+v", n.Metadata)
	}
}

func TestUpsertNode_Highlight(t *testing.T) {
	g := New()
	g.UpsertNode("a", reference.RoleReference, "p", nil)
	if n, _ := g.Node("a"); n.Highlight {
		t.Error("reference discovery should not highlight")
	}
	g.UpsertNode("a", reference.RoleInput, "", nil)
	g.UpsertNode("a", reference.RoleCitation, "q", nil)
	n, _ := g.Node("a")
	if !n.Highlight {
		t.Error("input discovery on merge should highlight and stay set")
	}
	want := []reference.Role{reference.RoleReference, reference.RoleInput, reference.RoleCitation}
	for i, d := range n.Roles {
		if d.Role != want[i] {
			t.Errorf("role[%d] = %s, want %s", i, d.Role, want[i])
		}
	}
}

func TestUpsertNode_PlaceholderTitle(t *testing.T) {
	g := New()
	g.UpsertNode("title:foo-bar-2020", reference.RoleReference, "x", nil)
	n, _ := g.Node("title:foo-bar-2020")
	if n.Metadata.Title == reference.UnknownTitle || n.Metadata.Title == "" {
		t.Errorf("placeholder node title = %q, want derived title", n.Metadata.Title)
	}
}

func TestLink_Directionality(t *testing.T) {
	tests := []struct {
		name       string
		role       reference.Role
		from, id   string
		wantSource string
		wantTarget string
		wantAdded  bool
	}{
		{"reference points parent to child", reference.RoleReference, "A", "B", "A", "B", true},
		{"citation points child to parent", reference.RoleCitation, "A", "C", "C", "A", true},
		{"input adds nothing", reference.RoleInput, "", "A", "", "", false},
		{"self reference kept", reference.RoleReference, "S", "S", "S", "S", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			added := g.Link(tt.role, tt.from, tt.id)
			if added != tt.wantAdded {
				t.Fatalf("Link added = %v, want %v", added, tt.wantAdded)
			}
			if !tt.wantAdded {
				if _, edges := g.Size(); edges != 0 {
					t.Errorf("edges = %d, want 0", edges)
				}
				return
			}
			if !g.HasEdge(tt.wantSource, tt.wantTarget) {
				t.Errorf("missing edge %s→%s; have %v", tt.wantSource, tt.wantTarget, g.Edges())
			}
			if g.Link(tt.role, tt.from, tt.id) {
				t.Error("rediscovery created a duplicate edge")
			}
			if _, edges := g.Size(); edges != 1 {
				t.Errorf("edges = %d, want 1", edges)
			}
		})
	}
}

func TestLink_ReferenceAndCitationSameEdge(t *testing.T) {
	g := New()
	// A cites B, found once from each side.
	g.Link(reference.RoleReference, "A", "B")
	g.Link(reference.RoleCitation, "B", "A")
	if _, edges := g.Size(); edges != 1 {
		t.Errorf("edges = %d, want 1", edges)
	}
}

func TestNodeLink_RoundTrip(t *testing.T) {
	g := New()
	g.UpsertNode("x", reference.RoleInput, "", resolved("Seed", 2019))
	g.UpsertNode("y", reference.RoleReference, "x", nil)
	g.Link(reference.RoleReference, "x", "y")
	g.UpsertNode("z", reference.RoleCitation, "x", resolved("Citer", 2023))
	g.Link(reference.RoleCitation, "x", "z")

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(g.NodeLink()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"roles":[["input",null]]`) {
		t.Errorf("seed roles not encoded as pairs: %s", out)
	}
	if !strings.Contains(out, `"year":null`) {
		t.Errorf("unknown year not encoded as null: %s", out)
	}

	loaded, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	nodes, edges := loaded.Size()
	if nodes != 3 || edges != 2 {
		t.Fatalf("loaded size = (%d, %d), want (3, 2)", nodes, edges)
	}
	x, _ := loaded.Node("x")
	if !x.Highlight || x.Metadata.Year != 2019 || len(x.Roles) != 1 || x.Roles[0].From != "" {
		t.Errorf("seed node not restored: %+v", x)
	}
	if !loaded.HasEdge("z", "x") {
		t.Error("citation edge not restored")
	}
}

func TestRead_LinksAndDanglingEdges(t *testing.T) {
	input := `{
		"nodes": [
			{"id": "a", "title": "A", "roles": [["reference", "b"], ["bogus", "c"]]},
			{"id": "b", "title": "B"}
		],
		"links": [{"source": "b", "target": "a"}, {"source": "a", "target": "missing"}]
	}`
	g, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !g.HasEdge("b", "a") {
		t.Error("edge from links list missing")
	}
	if _, edges := g.Size(); edges != 1 {
		t.Errorf("edges = %d, want 1 (dangling edge dropped)", edges)
	}
	a, _ := g.Node("a")
	if len(a.Roles) != 1 {
		t.Errorf("roles = %v, want unknown role dropped", a.Roles)
	}
}

func TestRead_Invalid(t *testing.T) {
	if _, err := Read(strings.NewReader("[")); err == nil {
		t.Error("Read of invalid JSON should fail")
	}
}

func TestLoadNodeLink_KeepsAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	input := `{"directed": true, "graph": {"run_id": "r1"}, "nodes": [{"id": "a"}], "edges": []}`
	if err := os.WriteFile(path, []byte(input), 0644); err != nil {
		t.Fatal(err)
	}

	nl, err := LoadNodeLink(path)
	if err != nil {
		t.Fatalf("LoadNodeLink failed: %v", err)
	}
	if nl.Attrs["run_id"] != "r1" {
		t.Errorf("attrs = %v, want run_id r1", nl.Attrs)
	}

	g, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !g.Has("a") {
		t.Error("node a missing")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load of missing file should fail")
	}
}
