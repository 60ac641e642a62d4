package reference

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFlexString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"Title"`, "Title"},
		{`2020`, "2020"},
		{`["First", "Second"]`, "First"},
		{`["", "Second"]`, "Second"},
		{`[]`, ""},
		{`{"a": 1}`, ""},
		{`null`, ""},
	}

	for _, tt := range tests {
		var f FlexString
		if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
			t.Errorf("Unmarshal(%s) returned error: %v", tt.input, err)
		}
		if f.String() != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, f.String(), tt.want)
		}
	}
}

func TestFlexList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{`["Smith", "Jones"]`, []string{"Smith", "Jones"}},
		{`"Smith"`, []string{"Smith"}},
		{`[1, "", "x"]`, []string{"1", "x"}},
		{`{}`, nil},
	}

	for _, tt := range tests {
		var f FlexList
		_ = json.Unmarshal([]byte(tt.input), &f)
		if !reflect.DeepEqual([]string(f), tt.want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, f, tt.want)
		}
	}
}

func TestRawReference_MixedShapes(t *testing.T) {
	input := `{"DOI": "10.1/x", "author": "Smith", "year": 2020, "article-title": ["T"]}`
	var ref RawReference
	if err := json.Unmarshal([]byte(input), &ref); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !ref.HasDOI() || ref.Year.String() != "2020" || ref.ArticleTitle.String() != "T" {
		t.Errorf("unexpected reference %+v", ref)
	}
	if len(ref.Author) != 1 || ref.Author[0] != "Smith" {
		t.Errorf("Author = %v", ref.Author)
	}
}

func TestParseYear(t *testing.T) {
	for input, want := range map[string]int{"2020": 2020, " 1999 ": 1999, "2020a": 0, "": 0} {
		if got := ParseYear(input); got != want {
			t.Errorf("ParseYear(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestSplitAuthors(t *testing.T) {
	got := SplitAuthors("Smith; Jones & Lee and Park,  ")
	want := []string{"Smith", "Jones", "Lee", "Park"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitAuthors = %v, want %v", got, want)
	}
}

func TestMetadata_Resolved(t *testing.T) {
	var nilMD *Metadata
	if nilMD.Resolved() {
		t.Error("nil metadata should not be resolved")
	}
	u := Unknown()
	if u.Resolved() {
		t.Error("Unknown() should not be resolved")
	}
	md := &Metadata{Title: "Real"}
	if !md.Resolved() {
		t.Error("titled metadata should be resolved")
	}
	if md.FirstAuthor() != "" {
		t.Error("FirstAuthor of no authors should be empty")
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleInput, RoleReference, RoleCitation} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if Role("bogus").Valid() {
		t.Error("bogus role should be invalid")
	}
}
