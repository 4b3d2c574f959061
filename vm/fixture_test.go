package vm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Fixture loading
// ---------------------------------------------------------------------------

func TestNewDemo_Loads(t *testing.T) {
	vm := NewDemo()

	for _, name := range []string{"demo.Point", "demo.Widget", "demo.Overloads", "demo.Lazy", "demo.Main"} {
		if !vm.Classes.Has(name) {
			t.Errorf("class %s not loaded", name)
		}
	}
	for _, name := range []string{"p", "origin", "widget", "overloads", "nums", "names", "points"} {
		if _, ok := vm.Named(name); !ok {
			t.Errorf("object %s not loaded", name)
		}
	}
	if got := len(vm.Threads()); got != 3 {
		t.Errorf("got %d threads, want 3", got)
	}
	if mustClass(t, vm, "demo.Lazy").Prepared() {
		t.Error("demo.Lazy should be unprepared")
	}
}

func TestNewDemo_Locals(t *testing.T) {
	vm := NewDemo()
	frame, err := vm.Frame(mustThread(t, vm, "main"), 0)
	if err != nil {
		t.Fatalf("Frame returned error: %v", err)
	}

	tests := []struct {
		name string
		tag  target.Tag
	}{
		{"i", target.TagInt},
		{"n", target.TagLong},
		{"d", target.TagDouble},
		{"f", target.TagFloat},
		{"c", target.TagChar},
		{"b", target.TagByte},
		{"flag", target.TagBool},
		{"s", target.TagText},
		{"obj", target.TagNull},
		{"arr", target.TagArray},
		{"ov", target.TagObject},
		{"p", target.TagObject},
	}
	for _, tt := range tests {
		v, ok, err := frame.VariableByName(tt.name)
		if err != nil || !ok {
			t.Errorf("VariableByName(%q) = %v, %v", tt.name, ok, err)
			continue
		}
		val, err := frame.ReadVariable(v)
		if err != nil {
			t.Errorf("ReadVariable(%q) returned error: %v", tt.name, err)
			continue
		}
		if val.Tag() != tt.tag {
			t.Errorf("%s has tag %v, want %v", tt.name, val.Tag(), tt.tag)
		}
	}

	v, _, _ := frame.VariableByName("n")
	n, _ := frame.ReadVariable(v)
	if n.Int64() != 9007199254740993 {
		t.Errorf("n = %d, want 9007199254740993", n.Int64())
	}
}

func TestNewDemo_StaticFields(t *testing.T) {
	vm := NewDemo()
	point := mustClass(t, vm, "demo.Point")
	count := point.LookupField("count")
	if count == nil || !count.static {
		t.Fatal("demo.Point.count should be a static field")
	}
	if v := count.staticValue(); v.Int64() != 2 {
		t.Errorf("count = %v, want 2", v)
	}
}

func TestLoadFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.toml")
	src := `
[[class]]
name = "t.Box"

  [[class.field]]
  name = "v"
  type = "long"

[[object]]
name = "box"
class = "t.Box"
fields = { v = { value = 7 } }

[[thread]]
name = "main"

  [[thread.frame]]
  class = "t.Box"
  method = "run"
  this = "box"
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	vm, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture returned error: %v", err)
	}
	box := mustNamed(t, vm, "box")
	f, _, _ := vm.FieldByName(box.Type(), "v")
	v, _ := vm.ReadField(box, f)
	if v.Tag() != target.TagLong || v.Int64() != 7 {
		t.Errorf("box.v = %v, want long 7", v)
	}
	if mustThread(t, vm, "main").Depth() != 1 {
		t.Error("main should have one frame")
	}
}

func TestLoadFixture_MissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("LoadFixture should fail for a missing file")
	}
}

func TestParseFixture_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `[[class]`, "parse error"},
		{"unknown kind", "[[class]]\nname = \"a.A\"\nkind = \"enum\"", "unknown kind"},
		{"unknown super", "[[class]]\nname = \"a.A\"\nsuper = \"a.B\"", "unknown superclass"},
		{"duplicate class", "[[class]]\nname = \"java.lang.String\"", "already loaded"},
		{"unknown object class", "[[object]]\nname = \"x\"\nclass = \"a.Missing\"", "unknown class"},
		{"duplicate name", "[[class]]\nname = \"a.A\"\n[[object]]\nname = \"x\"\nclass = \"a.A\"\n[[object]]\nname = \"x\"\nclass = \"a.A\"", "duplicate name"},
		{"bad element", "[[array]]\nname = \"a\"\ncomponent = \"int\"\nelements = [{ value = \"s\" }]", "int literal"},
		{"unknown frame class", "[[thread]]\nname = \"t\"\n[[thread.frame]]\nclass = \"a.Missing\"\nmethod = \"m\"", "unknown class"},
	}
	for _, tt := range tests {
		_, err := ParseFixture([]byte(tt.src))
		if err == nil {
			t.Errorf("%s: ParseFixture should fail", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}
	}
}
