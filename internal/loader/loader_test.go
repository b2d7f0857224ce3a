package loader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/cryguy/scriptworker/internal/core"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func fileLoc(p string) core.Location {
	return core.Location("file://" + filepath.ToSlash(p))
}

func TestMux(t *testing.T) {
	mem := NewMemory()
	mem.Set("a", "var a = 1;")
	m := NewMux().Handle("mem", mem)

	src, err := m.Resolve("mem:a")
	if err != nil || src != "var a = 1;" {
		t.Fatalf("Resolve(mem:a) = %q, %v", src, err)
	}

	for _, loc := range []core.Location{"relative/path.js", "", "ftp://host/x.js"} {
		if _, err := m.Resolve(loc); !errors.Is(err, core.ErrUnresolvable) {
			t.Errorf("Resolve(%q) error = %v, want ErrUnresolvable", loc, err)
		}
	}

	if _, err := m.Resolve("mem:missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Resolve(mem:missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemory(t *testing.T) {
	mem := NewMemory()
	mem.Set("greeter", "one")
	mem.Set("greeter", "two")

	for _, loc := range []core.Location{"mem:greeter", "mem:///greeter"} {
		if src, err := mem.Resolve(loc); err != nil || src != "two" {
			t.Errorf("Resolve(%q) = %q, %v", loc, src, err)
		}
	}

	mem.Delete("greeter")
	if _, err := mem.Resolve("mem:greeter"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("after Delete: %v, want ErrNotFound", err)
	}
	if _, err := mem.Resolve("mem:"); !errors.Is(err, core.ErrUnresolvable) {
		t.Errorf("empty name: %v, want ErrUnresolvable", err)
	}
}

func TestFile_PlainJS(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "plain.js", []byte("WorkerScript.sendMessage(1);"))

	src, err := (&File{}).Resolve(fileLoc(p))
	if err != nil {
		t.Fatal(err)
	}
	if src != "WorkerScript.sendMessage(1);" {
		t.Errorf("src = %q", src)
	}
}

func TestFile_NotFound(t *testing.T) {
	_, err := (&File{}).Resolve(fileLoc(filepath.Join(t.TempDir(), "nope.js")))
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFile_Brotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write([]byte("var compressed = true;")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	p := writeFile(t, t.TempDir(), "worker.js.br", buf.Bytes())

	src, err := (&File{}).Resolve(fileLoc(p))
	if err != nil {
		t.Fatal(err)
	}
	if src != "var compressed = true;" {
		t.Errorf("src = %q", src)
	}
}

func TestFile_TypeScript(t *testing.T) {
	p := writeFile(t, t.TempDir(), "worker.ts", []byte(`
interface Msg { n: number }
const twice = (m: Msg): number => m.n * 2;
WorkerScript.onMessage = (m: Msg) => WorkerScript.sendMessage(twice(m));
`))

	src, err := (&File{}).Resolve(fileLoc(p))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(src, "interface") || strings.Contains(src, ": number") {
		t.Errorf("type annotations survived:\n%s", src)
	}
	if !strings.Contains(src, "WorkerScript.onMessage") {
		t.Errorf("transformed source lost the handler:\n%s", src)
	}
}

func TestFile_Bundle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib/math.js", []byte("export function triple(x) { return x * 3; }\n"))
	p := writeFile(t, dir, "main.js", []byte(`import { triple } from './lib/math.js';
WorkerScript.onMessage = function(m) { WorkerScript.sendMessage(triple(m)); };
`))

	src, err := (&File{}).Resolve(fileLoc(p))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(src, "import ") || strings.Contains(src, "export ") {
		t.Errorf("module syntax survived bundling:\n%s", src)
	}
	if !strings.Contains(src, "x * 3") {
		t.Errorf("imported function was not inlined:\n%s", src)
	}
}

func TestFile_BundleError(t *testing.T) {
	p := writeFile(t, t.TempDir(), "broken.js", []byte(`import { x } from './missing.js';`))
	if _, err := (&File{}).Resolve(fileLoc(p)); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want a bundling error", err)
	}
}

func TestFile_HTML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "page.html", []byte(`<!DOCTYPE html>
<html><head>
<script>var first = 1;</script>
<script src="external.js"></script>
<script type="text/template">not code</script>
</head><body>
<script type="text/javascript">var second = 2;</script>
</body></html>`))

	src, err := (&File{}).Resolve(fileLoc(p))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, "var first = 1;") || !strings.Contains(src, "var second = 2;") {
		t.Errorf("inline scripts missing:\n%s", src)
	}
	if strings.Index(src, "first") > strings.Index(src, "second") {
		t.Errorf("scripts out of document order:\n%s", src)
	}
	if strings.Contains(src, "not code") {
		t.Errorf("non-JS script included:\n%s", src)
	}
}

func TestFile_RootConfinement(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "secret.js", []byte("var secret;"))
	writeFile(t, base, "root/app.js", []byte("var app;"))
	f := &File{Root: filepath.Join(base, "root")}

	if src, err := f.Resolve("file:///app.js"); err != nil || src != "var app;" {
		t.Fatalf("Resolve(app.js) = %q, %v", src, err)
	}
	if _, err := f.Resolve("file:///../secret.js"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("escaping the root: error = %v, want ErrNotFound", err)
	}
}

func TestStore(t *testing.T) {
	s, err := OpenStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Put("greeter", "var v = 1;"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("greeter", "var v = 2;"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("adder", "var a;"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("", "x"); err == nil {
		t.Error("empty name should be rejected")
	}

	src, err := s.Resolve("db:greeter")
	if err != nil || src != "var v = 2;" {
		t.Errorf("Resolve(db:greeter) = %q, %v", src, err)
	}

	names, err := s.Names()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "adder,greeter" {
		t.Errorf("Names() = %v", names)
	}

	if err := s.Delete("greeter"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve("db:greeter"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("after Delete: %v, want ErrNotFound", err)
	}
}

func TestStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.sqlite3")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("persisted", "var p;"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if src, err := s.Resolve("db:persisted"); err != nil || src != "var p;" {
		t.Errorf("after reopen: %q, %v", src, err)
	}
}
