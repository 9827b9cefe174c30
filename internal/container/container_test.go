package container_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"strider/internal/container"
	"strider/internal/model"
)

// withTempHome redirects os.UserHomeDir to a temp directory for the duration of the test.
func withTempHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	return tmp
}

func openWorkspace(t *testing.T, name string) *container.Workspace {
	t.Helper()
	if err := container.Init(name); err != nil {
		t.Fatal(err)
	}
	w, err := container.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func smallModel(t *testing.T, name string) *model.Model {
	t.Helper()
	m := model.New(name, false)
	a, err := m.CreateElement(model.Actor, "user")
	if err != nil {
		t.Fatal(err)
	}
	p, err := m.CreateElement(model.Process, "api")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddDataflow(a, p, "request", model.Protocol("https")); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestInitAndOpen(t *testing.T) {
	tmp := withTempHome(t)

	if err := container.Init("shop"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Directory must exist.
	dir := filepath.Join(tmp, ".strider", "shop")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("workspace dir not created: %v", err)
	}

	// Init again must fail.
	if err := container.Init("shop"); err == nil {
		t.Fatal("expected error on duplicate Init")
	}

	w, err := container.Open("shop")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if w.Dir != dir {
		t.Errorf("Dir mismatch: got %s want %s", w.Dir, dir)
	}
}

func TestInitRejectsPathNames(t *testing.T) {
	withTempHome(t)
	for _, name := range []string{"", "..", "a/b"} {
		if err := container.Init(name); err == nil {
			t.Errorf("Init(%q): expected error", name)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	withTempHome(t)
	_, err := container.Open("notexist")
	if err == nil {
		t.Fatal("expected error for missing workspace")
	}
	if !strings.Contains(err.Error(), "strider init notexist") {
		t.Errorf("error should suggest init: %v", err)
	}
}

func TestListAndRemove(t *testing.T) {
	withTempHome(t)

	names, err := container.List()
	if err != nil || len(names) != 0 {
		t.Fatalf("List on empty home: %v %v", names, err)
	}
	openWorkspace(t, "a")
	openWorkspace(t, "b")

	names, err = container.List()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"a", "b"}) {
		t.Fatalf("List = %v", names)
	}

	if err := container.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := container.Remove("a"); err == nil {
		t.Fatal("expected error removing a missing workspace")
	}
}

func TestAddModelAndLoad(t *testing.T) {
	withTempHome(t)
	w := openWorkspace(t, "c")

	if err := w.AddModel("shop", smallModel(t, "Shop")); err != nil {
		t.Fatalf("AddModel: %v", err)
	}

	// Duplicate must fail.
	if err := w.AddModel("shop", smallModel(t, "Shop")); err == nil {
		t.Fatal("expected error on duplicate AddModel")
	}

	got, err := w.LoadModel("shop")
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if got.Name() != "Shop" || len(got.Elements()) != 2 || len(got.Dataflows()) != 1 {
		t.Errorf("unexpected model: %s, %d elements, %d flows", got.Name(), len(got.Elements()), len(got.Dataflows()))
	}

	if _, err := w.LoadModel("missing"); err == nil {
		t.Fatal("expected error loading a missing model")
	}
}

func TestImportModel(t *testing.T) {
	withTempHome(t)
	w := openWorkspace(t, "c")

	src := filepath.Join(t.TempDir(), "in.yaml")
	doc := "name: Imported\nelements:\n  - {id: a, kind: actor, name: a}\n  - {id: p, kind: process, name: p}\ndataflows:\n  - {source: a, sink: p, label: go, protocol: https}\n"
	if err := os.WriteFile(src, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.ImportModel("imported", src); err != nil {
		t.Fatalf("ImportModel: %v", err)
	}
	m, err := w.LoadModel("imported")
	if err != nil {
		t.Fatal(err)
	}
	if m.State() != model.Validated {
		t.Errorf("imported model state = %s, want validated", m.State())
	}

	// A model that fails validation is not added.
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	doc = "name: Bad\nelements:\n  - {id: a, kind: actor, name: a}\n  - {id: p, kind: process, name: p}\ndataflows:\n  - {source: a, sink: p, label: go}\n"
	if err := os.WriteFile(bad, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.ImportModel("bad", bad); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(filepath.Join(w.Dir, "bad.yaml")); !os.IsNotExist(err) {
		t.Errorf("invalid model was written: %v", err)
	}
}

func TestListModels(t *testing.T) {
	withTempHome(t)
	w := openWorkspace(t, "c")

	names, err := w.ListModels()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("expected 0 models, got %d", len(names))
	}

	w.AddModel("beta", smallModel(t, "Beta"))
	w.AddModel("alpha", smallModel(t, "Alpha"))
	os.MkdirAll(w.OutputDir("alpha"), 0o755)

	names, err = w.ListModels()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"alpha", "beta"}) {
		t.Fatalf("expected [alpha beta], got %v", names)
	}
}

func TestRemoveModel(t *testing.T) {
	withTempHome(t)
	w := openWorkspace(t, "c")
	w.AddModel("shop", smallModel(t, "Shop"))

	out := w.OutputDir("shop")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(out, "report.md"), []byte("# report"), 0o644)

	if err := w.RemoveModel("shop"); err != nil {
		t.Fatalf("RemoveModel: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output dir still present: %v", err)
	}
	if err := w.RemoveModel("shop"); err == nil {
		t.Fatal("expected error removing a missing model")
	}
}

func TestReview(t *testing.T) {
	withTempHome(t)
	w := openWorkspace(t, "c")
	w.AddModel("shop", smallModel(t, "Shop"))
	w.AddModel("idle", smallModel(t, "Idle"))

	out := filepath.Join(w.OutputDir("shop"), "vault")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(w.OutputDir("shop"), "report.md"), []byte("# report"), 0o644)
	os.WriteFile(filepath.Join(out, "index.md"), []byte("# vault"), 0o644)

	dst := t.TempDir()
	target, err := w.Review(dst, "Q3 review")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if want := filepath.Join(dst, ".tmp", "threat-review"); target != want {
		t.Errorf("target = %s, want %s", target, want)
	}

	for rel, want := range map[string]string{
		"index.md":            "Q3 review",
		"shop/report.md":      "# report",
		"shop/vault/index.md": "# vault",
	} {
		got, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(target, "idle")); !os.IsNotExist(err) {
		t.Errorf("model without outputs should be skipped: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "shop.yaml")); !os.IsNotExist(err) {
		t.Errorf("model files must not be copied: %v", err)
	}

	// A second review into the same destination must fail.
	if _, err := w.Review(dst, "again"); err == nil {
		t.Fatal("expected error when review target exists")
	}
}
