// Package container manages the ~/.strider/ workspace hierarchy.
//
// Directory layout:
//
//	~/.strider/<workspace>/
//	    <model>.yaml             # model file, see internal/modelfile
//	    <model>/                 # outputs written by `strider analyze`
package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"strider/internal/model"
	"strider/internal/modelfile"
)

// Workspace represents a named strider workspace directory (~/.strider/<name>/).
type Workspace struct {
	Dir string
}

// baseDir returns the base ~/.strider directory.
func baseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".strider"), nil
}

// Init creates ~/.strider/<name>/ and errors if it already exists.
func Init(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	base, err := baseDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(base, name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("workspace %q already exists at %s", name, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

// Open opens an existing workspace directory. Returns an error if not found.
func Open(name string) (*Workspace, error) {
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(base, name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("workspace %q not found (run 'strider init %s' first)", name, name)
	}
	return &Workspace{Dir: dir}, nil
}

// List returns the names of all workspaces under ~/.strider/.
func List() ([]string, error) {
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read strider dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Remove deletes a workspace and all its contents.
func Remove(name string) error {
	base, err := baseDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(base, name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("workspace %q not found", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

// modelPath returns the path to <name>.yaml inside the workspace.
func (w *Workspace) modelPath(name string) string {
	return filepath.Join(w.Dir, name+".yaml")
}

// OutputDir returns the directory that holds a model's generated outputs.
func (w *Workspace) OutputDir(name string) string {
	return filepath.Join(w.Dir, name)
}

// AddModel writes m as <name>.yaml. Errors if the model already exists.
func (w *Workspace) AddModel(name string, m *model.Model) error {
	if err := checkName(name); err != nil {
		return err
	}
	path := w.modelPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("model %q already exists in workspace", name)
	}
	return modelfile.Save(m, path)
}

// ImportModel decodes the model file at src and adds it under name. The
// file is rejected if it does not decode into a valid model.
func (w *Workspace) ImportModel(name, src string) error {
	m, err := modelfile.Load(src)
	if err != nil {
		return err
	}
	if m.State() == model.Draft {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
	}
	return w.AddModel(name, m)
}

// LoadModel reads and decodes a model file.
func (w *Workspace) LoadModel(name string) (*model.Model, error) {
	if _, err := os.Stat(w.modelPath(name)); err != nil {
		return nil, fmt.Errorf("model %q not found in workspace", name)
	}
	return modelfile.Load(w.modelPath(name))
}

// ListModels returns model names derived from *.yaml files in the
// workspace, sorted.
func (w *Workspace) ListModels() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("read workspace dir: %w", err)
	}
	var models []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") {
			models = append(models, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	slices.Sort(models)
	return models, nil
}

// RemoveModel removes a model file and its output directory.
func (w *Workspace) RemoveModel(name string) error {
	path := w.modelPath(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("model %q not found in workspace", name)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove model file: %w", err)
	}
	outDir := w.OutputDir(name)
	if _, err := os.Stat(outDir); err == nil {
		if err := os.RemoveAll(outDir); err != nil {
			return fmt.Errorf("remove model outputs: %w", err)
		}
	}
	return nil
}

// Review writes a flattened copy of every model's outputs into
// dst/.tmp/threat-review/<model>/. Model .yaml files are excluded. The
// provided description is written to index.md.
//
// Creates dst/.tmp/ if it doesn't exist. Errors if the target directory
// already exists.
func (w *Workspace) Review(dst, description string) (string, error) {
	tmpDir := filepath.Join(dst, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create .tmp dir: %w", err)
	}
	target := filepath.Join(tmpDir, "threat-review")
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("review target %q already exists", target)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create review dir: %w", err)
	}

	models, err := w.ListModels()
	if err != nil {
		return "", err
	}
	for _, name := range models {
		src := w.OutputDir(name)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("read model outputs %q: %w", name, err)
		}
		if err := copyDir(src, filepath.Join(target, name)); err != nil {
			return "", fmt.Errorf("copy %s: %w", name, err)
		}
	}

	if err := os.WriteFile(filepath.Join(target, "index.md"), []byte(description), 0o644); err != nil {
		return "", fmt.Errorf("write index.md: %w", err)
	}
	return target, nil
}

// checkName rejects names that would escape the workspace directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}

// copyDir recursively copies src to dst.
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target)
	})
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
