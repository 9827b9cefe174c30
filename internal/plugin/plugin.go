// Package plugin defines the extension points shared by strider's outputs
// and interactive commands.
package plugin

import "strider/internal/model"

// ConfigQuestion describes a single interactive prompt.
type ConfigQuestion struct {
	Key     string
	Prompt  string
	Type    string // "text" or "bool"
	Default string
}

// Output is a read-only projection of an analyzed model into one file.
type Output interface {
	// Name returns the output's canonical short identifier (e.g. "sarif").
	Name() string

	// Filename returns the path, relative to the output directory, the
	// rendered content is written to.
	Filename() string

	// Render projects m. Rendering the same model twice yields identical bytes.
	Render(m *model.Model) (string, error)
}

// Func adapts a render function to the Output interface.
type Func struct {
	OutputName string
	File       string
	Fn         func(m *model.Model) (string, error)
}

func (f Func) Name() string                          { return f.OutputName }
func (f Func) Filename() string                      { return f.File }
func (f Func) Render(m *model.Model) (string, error) { return f.Fn(m) }
