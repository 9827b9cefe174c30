// Package frontmatter reads and writes markdown documents that open with a
// YAML header between --- lines, as used by the report and vault outputs.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

const delim = "---\n"

var (
	ErrNoOpening = errors.New("frontmatter: missing opening --- delimiter")
	ErrNoClosing = errors.New("frontmatter: missing closing --- delimiter")
)

// Parse splits a document into its raw YAML header and the body after the
// closing delimiter.
func Parse(data []byte) (header, body []byte, err error) {
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, nil, ErrNoOpening
	}
	rest := data[len(delim):]
	var idx int
	if bytes.HasPrefix(rest, []byte(delim)) {
		idx = 0
	} else if idx = bytes.Index(rest, []byte("\n"+delim)); idx >= 0 {
		idx++
	} else if bytes.HasSuffix(rest, []byte("\n---")) {
		return rest[:len(rest)-3], nil, nil
	} else {
		return nil, nil, ErrNoClosing
	}
	return rest[:idx], rest[idx+len(delim):], nil
}

// Decode parses data, unmarshals the header into v and returns the body.
func Decode(data []byte, v any) ([]byte, error) {
	header, body, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(header, v); err != nil {
		return nil, fmt.Errorf("frontmatter: unmarshal: %w", err)
	}
	return body, nil
}

// Write marshals v as the YAML header and appends body.
func Write(v any, body string) ([]byte, error) {
	header, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim)
	buf.Write(header)
	buf.WriteString(delim)
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// Tags renders a header that carries only a tag list.
func Tags(tags ...string) string {
	out, err := Write(struct {
		Tags []string `yaml:"tags"`
	}{Tags: tags}, "")
	if err != nil {
		// A string slice always marshals.
		panic(err)
	}
	return string(out)
}
