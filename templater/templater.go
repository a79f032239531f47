/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package templater renders the scaffold files of a managed repository from
// text/template sources. A Templater is built by the caller and passed to
// whoever renders.
package templater

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const suffix = ".tmpl"

//go:embed templates/*.tmpl
var builtin embed.FS

// Templater renders named templates.
type Templater struct {
	templates map[string]*template.Template
}

// New parses every *.tmpl file at the root of fsys. A file named
// "self.yaml.tmpl" is rendered with the name "self.yaml".
func New(fsys fs.FS) (*Templater, error) {
	if fsys == nil {
		return nil, errors.New("template filesystem cannot be nil")
	}
	matches, err := fs.Glob(fsys, "*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	if len(matches) == 0 {
		return nil, errors.New("no templates found")
	}

	t := &Templater{templates: make(map[string]*template.Template, len(matches))}
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", m, err)
		}
		name := strings.TrimSuffix(path.Base(m), suffix)
		tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcs).Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", m, err)
		}
		t.templates[name] = tmpl
	}
	return t, nil
}

var funcs = template.FuncMap{
	"yaml": yamlScalar,
}

// yamlScalar encodes v as a single YAML value, quoting strings such as "null"
// or "a #b" that would otherwise read back as something else.
func yamlScalar(v any) (string, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}

// Default returns a Templater over the built-in scaffold templates.
func Default() (*Templater, error) {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	return New(sub)
}

// Names lists the available templates in sorted order.
func (t *Templater) Names() []string {
	names := make([]string, 0, len(t.templates))
	for n := range t.templates {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Render executes the named template with data.
func (t *Templater) Render(name string, data any) (string, error) {
	tmpl, ok := t.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return sb.String(), nil
}
