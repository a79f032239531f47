/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package scaffold ensures a managed repository carries the Route to Live
// descriptor files and an integration branch.
package scaffold

import (
	"context"
	"errors"
	"fmt"
	"path"

	"chainguard.dev/routetolive/reconcilers/internal/metrics"
	"chainguard.dev/routetolive/templater"
	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

const (
	// Folder holds the Route to Live descriptor files.
	Folder = "rtl"

	// CommitMessage is used for the single scaffold commit.
	CommitMessage = "Add essential files for NewRouteToLive"

	DefaultComponentTemplate = "dotnet-core-stateless-microservice-api"
	DefaultIntegrationBranch = "develop"
	DefaultBaseBranch        = "master"
)

var (
	selfPath       = path.Join(Folder, "self.yaml")
	dockerfilePath = path.Join(Folder, "Dockerfile.component")
	readmePath     = "README.md"
)

// WorkingCopy is the local clone the reconciler writes to.
type WorkingCopy interface {
	HasFile(path string) (bool, error)
	HasFolder(path string) (bool, error)
	AddFolder(path string) error
	WriteFile(path, content string) error
	CurrentBranch() (string, error)
	Checkout(branch string) error
	HasBranch(name string) (bool, error)
	CreateBranch(ctx context.Context, name, src string) error
	Commit(message string) (bool, error)
	Push(ctx context.Context) error
}

// Reconciler lays down the scaffold.
type Reconciler struct {
	templates         *templater.Templater
	componentTemplate string
	integrationBranch string
	baseBranch        string
	metrics           *metrics.Recorder
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithComponentTemplate overrides the component template named in self.yaml.
func WithComponentTemplate(name string) Option {
	return func(r *Reconciler) {
		if name != "" {
			r.componentTemplate = name
		}
	}
}

// WithIntegrationBranch overrides the branch created for integration.
func WithIntegrationBranch(name string) Option {
	return func(r *Reconciler) {
		if name != "" {
			r.integrationBranch = name
		}
	}
}

// WithBaseBranch overrides the branch the scaffold is committed to and the
// integration branch is created from.
func WithBaseBranch(name string) Option {
	return func(r *Reconciler) {
		if name != "" {
			r.baseBranch = name
		}
	}
}

// WithMetrics replaces the recorder backed by the global providers.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New returns a Reconciler rendering from templates.
func New(templates *templater.Templater, opts ...Option) (*Reconciler, error) {
	if templates == nil {
		return nil, errors.New("templater cannot be nil")
	}
	r := &Reconciler{
		templates:         templates,
		componentTemplate: DefaultComponentTemplate,
		integrationBranch: DefaultIntegrationBranch,
		baseBranch:        DefaultBaseBranch,
		metrics:           metrics.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Result describes what a Reconcile call changed.
type Result struct {
	// Written lists the files rendered into the working tree.
	Written []string
	// Committed is true when a commit was created and pushed.
	Committed bool
	// CreatedBranch is true when the integration branch was pushed.
	CreatedBranch bool
}

type templateData struct {
	Name              string
	ComponentTemplate string
	IntegrationBranch string
}

type selfDescriptor struct {
	Name              string `yaml:"name"`
	ComponentTemplate string `yaml:"componentTemplate"`
}

// Reconcile brings the working copy of repository name up to the scaffold.
// Existing descriptor files are left alone; README.md is always replaced by a
// fresh rendering. A changed tree produces exactly one commit and one push,
// and the integration branch is pushed when origin does not have it yet.
func (r *Reconciler) Reconcile(ctx context.Context, name string, wc WorkingCopy) (res *Result, err error) {
	if name == "" {
		return nil, errors.New("repository name cannot be empty")
	}
	if wc == nil {
		return nil, errors.New("working copy cannot be nil")
	}

	ctx, span := r.metrics.Start(ctx, "scaffold.reconcile", attribute.String("repository", name))
	defer func() { metrics.End(span, err) }()

	log := clog.FromContext(ctx).With("repository", name)
	ctx = clog.WithLogger(ctx, log)

	if err := r.checkoutBase(wc); err != nil {
		return nil, err
	}

	data := templateData{
		Name:              name,
		ComponentTemplate: r.componentTemplate,
		IntegrationBranch: r.integrationBranch,
	}
	res = &Result{}

	ok, err := wc.HasFolder(Folder)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", Folder, err)
	}
	if !ok {
		log.Infof("Creating folder %s", Folder)
		if err := wc.AddFolder(Folder); err != nil {
			return nil, fmt.Errorf("creating %s: %w", Folder, err)
		}
	}

	for _, f := range []struct {
		path      string
		template  string
		overwrite bool
		validate  func(string) error
	}{
		{path: selfPath, template: "self.yaml", validate: validateSelf(name)},
		{path: dockerfilePath, template: "Dockerfile.component"},
		{path: readmePath, template: "README.md", overwrite: true},
	} {
		if !f.overwrite {
			exists, err := wc.HasFile(f.path)
			if err != nil {
				return nil, fmt.Errorf("checking %s: %w", f.path, err)
			}
			if exists {
				log.Debugf("Keeping existing %s", f.path)
				continue
			}
		}
		content, err := r.templates.Render(f.template, data)
		if err != nil {
			return nil, err
		}
		if f.validate != nil {
			if err := f.validate(content); err != nil {
				return nil, err
			}
		}
		if err := wc.WriteFile(f.path, content); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.path, err)
		}
		res.Written = append(res.Written, f.path)
	}

	committed, err := wc.Commit(CommitMessage)
	if err != nil {
		return nil, err
	}
	if committed {
		log.Infof("Pushing scaffold commit to %s", r.baseBranch)
		if err := wc.Push(ctx); err != nil {
			return nil, err
		}
		res.Committed = true
		r.metrics.ScaffoldCommitted(ctx, name)
	} else {
		log.Debugf("Scaffold is up to date")
	}

	exists, err := wc.HasBranch(r.integrationBranch)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Infof("Creating branch %s from %s", r.integrationBranch, r.baseBranch)
		if err := wc.CreateBranch(ctx, r.integrationBranch, r.baseBranch); err != nil {
			return nil, fmt.Errorf("creating branch %s: %w", r.integrationBranch, err)
		}
		res.CreatedBranch = true
	}
	return res, nil
}

// checkoutBase switches to the base branch unless it is already checked out.
// A freshly initialised repository is already on it without any commits.
func (r *Reconciler) checkoutBase(wc WorkingCopy) error {
	current, err := wc.CurrentBranch()
	if err != nil {
		return err
	}
	if current == r.baseBranch {
		return nil
	}
	if err := wc.Checkout(r.baseBranch); err != nil {
		return fmt.Errorf("checking out %s: %w", r.baseBranch, err)
	}
	return nil
}

func validateSelf(name string) func(string) error {
	return func(content string) error {
		var d selfDescriptor
		if err := yaml.Unmarshal([]byte(content), &d); err != nil {
			return fmt.Errorf("rendered %s is not valid YAML: %w", selfPath, err)
		}
		if d.Name != name {
			return fmt.Errorf("rendered %s names %q, want %q", selfPath, d.Name, name)
		}
		if d.ComponentTemplate == "" {
			return fmt.Errorf("rendered %s has no componentTemplate", selfPath)
		}
		return nil
	}
}
