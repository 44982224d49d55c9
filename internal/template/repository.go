// Package template loads wiki page templates from a YAML file and renders
// them to Confluence storage format.
package template

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devhatch/wikigen/internal/errors"
)

// Template is one workflow's page body template.
type Template struct {
	WorkflowType string
	Body         string
	Description  string
}

// TitleFormats holds the year and month container page title templates.
type TitleFormats struct {
	Year  string
	Month string
}

// templateFile mirrors the YAML layout.
type templateFile struct {
	TitleFormats struct {
		Year  string `yaml:"year"`
		Month string `yaml:"month"`
	} `yaml:"title_formats"`
	Workflows map[string]struct {
		Description string `yaml:"description"`
		Body        string `yaml:"body"`
	} `yaml:"workflows"`
}

// Repository reads templates from a YAML file. The parsed file is cached and
// reloaded automatically when the file's mtime advances, so templates can be
// edited without restarting the server.
type Repository struct {
	path string

	mu         sync.Mutex
	cache      *templateFile
	cacheMtime time.Time
}

// NewRepository creates a Repository backed by the YAML file at path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// load returns the cached file, re-reading it when stale.
func (r *Repository) load() (*templateFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := os.Stat(r.path)
	if err != nil {
		return nil, errors.NewNotFound("template file", r.path)
	}

	if r.cache != nil && !info.ModTime().After(r.cacheMtime) {
		return r.cache, nil
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, errors.NewInternal("read template file: " + err.Error())
	}
	var parsed templateFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.NewInternal("parse template file: " + err.Error())
	}

	r.cache = &parsed
	r.cacheMtime = info.ModTime()
	log.Printf("templates loaded: path=%s workflows=%d", r.path, len(parsed.Workflows))
	return r.cache, nil
}

// TitleFormats returns the year/month title templates, with Korean defaults
// when the file leaves them unset.
func (r *Repository) TitleFormats() (TitleFormats, error) {
	data, err := r.load()
	if err != nil {
		return TitleFormats{}, err
	}
	formats := TitleFormats{
		Year:  data.TitleFormats.Year,
		Month: data.TitleFormats.Month,
	}
	if formats.Year == "" {
		formats.Year = "{{.YEAR}}년"
	}
	if formats.Month == "" {
		formats.Month = "{{.MONTH}}월"
	}
	return formats, nil
}

// WorkflowTemplate returns the template for a workflow type.
func (r *Repository) WorkflowTemplate(workflowType string) (*Template, error) {
	data, err := r.load()
	if err != nil {
		return nil, err
	}
	wf, ok := data.Workflows[workflowType]
	if !ok {
		available := make([]string, 0, len(data.Workflows))
		for name := range data.Workflows {
			available = append(available, name)
		}
		sort.Strings(available)
		return nil, errors.NewValidation(fmt.Sprintf(
			"unknown workflow template %q, available: %v", workflowType, available))
	}
	return &Template{
		WorkflowType: workflowType,
		Body:         wf.Body,
		Description:  wf.Description,
	}, nil
}

// Workflows lists the defined workflow types with their descriptions.
func (r *Repository) Workflows() (map[string]string, error) {
	data, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(data.Workflows))
	for name, wf := range data.Workflows {
		out[name] = wf.Description
	}
	return out, nil
}

// Reload drops the cache so the next read hits the file again.
func (r *Repository) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = nil
	r.cacheMtime = time.Time{}
}
