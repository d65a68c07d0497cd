// Package metaconfig registers query metadata from a YAML configuration file.
//
// Entries are lists instead of maps because viper lowercases map keys while operation names are case-sensitive:
//
//	metadata:
//	  templates:
//	    - name: reporting
//	      comment: "reporting query"
//	  operations:
//	    - name: findAllActive
//	      comment: "findAll query"
//	    - name: monthlyReport
//	      template: reporting
package metaconfig

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
)

// MetadataKey is the configuration key holding the metadata section.
const MetadataKey = "metadata"

var (
	// ErrUnknownTemplate is returned when an entry references a template which is not defined.
	ErrUnknownTemplate = errors.New("unknown query metadata template")

	// ErrTemplateCycle is returned when templates include each other in a cycle.
	ErrTemplateCycle = errors.New("query metadata templates form a cycle")

	// ErrDuplicateTemplate is returned when a template name is defined more than once.
	ErrDuplicateTemplate = errors.New("query metadata template defined twice")
)

// Config is the decoded metadata section.
type Config struct {
	Templates  []Entry `mapstructure:"templates"`
	Operations []Entry `mapstructure:"operations"`
}

// Entry defines the metadata of one template or operation.
// Comment is a pointer so that an explicit `comment: ""` can be told apart from a missing key.
type Entry struct {
	Name     string  `mapstructure:"name"`
	Comment  *string `mapstructure:"comment"`
	Template string  `mapstructure:"template"`
}

// Load reads the YAML file at path and builds a Registry from its metadata section.
func Load(path string) (*querymeta.Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read query metadata config: %w", err)
	}

	return FromViper(v)
}

// FromViper builds a Registry from the metadata section of an already loaded viper instance.
// A missing section results in an empty Registry.
func FromViper(v *viper.Viper) (*querymeta.Registry, error) {
	var cfg Config
	if err := v.UnmarshalKey(MetadataKey, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query metadata config: %w", err)
	}

	return Build(cfg)
}

// Build resolves all templates and registers all operations of cfg.
func Build(cfg Config) (*querymeta.Registry, error) {
	templates, err := resolveTemplates(cfg.Templates)
	if err != nil {
		return nil, err
	}

	registry := querymeta.NewRegistry()

	for _, entry := range cfg.Operations {
		meta, metaErr := buildMeta(entry, templates)
		if metaErr != nil {
			return nil, fmt.Errorf("operation %q: %w", entry.Name, metaErr)
		}

		if registerErr := registry.Register(entry.Name, meta); registerErr != nil {
			return nil, registerErr
		}
	}

	return registry, nil
}

func buildMeta(entry Entry, templates map[string]querymeta.Template) (querymeta.Meta, error) {
	options, err := optionsFor(entry, func(name string) (querymeta.Template, bool) {
		template, ok := templates[name]
		return template, ok
	})
	if err != nil {
		return querymeta.Meta{}, err
	}

	return querymeta.New(options...)
}

func optionsFor(
	entry Entry,
	templateByName func(name string) (querymeta.Template, bool),
) ([]querymeta.Option, error) {

	options := make([]querymeta.Option, 0, 2)

	if entry.Comment != nil {
		options = append(options, querymeta.WithComment(*entry.Comment))
	}

	if entry.Template != "" {
		template, ok := templateByName(entry.Template)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, entry.Template)
		}

		options = append(options, querymeta.Including(template))
	}

	return options, nil
}

// resolveTemplates builds all templates, resolving includes depth-first so the definition order does not matter.
func resolveTemplates(entries []Entry) (map[string]querymeta.Template, error) {
	byName := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if _, exists := byName[entry.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTemplate, entry.Name)
		}

		byName[entry.Name] = entry
	}

	resolved := make(map[string]querymeta.Template, len(entries))
	inProgress := make(map[string]bool)

	var resolve func(name string) (querymeta.Template, bool, error)
	resolve = func(name string) (querymeta.Template, bool, error) {
		if template, ok := resolved[name]; ok {
			return template, true, nil
		}

		entry, ok := byName[name]
		if !ok {
			return querymeta.Template{}, false, nil
		}

		if inProgress[name] {
			return querymeta.Template{}, false, fmt.Errorf("%w: %s", ErrTemplateCycle, name)
		}

		inProgress[name] = true
		defer delete(inProgress, name)

		var lookupErr error
		options, err := optionsFor(entry, func(included string) (querymeta.Template, bool) {
			template, found, resolveErr := resolve(included)
			if resolveErr != nil {
				lookupErr = resolveErr
			}
			return template, found
		})
		if lookupErr != nil {
			return querymeta.Template{}, false, lookupErr
		}
		if err != nil {
			return querymeta.Template{}, false, fmt.Errorf("template %q: %w", name, err)
		}

		template, err := querymeta.NewTemplate(name, options...)
		if err != nil {
			return querymeta.Template{}, false, fmt.Errorf("template %q: %w", name, err)
		}

		resolved[name] = template

		return template, true, nil
	}

	for _, entry := range entries {
		if _, _, err := resolve(entry.Name); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}
