package chat

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultReply is used when no template file is configured or the requested
// template is absent.
const defaultReply = "Obrigado pela sua mensagem! Em breve um atendente falará com você."

// ReplyTemplate is one canned auto-reply definition.
type ReplyTemplate struct {
	Name string `yaml:"name"`
	Text string `yaml:"text"`
}

// templateFile is the on-disk schema: a flat list of templates.
type templateFile struct {
	Templates []ReplyTemplate `yaml:"templates"`
}

// Templates resolves canned-reply text by name.
type Templates struct {
	byName map[string]string
}

// LoadTemplates reads reply templates from a YAML file. A missing path is not
// an error: the built-in default reply still resolves.
func LoadTemplates(path string, logger *slog.Logger) (*Templates, error) {
	t := &Templates{byName: make(map[string]string)}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("reply templates file does not exist, using defaults", "path", path)
			return t, nil
		}
		return nil, fmt.Errorf("read templates file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse templates file %s: %w", path, err)
	}

	for _, tpl := range file.Templates {
		if tpl.Name == "" || tpl.Text == "" {
			logger.Warn("skipping reply template without name or text")
			continue
		}
		t.byName[tpl.Name] = tpl.Text
	}
	logger.Info("reply templates loaded", "path", path, "count", len(t.byName))
	return t, nil
}

// Resolve returns the template text for name, falling back to the built-in
// default reply.
func (t *Templates) Resolve(name string) string {
	if text, ok := t.byName[name]; ok {
		return text
	}
	return defaultReply
}
