// Package presets loads named message lists from a JSON or YAML file.
package presets

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/IRandonation/AutoTikTokSendComment/internal/queue"
)

// ErrUnknownPreset is returned by Get for a name not in the file.
var ErrUnknownPreset = errors.New("unknown preset")

// Set maps a preset name to its messages.
type Set map[string][]string

// messageList accepts either a list of lines or one newline-delimited block.
type messageList []string

func (m *messageList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*m = queue.ParseMessages(node.Value)
		return nil
	case yaml.SequenceNode:
		var raw []string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*m = queue.ParseMessages(strings.Join(raw, "\n"))
		return nil
	default:
		return fmt.Errorf("line %d: preset must be a list or a string", node.Line)
	}
}

// Load reads path. A missing file yields an empty set.
func Load(path string) (Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a presets document. JSON parses as YAML.
func Parse(data []byte) (Set, error) {
	var decoded map[string]messageList
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	set := make(Set, len(decoded))
	for name, msgs := range decoded {
		set[name] = []string(msgs)
	}
	return set, nil
}

// Names returns the preset names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of the named preset's messages.
func (s Set) Get(name string) ([]string, error) {
	msgs, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return append([]string(nil), msgs...), nil
}
