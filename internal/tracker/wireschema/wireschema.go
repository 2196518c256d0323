// Package wireschema describes the game server's wire contract as JSON
// Schema: the bootstrap snapshot, the update frame carried by the event
// stream, and the persisted client settings document.
package wireschema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/invopop/jsonschema"
)

// Document names accepted by Build.
const (
	DocumentUpdate    = "update"
	DocumentSnapshot  = "snapshot"
	DocumentSettings  = "settings"
	schemaTitlePrefix = "Advancement Tracker "
)

// UpdateFrame is the payload of one "message" event.
type UpdateFrame struct {
	UUID            string         `json:"uuid" jsonschema:"required,minLength=1,description=Player identity; must be non-blank"`
	Player          map[string]any `json:"player" jsonschema:"required,description=Opaque player snapshot replacing the previous one"`
	UpdatedProgress map[string]any `json:"updatedProgress" jsonschema:"required,description=Complete current progress of the player keyed by advancement"`
}

// Snapshot is the bootstrap payload.
type Snapshot struct {
	Advancements map[string]any            `json:"advancements" jsonschema:"required"`
	Players      map[string]map[string]any `json:"players" jsonschema:"required"`
	Categories   map[string]any            `json:"categories" jsonschema:"required"`
	World        map[string]any            `json:"world" jsonschema:"required"`
	Progress     map[string]map[string]any `json:"progress,omitempty" jsonschema:"description=Advancement key to player uuid to progress detail"`
	Classes      []string                  `json:"classes,omitempty"`
}

// Settings is the persisted client settings document.
type Settings struct {
	TestFlag           bool    `json:"testFlag"`
	CoopMode           bool    `json:"coopMode"`
	SelectedPlayerUUID *string `json:"selectedPlayerUuid" jsonschema:"description=Selected player uuid or null"`
}

var documents = map[string]struct {
	value       any
	title       string
	description string
}{
	DocumentUpdate:   {new(UpdateFrame), "Update Frame", "Data of one message event on the advancement event stream."},
	DocumentSnapshot: {new(Snapshot), "Bootstrap Snapshot", "Initial state served by the game server before the stream opens."},
	DocumentSettings: {new(Settings), "Client Settings", "Preference document written to every durable substrate."},
}

// Documents lists the known document names in order.
func Documents() []string {
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build reflects the schema for one document.
func Build(name string) (*jsonschema.Schema, error) {
	doc, ok := documents[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema document %q", name)
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(doc.value)
	schema.Title = schemaTitlePrefix + doc.title
	schema.Description = doc.description
	return schema, nil
}

// Write marshals schema to outPath, replacing any existing file atomically.
func Write(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
