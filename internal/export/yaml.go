package export

import (
	"io"

	"github.com/ketran/localchat/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports conversations in YAML format
type YAMLExporter struct{}

// Export exports a conversation to YAML format
func (e *YAMLExporter) Export(conv *internal.Conversation, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(conv)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
