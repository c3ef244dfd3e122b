package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type exportDoc struct {
	Documents []Document `json:"documents" yaml:"documents"`
}

// ExportMarkdown renders documents as a markdown document.
func ExportMarkdown(docs []Document) string {
	var b strings.Builder

	b.WriteString("# Session documents\n\n")
	for _, d := range docs {
		b.WriteString(fmt.Sprintf("## %s\n\n", d.Name))
		if d.Kind != "" {
			b.WriteString(fmt.Sprintf("- **Kind:** %s\n", d.Kind))
		}
		b.WriteString(fmt.Sprintf("- **Updated:** %s\n\n", d.UpdatedAt.Format("2006-01-02 15:04:05")))
		b.WriteString(fmt.Sprintf("```\n%s\n```\n\n", strings.TrimRight(d.Content, "\n")))
	}

	return b.String()
}

// ExportJSON renders documents as formatted JSON.
func ExportJSON(docs []Document) ([]byte, error) {
	return json.MarshalIndent(exportDoc{Documents: nonNil(docs)}, "", "  ")
}

// ExportYAML renders documents as YAML.
func ExportYAML(docs []Document) ([]byte, error) {
	return yaml.Marshal(exportDoc{Documents: nonNil(docs)})
}

func nonNil(docs []Document) []Document {
	if docs == nil {
		return []Document{}
	}
	return docs
}
