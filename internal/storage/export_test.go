package storage

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func sampleDocs() []Document {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Document{
		{Name: "score", Kind: "notation", Content: "c'4 d'4 e'4\n", CreatedAt: ts, UpdatedAt: ts},
		{Name: "notes", Content: "draft", CreatedAt: ts, UpdatedAt: ts},
	}
}

func TestExportMarkdown(t *testing.T) {
	md := ExportMarkdown(sampleDocs())

	for _, want := range []string{"## score", "**Kind:** notation", "c'4 d'4 e'4", "## notes", "2026-03-01 12:00:00"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Count(md, "**Kind:**") != 1 {
		t.Errorf("kind line should only appear for documents with a kind")
	}
}

func TestExportYAML(t *testing.T) {
	data, err := ExportYAML(sampleDocs())
	if err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}

	var got exportDoc
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("parsing exported YAML: %v", err)
	}
	if len(got.Documents) != 2 || got.Documents[0].Name != "score" {
		t.Errorf("unexpected export: %+v", got.Documents)
	}
}

func TestExportJSONEmpty(t *testing.T) {
	data, err := ExportJSON(nil)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if !strings.Contains(string(data), `"documents": []`) {
		t.Errorf("empty export = %s", data)
	}
}
