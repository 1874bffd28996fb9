package enrich_test

import (
	"testing"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/plugins/ratios"
	openapi "github.com/goliatone/go-enrich/schema/openapi"
)

func TestDescriptorSchema(t *testing.T) {
	doc, err := ratios.Options().Schema(nil)
	if err != nil {
		t.Fatalf("Schema returned error: %v", err)
	}
	if doc.Format != enrich.SchemaFormatDescriptors {
		t.Fatalf("expected format %q, got %q", enrich.SchemaFormatDescriptors, doc.Format)
	}
	descriptors, ok := doc.Document.([]enrich.FieldDescriptor)
	if !ok {
		t.Fatalf("expected descriptors, got %T", doc.Document)
	}
	if len(descriptors) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descriptors))
	}
	first := descriptors[0]
	if first.Varname != "pseudocount" || first.Type != "float" || first.Default != 0.5 {
		t.Fatalf("unexpected first descriptor %+v", first)
	}
	if descriptors[1].Type != "choice" || len(descriptors[1].Choices) != 3 {
		t.Fatalf("unexpected choice descriptor %+v", descriptors[1])
	}
}

func TestOpenAPIGeneratorIntegration(t *testing.T) {
	doc, err := ratios.Options().Schema(openapi.NewGenerator(openapi.WithComponent("ratios_options")))
	if err != nil {
		t.Fatalf("Schema returned error: %v", err)
	}
	if doc.Format != enrich.SchemaFormatOpenAPI {
		t.Fatalf("expected format %q, got %q", enrich.SchemaFormatOpenAPI, doc.Format)
	}
	schema, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected schema map, got %T", doc.Document)
	}
	paths, ok := schema["paths"].(map[string]any)
	if !ok {
		t.Fatalf("expected paths map, got %T", schema["paths"])
	}
	if _, ok := paths["/options"]; !ok {
		t.Fatalf("expected /options path, got %v", paths)
	}
	components := schema["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := components["ratios_options"]; !ok {
		t.Fatalf("expected ratios_options component, got %v", components)
	}
}

func TestSchemaRejectsInvalidCollection(t *testing.T) {
	c := enrich.NewOptionCollection().AddOption("Mode", "mode", enrich.DTypeChoice, "x", nil, "")
	if _, err := c.Schema(nil); err == nil {
		t.Fatalf("expected descriptor generator to reject invalid collection")
	}
}
