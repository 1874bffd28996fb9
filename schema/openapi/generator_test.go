package openapi

import (
	"reflect"
	"sync"
	"testing"

	"github.com/goliatone/go-enrich"
)

func ratiosOptions() *enrich.OptionCollection {
	return enrich.NewOptionCollection().
		AddOption("Pseudocount", "pseudocount", enrich.DTypeFloat, 0.5, nil, "Added to every count").
		AddOption("Log base", "log_base", enrich.DTypeChoice, "e", []any{"e", "2", "10"}, "").
		AddOption("Minimum input count", "min_input_count", enrich.DTypeInt, 0, nil, "")
}

func TestFromOptionsPropertiesAndOrder(t *testing.T) {
	t.Parallel()

	schema, err := FromOptions(ratiosOptions())
	if err != nil {
		t.Fatalf("FromOptions returned error: %v", err)
	}
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	order, ok := schema["x-order"].([]string)
	if !ok {
		t.Fatalf("expected x-order []string, got %T", schema["x-order"])
	}
	if want := []string{"pseudocount", "log_base", "min_input_count"}; !reflect.DeepEqual(want, order) {
		t.Fatalf("unexpected order\nwant: %v\n got: %v", want, order)
	}

	props := schema["properties"].(map[string]any)
	pseudo := props["pseudocount"].(map[string]any)
	if pseudo["type"] != "number" || pseudo["default"] != 0.5 || pseudo["title"] != "Pseudocount" {
		t.Fatalf("unexpected pseudocount property: %v", pseudo)
	}
	base := props["log_base"].(map[string]any)
	if base["type"] != "string" || base["description"] != enrich.DefaultTooltip {
		t.Fatalf("unexpected log_base property: %v", base)
	}
	if enum := base["enum"].([]any); len(enum) != 3 || enum[0] != "e" {
		t.Fatalf("unexpected log_base enum: %v", enum)
	}
	minimum := props["min_input_count"].(map[string]any)
	if minimum["type"] != "integer" || minimum["default"] != int64(0) {
		t.Fatalf("unexpected min_input_count property: %v", minimum)
	}
}

func TestFromOptionsRejectsInvalidCollection(t *testing.T) {
	t.Parallel()

	c := enrich.NewOptionCollection().AddOption("Bad", "1bad", enrich.DTypeInt, 1, nil, "")
	if _, err := FromOptions(c); err == nil {
		t.Fatalf("expected error for invalid collection")
	}
}

func TestChoiceType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		choices []any
		want    string
	}{
		{[]any{"a", "b"}, "string"},
		{[]any{int64(1), int64(2)}, "integer"},
		{[]any{int64(1), 2.5}, "number"},
		{[]any{true, false}, "boolean"},
		{[]any{int64(1), "a"}, "string"},
		{nil, "string"},
	}
	for _, tc := range cases {
		if got := choiceType(tc.choices); got != tc.want {
			t.Fatalf("choiceType(%v) = %q, want %q", tc.choices, got, tc.want)
		}
	}
}

func TestGeneratorDocument(t *testing.T) {
	t.Parallel()

	generator := NewGenerator(
		WithInfo("Ratios", "2.0.0", WithInfoDescription("log ratio scoring")),
		WithOperation("/plugins/ratios/options", "PUT", "", WithOperationSummary("configure")),
		WithResponse("200", "Accepted"),
	)
	doc, err := generator.Generate(ratiosOptions())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if doc.Format != enrich.SchemaFormatOpenAPI {
		t.Fatalf("expected format %q, got %q", enrich.SchemaFormatOpenAPI, doc.Format)
	}
	document := doc.Document.(map[string]any)
	if err := validateDocument(document); err != nil {
		t.Fatalf("document failed validation: %v", err)
	}
	info := document["info"].(map[string]any)
	if info["title"] != "Ratios" || info["version"] != "2.0.0" || info["description"] != "log ratio scoring" {
		t.Fatalf("unexpected info: %v", info)
	}
	paths := document["paths"].(map[string]any)
	item := paths["/plugins/ratios/options"].(map[string]any)
	operation := item["put"].(map[string]any)
	if operation["operationId"] != "put:/plugins/ratios/options" || operation["summary"] != "configure" {
		t.Fatalf("unexpected operation: %v", operation)
	}
	responses := operation["responses"].(map[string]any)
	if _, ok := responses["200"]; !ok {
		t.Fatalf("expected 200 response, got %v", responses)
	}
	if _, ok := responses["204"]; !ok {
		t.Fatalf("expected default 204 response to remain, got %v", responses)
	}
	if _, ok := document["components"]; ok {
		t.Fatalf("expected inline schema without components")
	}
}

func TestGeneratorComponent(t *testing.T) {
	t.Parallel()

	doc, err := NewGenerator(WithComponent("ratios options")).Generate(ratiosOptions())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	document := doc.Document.(map[string]any)
	schemas := document["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := schemas["ratios_options"]; !ok {
		t.Fatalf("expected sanitised component name, got %v", schemas)
	}
	body := document["paths"].(map[string]any)["/options"].(map[string]any)["post"].(map[string]any)["requestBody"].(map[string]any)
	schema := body["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
	if schema["$ref"] != "#/components/schemas/ratios_options" {
		t.Fatalf("unexpected request body schema: %v", schema)
	}
}

func TestRegistryDocument(t *testing.T) {
	t.Parallel()

	reg := enrich.NewRegistry()
	noop := func(*enrich.Base, map[string]any) (enrich.ScoringPlugin, error) { return nil, nil }
	if err := reg.Register(enrich.Registration{Name: "ratios", Description: "Log ratios", Options: ratiosOptions, Factory: noop}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(enrich.Registration{Name: "empty", Factory: noop}); err != nil {
		t.Fatalf("register: %v", err)
	}

	document, err := RegistryDocument(reg)
	if err != nil {
		t.Fatalf("RegistryDocument returned error: %v", err)
	}
	paths := document["paths"].(map[string]any)
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %v", paths)
	}
	schemas := document["components"].(map[string]any)["schemas"].(map[string]any)
	for _, name := range []string{"ratios_options", "empty_options"} {
		if _, ok := schemas[name]; !ok {
			t.Fatalf("expected component %s, got %v", name, schemas)
		}
	}
	op := paths["/plugins/ratios/options"].(map[string]any)["post"].(map[string]any)
	if op["summary"] != "Log ratios" {
		t.Fatalf("unexpected summary: %v", op["summary"])
	}
}

func TestComponentNamesAreUnique(t *testing.T) {
	t.Parallel()

	r := newComponentRegistry()
	first := r.register("9 lives", map[string]any{})
	second := r.register("9 lives", map[string]any{})
	if first != "#/components/schemas/_9_lives" || second != "#/components/schemas/_9_lives1" {
		t.Fatalf("unexpected refs %q %q", first, second)
	}
}

func TestGeneratorConcurrentAccess(t *testing.T) {
	t.Parallel()

	generator := NewGenerator()
	c := ratiosOptions()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			doc, err := generator.Generate(c)
			if err != nil {
				t.Errorf("Generate returned error: %v", err)
				return
			}
			if doc.Document == nil {
				t.Errorf("expected document payload")
			}
		}()
	}
	wg.Wait()
}
