package openapi

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-enrich"
)

// FromOptions renders c as a JSON-schema object. Each option becomes a
// property keyed by varname; declaration order is kept in "x-order" because
// JSON objects are unordered.
func FromOptions(c *enrich.OptionCollection) (map[string]any, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	properties := make(map[string]any, c.Len())
	order := make([]string, 0, c.Len())
	for _, opt := range c.Options() {
		properties[opt.Varname] = propertyFor(opt)
		order = append(order, opt.Varname)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
		"x-order":              order,
	}, nil
}

func propertyFor(opt enrich.Option) map[string]any {
	prop := map[string]any{
		"title":       opt.Name,
		"description": opt.Tooltip,
		"default":     opt.Default,
	}
	switch opt.DType {
	case enrich.DTypeInt:
		prop["type"] = "integer"
	case enrich.DTypeFloat:
		prop["type"] = "number"
	case enrich.DTypeBool:
		prop["type"] = "boolean"
	case enrich.DTypeString:
		prop["type"] = "string"
	case enrich.DTypeChoice:
		prop["type"] = choiceType(opt.Choices)
	}
	if len(opt.Choices) > 0 {
		prop["enum"] = append([]any(nil), opt.Choices...)
	}
	return prop
}

// choiceType returns the JSON type shared by every choice. Mixed integer and
// float choices are "number"; any other mix falls back to "string".
func choiceType(choices []any) string {
	kind := ""
	for _, choice := range choices {
		var next string
		switch choice.(type) {
		case string:
			next = "string"
		case int64:
			next = "integer"
		case float64:
			next = "number"
		case bool:
			next = "boolean"
		default:
			next = "string"
		}
		if kind != "" && kind != next {
			if (kind == "integer" && next == "number") || (kind == "number" && next == "integer") {
				kind = "number"
				continue
			}
			return "string"
		}
		kind = next
	}
	if kind == "" {
		return "string"
	}
	return kind
}

type generator struct {
	config generatorConfig
}

// NewGenerator returns an enrich.SchemaGenerator that wraps the options
// schema in an OpenAPI document with a single request-body operation.
func NewGenerator(opts ...GeneratorOption) enrich.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

func (g generator) Generate(c *enrich.OptionCollection) (enrich.SchemaDocument, error) {
	schema, err := FromOptions(c)
	if err != nil {
		return enrich.SchemaDocument{}, err
	}
	builder := newOpenAPIDocumentBuilder(g.config)
	builder.addOperation(operationSpec{
		path:        g.config.operation.Path,
		method:      g.config.operation.Method,
		operationID: g.config.operation.OperationID,
		summary:     g.config.operation.Summary,
		schema:      schema,
	}, g.config.component)
	document, err := builder.build()
	if err != nil {
		return enrich.SchemaDocument{}, err
	}
	return enrich.SchemaDocument{
		Format:   enrich.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}

// RegistryDocument renders every plugin in reg as a POST
// /plugins/{name}/options operation whose body references a
// "<name>_options" component.
func RegistryDocument(reg *enrich.Registry, opts ...GeneratorOption) (map[string]any, error) {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	builder := newOpenAPIDocumentBuilder(cfg)
	for _, name := range reg.Names() {
		c, err := reg.OptionsFor(name)
		if err != nil {
			return nil, err
		}
		schema, err := FromOptions(c)
		if err != nil {
			return nil, fmt.Errorf("openapi: plugin %q: %w", name, err)
		}
		entry, _ := reg.Lookup(name)
		builder.addOperation(operationSpec{
			path:    fmt.Sprintf("/plugins/%s/options", name),
			method:  "post",
			summary: strings.TrimSpace(entry.Description),
			schema:  schema,
		}, name+"_options")
	}
	return builder.build()
}
