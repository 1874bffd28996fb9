package openapi

import (
	"fmt"
	"sort"
	"strings"
)

// operationSpec is one request-body operation of the document.
type operationSpec struct {
	path        string
	method      string
	operationID string
	summary     string
	schema      map[string]any
}

type openAPIDocumentBuilder struct {
	config     generatorConfig
	registry   *componentRegistry
	operations []operationSpec
}

func newOpenAPIDocumentBuilder(config generatorConfig) *openAPIDocumentBuilder {
	return &openAPIDocumentBuilder{
		config:   config,
		registry: newComponentRegistry(),
	}
}

// addOperation registers schema as the request body of path. With a
// component name the schema is published under components and referenced.
func (b *openAPIDocumentBuilder) addOperation(op operationSpec, component string) {
	if op.schema == nil {
		op.schema = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	if component != "" {
		op.schema = map[string]any{"$ref": b.registry.register(component, op.schema)}
	}
	if op.method == "" {
		op.method = "post"
	}
	op.method = strings.ToLower(op.method)
	if op.operationID == "" {
		op.operationID = fmt.Sprintf("%s:%s", op.method, op.path)
	}
	b.operations = append(b.operations, op)
}

func (b *openAPIDocumentBuilder) build() (map[string]any, error) {
	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   b.buildPaths(),
	}
	if components := b.registry.componentsMap(); components != nil {
		document["components"] = map[string]any{
			"schemas": components,
		}
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *openAPIDocumentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *openAPIDocumentBuilder) buildResponses() map[string]any {
	responses := make(map[string]any, len(b.config.responses))
	statuses := make([]string, 0, len(b.config.responses))
	for status := range b.config.responses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		responses[status] = map[string]any{
			"description": b.config.responses[status].Description,
		}
	}
	return responses
}

func (b *openAPIDocumentBuilder) buildPaths() map[string]any {
	paths := map[string]any{}
	for _, op := range b.operations {
		operation := map[string]any{
			"operationId": op.operationID,
			"requestBody": map[string]any{
				"required": true,
				"content": map[string]any{
					b.config.contentType: map[string]any{
						"schema": op.schema,
					},
				},
			},
			"responses": b.buildResponses(),
		}
		if summary := strings.TrimSpace(op.summary); summary != "" {
			operation["summary"] = summary
		}
		item, _ := paths[op.path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[op.path] = item
		}
		item[op.method] = operation
	}
	return paths
}

func validateDocument(document map[string]any) error {
	if document == nil {
		return fmt.Errorf("openapi: document cannot be nil")
	}
	openapi, _ := document["openapi"].(string)
	if openapi == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	for pathKey, pathValue := range paths {
		pathItem, _ := pathValue.(map[string]any)
		if pathItem == nil {
			return fmt.Errorf("openapi: path %q invalid payload", pathKey)
		}
		if len(pathItem) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", pathKey)
		}
		for method, operationValue := range pathItem {
			operation, _ := operationValue.(map[string]any)
			if operation == nil {
				return fmt.Errorf("openapi: operation %s %s invalid payload", method, pathKey)
			}
			if _, ok := operation["operationId"].(string); !ok {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, pathKey)
			}
			requestBody, _ := operation["requestBody"].(map[string]any)
			if requestBody == nil {
				return fmt.Errorf("openapi: operation %s %s missing requestBody", method, pathKey)
			}
			content, _ := requestBody["content"].(map[string]any)
			if len(content) == 0 {
				return fmt.Errorf("openapi: operation %s %s requestBody missing content", method, pathKey)
			}
			if _, ok := operation["responses"].(map[string]any); !ok {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
		}
	}
	return nil
}
