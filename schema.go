package enrich

// SchemaFormat names the shape of a SchemaDocument.
type SchemaFormat string

const (
	// SchemaFormatDescriptors is a flat []FieldDescriptor list.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI is an OpenAPI 3 document.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument is a rendered description of an option collection.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
}

// SchemaGenerator renders an option collection for a presentation layer.
type SchemaGenerator interface {
	Generate(c *OptionCollection) (SchemaDocument, error)
}

// FieldDescriptor is the presentation view of one option.
type FieldDescriptor struct {
	Name    string `json:"name"`
	Varname string `json:"varname"`
	Type    string `json:"type"`
	Default any    `json:"default"`
	Choices []any  `json:"choices,omitempty"`
	Tooltip string `json:"tooltip"`
}

// DefaultSchemaGenerator returns the built-in descriptor generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(c *OptionCollection) (SchemaDocument, error) {
	if err := c.Err(); err != nil {
		return SchemaDocument{}, err
	}
	descriptors := make([]FieldDescriptor, 0, c.Len())
	for _, opt := range c.Options() {
		descriptors = append(descriptors, FieldDescriptor{
			Name:    opt.Name,
			Varname: opt.Varname,
			Type:    opt.DType.String(),
			Default: opt.Default,
			Choices: opt.Choices,
			Tooltip: opt.Tooltip,
		})
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

// Schema renders the collection with gen, or with the descriptor generator
// when gen is nil.
func (c *OptionCollection) Schema(gen SchemaGenerator) (SchemaDocument, error) {
	if gen == nil {
		gen = DefaultSchemaGenerator()
	}
	return gen.Generate(c)
}
