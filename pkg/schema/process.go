package schema

// OperationType is the family of a data manipulation operation.
type OperationType string

const (
	TypeNumeric    OperationType = "numeric"
	TypeString     OperationType = "string"
	TypeDatetime   OperationType = "datetime"
	TypeCollection OperationType = "collection"
)

// ProcessStep is one typed data manipulation operation.
type ProcessStep struct {
	Type      OperationType  `json:"type" mapstructure:"type"`
	Action    string         `json:"action" mapstructure:"action"`
	Params    map[string]any `json:"params" mapstructure:"params"`
	OutputKey string         `json:"output_key,omitempty" mapstructure:"output_key"`
}

// ProcessDefinition is a named, ordered list of process steps plus the cache key
// holding the process result.
type ProcessDefinition struct {
	Name      string        `json:"name"`
	Steps     []ProcessStep `json:"steps"`
	OutputKey string        `json:"output_key"`
}

// ServiceTemplate describes how to call one endpoint of an external service.
type ServiceTemplate struct {
	Method            string            `json:"method" mapstructure:"method"`
	URL               string            `json:"url" mapstructure:"url"`
	Headers           map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	QueryFields       map[string]string `json:"query_fields,omitempty" mapstructure:"query_fields"`
	BodyFields        map[string]string `json:"body_fields,omitempty" mapstructure:"body_fields"`
	APIKeyPlaceholder string            `json:"api_key_placeholder,omitempty" mapstructure:"api_key_placeholder"`
	Provider          string            `json:"provider,omitempty" mapstructure:"provider"`
	ResponseFilter    string            `json:"response_filter,omitempty" mapstructure:"response_filter"`
}
