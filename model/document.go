package model

// Document statuses written by the engine when an instance terminates.
const (
	DocumentStatusApproved  = "Approved"
	DocumentStatusRejected  = "Rejected"
	DocumentStatusCancelled = "Cancelled"
)

type (
	// Document is a business document routed through an approval process.
	// It is owned by an external store; the engine only reads fields and updates status.
	Document struct {
		ID       string                 `json:"id" yaml:"id"`
		TenantID string                 `json:"tenantId,omitempty" yaml:"tenantId,omitempty"`
		Type     string                 `json:"type,omitempty" yaml:"type,omitempty"`
		Status   string                 `json:"status,omitempty" yaml:"status,omitempty"`
		Fields   map[string]interface{} `json:"fields,omitempty" yaml:"fields,omitempty"`
	}

	// FormDefinition describes the fields of a form bound to workflow nodes.
	FormDefinition struct {
		ID      string       `json:"id" yaml:"id"`
		Name    string       `json:"name,omitempty" yaml:"name,omitempty"`
		Version int          `json:"version,omitempty" yaml:"version,omitempty"`
		Fields  []*FormField `json:"fields,omitempty" yaml:"fields,omitempty"`
	}

	FormField struct {
		Name     string `json:"name" yaml:"name"`
		Type     string `json:"type,omitempty" yaml:"type,omitempty"`
		Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	}
)

// FieldNames returns form field names in declaration order.
func (f *FormDefinition) FieldNames() []string {
	if f == nil {
		return nil
	}
	ret := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		ret = append(ret, field.Name)
	}
	return ret
}

// Clone returns a deep copy of the form.
func (f *FormDefinition) Clone() *FormDefinition {
	if f == nil {
		return nil
	}
	ret := *f
	if f.Fields != nil {
		ret.Fields = make([]*FormField, len(f.Fields))
		for i, field := range f.Fields {
			copied := *field
			ret.Fields[i] = &copied
		}
	}
	return &ret
}
