package schema

// Field captures the minimal behavior-relevant schema fields.
type Field struct {
	Name     string
	Nullable bool
}

// Contract is the logical column contract of a tabular input or output.
type Contract struct {
	Fields []Field
}

// Names returns the field names in declaration order.
func (c Contract) Names() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Required returns the names of non-nullable fields.
func (c Contract) Required() []string {
	var out []string
	for _, f := range c.Fields {
		if !f.Nullable {
			out = append(out, f.Name)
		}
	}
	return out
}
