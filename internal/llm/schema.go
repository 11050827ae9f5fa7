package llm

import (
	"google.golang.org/genai"
)

// Schema names the JSON object a model must return.
type Schema struct {
	Name        string
	Description string
	Root        *Field
}

// Field is a small JSON-schema subset: objects, arrays, strings, integers.
// Every object property is required, which strict structured output needs.
type Field struct {
	Type        string
	Description string
	Props       []Property
	Items       *Field
}

type Property struct {
	Name  string
	Field *Field
}

func Prop(name string, f *Field) Property { return Property{Name: name, Field: f} }

func String(desc string) *Field { return &Field{Type: "string", Description: desc} }

func Integer(desc string) *Field { return &Field{Type: "integer", Description: desc} }

func Array(desc string, items *Field) *Field {
	return &Field{Type: "array", Description: desc, Items: items}
}

func Object(desc string, props ...Property) *Field {
	return &Field{Type: "object", Description: desc, Props: props}
}

// JSON renders the field as a JSON schema document.
func (f *Field) JSON() map[string]any {
	out := map[string]any{"type": f.Type}
	if f.Description != "" {
		out["description"] = f.Description
	}
	switch f.Type {
	case "object":
		props := make(map[string]any, len(f.Props))
		required := make([]string, 0, len(f.Props))
		for _, p := range f.Props {
			props[p.Name] = p.Field.JSON()
			required = append(required, p.Name)
		}
		out["properties"] = props
		out["required"] = required
		out["additionalProperties"] = false
	case "array":
		if f.Items != nil {
			out["items"] = f.Items.JSON()
		}
	}
	return out
}

// Genai renders the field for the Gemini API, which takes its own schema type
// and does not understand additionalProperties.
func (f *Field) Genai() *genai.Schema {
	s := &genai.Schema{Description: f.Description}
	switch f.Type {
	case "object":
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(f.Props))
		for _, p := range f.Props {
			s.Properties[p.Name] = p.Field.Genai()
			s.Required = append(s.Required, p.Name)
			s.PropertyOrdering = append(s.PropertyOrdering, p.Name)
		}
	case "array":
		s.Type = genai.TypeArray
		if f.Items != nil {
			s.Items = f.Items.Genai()
		}
	case "integer":
		s.Type = genai.TypeInteger
	default:
		s.Type = genai.TypeString
	}
	return s
}
