package dispatch

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dukerupert/larder/internal/grocery"
	"github.com/dukerupert/larder/internal/model"
	"github.com/shopspring/decimal"
)

// Form is raw user input keyed by field name.
type Form map[string]string

// Kind is how a form value is parsed.
type Kind int

const (
	Text Kind = iota
	Number
	Date
	Enum
	Bool
)

type FieldSpec struct {
	Name     string
	Kind     Kind
	Required bool
	// Options lists the allowed values of an Enum field.
	Options []string
}

// Schema describes the form for one collection.
type Schema struct {
	Collection model.Collection
	Fields     []FieldSpec
	// Defaults fills derived values on create, after validation.
	Defaults func(fields map[string]any)
}

// ValidationError reports the first invalid field of a form.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (s Schema) field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Parse validates form and converts it into typed backend fields. With partial
// set, only the submitted fields are checked and returned; otherwise every
// required field must be present.
func (s Schema) Parse(form Form, partial bool) (map[string]any, error) {
	for name := range form {
		if _, ok := s.field(name); !ok {
			return nil, invalid(name, "unknown field")
		}
	}

	out := make(map[string]any, len(form))
	for _, f := range s.Fields {
		raw, present := form[f.Name]
		value := strings.TrimSpace(raw)

		if !present {
			if f.Required && !partial {
				return nil, invalid(f.Name, "is required")
			}
			continue
		}
		if value == "" {
			if f.Required {
				return nil, invalid(f.Name, "is required")
			}
			if f.Kind == Text || f.Kind == Date {
				out[f.Name] = ""
			}
			continue
		}

		v, err := f.parse(value)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}

	if !partial && s.Defaults != nil {
		s.Defaults(out)
	}
	return out, nil
}

func (f FieldSpec) parse(value string) (any, error) {
	switch f.Kind {
	case Number:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, invalid(f.Name, "must be a number")
		}
		return d, nil
	case Date:
		if _, err := model.ParseDate(value); err != nil {
			return nil, invalid(f.Name, "must be a date (YYYY-MM-DD)")
		}
		return value, nil
	case Enum:
		if !slices.Contains(f.Options, value) {
			return nil, invalid(f.Name, "must be one of %s", strings.Join(f.Options, ", "))
		}
		return value, nil
	case Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, invalid(f.Name, "must be true or false")
		}
		return b, nil
	default:
		return value, nil
	}
}

var schemas = map[model.Collection]Schema{
	model.CollectionShopping: {
		Collection: model.CollectionShopping,
		Fields: []FieldSpec{
			{Name: "name", Kind: Text, Required: true},
			{Name: "quantity", Kind: Number, Required: true},
			{Name: "category", Kind: Text},
			{Name: "price", Kind: Number},
			{Name: "image", Kind: Text},
			{Name: "purchased", Kind: Bool},
		},
		Defaults: func(fields map[string]any) {
			if c, _ := fields["category"].(string); c == "" {
				name, _ := fields["name"].(string)
				fields["category"] = grocery.Categorize(name)
			}
		},
	},
	model.CollectionInventory: {
		Collection: model.CollectionInventory,
		Fields: []FieldSpec{
			{Name: "name", Kind: Text, Required: true},
			{Name: "quantity", Kind: Number, Required: true},
			{Name: "category", Kind: Text},
			{Name: "expiration_date", Kind: Date},
			{Name: "dietary_info", Kind: Text},
			{Name: "estimated_value", Kind: Number},
		},
		Defaults: func(fields map[string]any) {
			if c, _ := fields["category"].(string); c == "" {
				name, _ := fields["name"].(string)
				fields["category"] = grocery.Categorize(name)
			}
		},
	},
	model.CollectionBudget: {
		Collection: model.CollectionBudget,
		Fields: []FieldSpec{
			{Name: "name", Kind: Text, Required: true},
			{Name: "amount", Kind: Number, Required: true},
			{Name: "category", Kind: Enum, Required: true, Options: model.ExpenseCategories},
			{Name: "date", Kind: Date, Required: true},
		},
	},
	model.CollectionPrices: {
		Collection: model.CollectionPrices,
		Fields: []FieldSpec{
			{Name: "item", Kind: Text, Required: true},
			{Name: "price", Kind: Number, Required: true},
			{Name: "store", Kind: Text, Required: true},
		},
	},
}

// SchemaFor returns the form schema of a collection.
func SchemaFor(c model.Collection) (Schema, bool) {
	s, ok := schemas[c]
	return s, ok
}
