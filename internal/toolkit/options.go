package toolkit

import (
	"fmt"
	"strconv"
)

// Option is one user-supplied tool option. Value must be a bool, a
// number, or a string.
type Option struct {
	Name  string
	Value any
}

// Options is an ordered option bag. Order is preserved and drives the
// order of the generated argument vector, so translating the same bag
// twice yields identical argv.
type Options []Option

// Get returns the value for name and whether it is present.
func (o Options) Get(name string) (any, bool) {
	for _, opt := range o {
		if opt.Name == name {
			return opt.Value, true
		}
	}
	return nil, false
}

// Set replaces the value for name in place, or appends a new entry.
func (o *Options) Set(name string, value any) {
	for i, opt := range *o {
		if opt.Name == name {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Option{Name: name, Value: value})
}

// FormatValue converts an option value to its canonical argument string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
