package template

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"unicode"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

// Filters is a table of named functions usable inside template expressions.
// Each value must be a function returning a single value, or a value and an error.
type Filters map[string]any

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// validateFilter checks that fn can be installed under name
func validateFilter(name string, fn any) error {
	if !isIdentifier(name) {
		return fmt.Errorf("%w: %q is not a valid name", ErrInvalidFilter, name)
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("%w: %q is not a function", ErrInvalidFilter, name)
	}

	t := v.Type()
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return fmt.Errorf("%w: %q must return one value or a value and an error", ErrInvalidFilter, name)
	}

	return nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// defaultFilters returns the filter table every environment starts from
func defaultFilters() template.FuncMap {
	funcs := sprig.TxtFuncMap()

	funcs["uppercase"] = strings.ToUpper
	funcs["lowercase"] = strings.ToLower

	funcs["length"] = func(value any) int {
		v := reflect.ValueOf(value)
		switch v.Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
			return v.Len()
		default:
			return 0
		}
	}

	funcs["to_json"] = func(value any) (string, error) {
		data, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	funcs["to_yaml"] = func(value any) (string, error) {
		data, err := yaml.Marshal(value)
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(string(data), "\n"), nil
	}

	return funcs
}
