package codegen

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// pyValue renders a JSON-like value as a Python literal with map keys sorted.
func pyValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return pyQuote(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case json.Number:
		return x.String()
	case []interface{}:
		items := make([]string, len(x))
		for i, item := range x {
			items[i] = pyValue(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]interface{}:
		keys := sortedKeys(x)
		items := make([]string, len(keys))
		for i, k := range keys {
			items[i] = pyQuote(k) + ": " + pyValue(x[k])
		}
		return "{" + strings.Join(items, ", ") + "}"
	}
	return pyQuote(fmt.Sprint(v))
}

// csValue renders a scalar as a C# object literal. Composite values are
// carried as their JSON text.
func csValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case string:
		return cQuote(x, false)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10) + "L"
	case float64:
		return formatFloat(x) + "d"
	}
	return cQuote(jsonText(v), false)
}

// cppValue renders any value as a C++ string literal; generated C++ keeps
// variables as strings.
func cppValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return `""`
	case string:
		return cQuote(x, true)
	case bool:
		if x {
			return `"true"`
		}
		return `"false"`
	}
	return cQuote(jsonText(v), true)
}

func jsonText(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
