package extract

import "fmt"

// Field keys shared by several specification sections.
const (
	keyHostname    = "hostname"
	keyUsername    = "username"
	keyPassword    = "password"
	keyCredentials = "credentials"
)

func asObject(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok && obj != nil
}

func asList(v any) ([]any, bool) {
	list, ok := v.([]any)
	return list, ok
}

// describeType names the JSON type of v for warnings.
func describeType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// stringField reads key from obj. ok is false when the key is absent or null;
// err is set when the value is present with a non-string type.
func stringField(obj map[string]any, key string) (value string, ok bool, err error) {
	raw, present := obj[key]
	if !present || raw == nil {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", false, fmt.Errorf("field %q is %s, want string", key, describeType(raw))
	}
	return s, true, nil
}

// firstString returns the first non-empty string among keys.
func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok, _ := stringField(obj, key); ok && s != "" {
			return s
		}
	}
	return ""
}

// secret reads a password field. Empty values are returned as present so the
// account is still reported.
func secret(obj map[string]any, key string) (string, error) {
	value, ok, err := stringField(obj, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("field %q is missing", key)
	}
	return value, nil
}
