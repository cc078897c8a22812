package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"codepath-guard/internal/sanitize"
)

// User-facing messages are pt-BR; the full ordered list is always
// returned, never just the first violation.

// Validate applies a schema to a decoded request body. Fields are
// processed in declaration order: presence check, absence short-circuit,
// one type-coercion branch, then the secondary constraints against the
// coerced value.
func Validate(data map[string]any, schema *Schema) *Result {
	result := &Result{Sanitized: make(map[string]any)}

	for _, field := range schema.Fields {
		raw, present := data[field.Name]
		absent := !present || raw == nil || raw == ""

		if field.Rule.Required && absent {
			result.Errors = append(result.Errors, fmt.Sprintf("%s é obrigatório", field.Name))
			continue
		}
		if absent {
			continue
		}

		value, typeErr := coerce(field.Name, raw, field.Rule.Type)
		if typeErr != "" {
			result.Errors = append(result.Errors, typeErr)
			continue
		}
		result.Sanitized[field.Name] = value

		result.Errors = append(result.Errors, checkConstraints(field.Name, value, field.Rule)...)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// coerce runs exactly one branch per field based on the declared type.
// An empty message means the coerced value is usable.
func coerce(name string, raw any, t Type) (any, string) {
	switch t {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Sprintf("%s deve ser uma string", name)
		}
		return sanitize.CleanString(s), ""

	case TypeEmail:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Sprintf("%s deve ser uma string", name)
		}
		// Format is enforced by the schema's Pattern, not here.
		return strings.ToLower(sanitize.CleanString(s)), ""

	case TypeNumber:
		n, ok := coerceNumber(raw)
		if !ok {
			return nil, fmt.Sprintf("%s deve ser um número válido", name)
		}
		return n, ""

	case TypeBoolean:
		return coerceBool(raw), ""

	case TypeDate:
		d, ok := coerceDate(raw)
		if !ok {
			return nil, fmt.Sprintf("%s deve ser uma data válida", name)
		}
		return d, ""

	case TypeArray:
		arr, ok := raw.([]any)
		if !ok {
			return nil, fmt.Sprintf("%s deve ser uma lista", name)
		}
		// Stored as-is, element-wise sanitization is not applied.
		return arr, ""

	default:
		// No declared type: stored unsanitized as-is.
		return raw, ""
	}
}

// coerceNumber parses integers. Fractional input is truncated, not
// rejected, preserving the long-standing parse-as-integer behavior the
// rest of the application depends on.
func coerceNumber(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return int(n), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// coerceBool never fails: booleans pass through, the strings "true" and
// "1" are true, any other string is false, and remaining kinds follow
// truthiness.
func coerceBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceDate normalizes parseable dates to YYYY-MM-DD in UTC. UTC is
// pinned deliberately so the stored day never shifts with the host
// timezone.
func coerceDate(raw any) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02"), true
		}
	}
	return "", false
}

// checkConstraints applies the secondary constraints to a value that
// survived coercion. Violations accumulate independently.
func checkConstraints(name string, value any, rule Rule) []string {
	var errs []string

	if rule.MinLength != nil || rule.MaxLength != nil {
		if length, unit, ok := lengthOf(value); ok {
			if rule.MinLength != nil && length < *rule.MinLength {
				errs = append(errs, fmt.Sprintf("%s deve ter pelo menos %d %s", name, *rule.MinLength, unit))
			}
			if rule.MaxLength != nil && length > *rule.MaxLength {
				errs = append(errs, fmt.Sprintf("%s deve ter no máximo %d %s", name, *rule.MaxLength, unit))
			}
		}
	}

	if rule.Min != nil || rule.Max != nil {
		if n, ok := numericValue(value); ok {
			if rule.Min != nil && n < *rule.Min {
				errs = append(errs, fmt.Sprintf("%s deve ser pelo menos %s", name, formatNumber(*rule.Min)))
			}
			if rule.Max != nil && n > *rule.Max {
				errs = append(errs, fmt.Sprintf("%s deve ser no máximo %s", name, formatNumber(*rule.Max)))
			}
		}
	}

	if rule.Pattern != nil {
		if s, ok := value.(string); ok && !rule.Pattern.MatchString(s) {
			errs = append(errs, fmt.Sprintf("%s tem um formato inválido", name))
		}
	}

	if len(rule.Enum) > 0 {
		if s, ok := value.(string); ok && !contains(rule.Enum, s) {
			errs = append(errs, fmt.Sprintf("%s deve ser um dos seguintes valores: %s", name, strings.Join(rule.Enum, ", ")))
		}
	}

	return errs
}

func lengthOf(value any) (int, string, bool) {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v), "caracteres", true
	case []any:
		return len(v), "itens", true
	default:
		return 0, "", false
	}
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
