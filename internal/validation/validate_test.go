package validation

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtinRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	return r
}

func mustGet(t *testing.T, r *Registry, name string) *Schema {
	t.Helper()
	schema, ok := r.Get(name)
	require.True(t, ok, "schema %s should be registered", name)
	return schema
}

func TestLoginRequiredFieldsMissing(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{}, mustGet(t, r, "login"))

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"email é obrigatório", "password é obrigatório"}, result.Errors)
	assert.Empty(t, result.Sanitized)
}

func TestLoginEmailNormalization(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"email":    "  USER@Example.COM  ",
		"password": "secret1",
	}, mustGet(t, r, "login"))

	assert.True(t, result.Valid)
	assert.Equal(t, "user@example.com", result.Sanitized["email"])
	assert.Equal(t, "secret1", result.Sanitized["password"])
}

func TestLoginEmailPatternRejected(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"email":    "not-an-email",
		"password": "secret1",
	}, mustGet(t, r, "login"))

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "formato inválido")
	// Presence and type passed, so the coerced value is still recorded.
	assert.Equal(t, "not-an-email", result.Sanitized["email"])
}

func TestQuizSchemaAcceptsValidSubmission(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"quiz_id": float64(1),
		"answers": []any{"a"},
	}, mustGet(t, r, "quiz"))

	assert.True(t, result.Valid)
	assert.Equal(t, 1, result.Sanitized["quiz_id"])
}

func TestQuizSchemaRejectsEmptyAnswers(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"quiz_id": float64(3),
		"answers": []any{},
	}, mustGet(t, r, "quiz"))

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "pelo menos 1")
}

func TestNotificationEnumRejection(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"user_id": float64(1),
		"type":    "bogus",
		"title":   "t",
		"message": "m",
	}, mustGet(t, r, "notification"))

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "info, success, warning, error")
}

func TestUnknownFieldsDropped(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"email":    "a@b.com",
		"password": "secret1",
		"is_admin": true,
	}, mustGet(t, r, "login"))

	assert.True(t, result.Valid)
	assert.NotContains(t, result.Sanitized, "is_admin")
}

func TestNumberCoercion(t *testing.T) {
	ageSchema := &Schema{
		Name: "age_check",
		Fields: []Field{
			{Name: "age", Rule: Rule{Required: true, Type: TypeNumber, Min: floatPtr(18)}},
		},
	}

	t.Run("string below minimum is coerced then rejected", func(t *testing.T) {
		result := Validate(map[string]any{"age": "17"}, ageSchema)
		assert.False(t, result.Valid)
		assert.Equal(t, 17, result.Sanitized["age"])
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "pelo menos 18")
	})

	t.Run("string above minimum passes", func(t *testing.T) {
		result := Validate(map[string]any{"age": "25"}, ageSchema)
		assert.True(t, result.Valid)
		assert.Equal(t, map[string]any{"age": 25}, result.Sanitized)
	})

	t.Run("fractional input is truncated, not rejected", func(t *testing.T) {
		result := Validate(map[string]any{"age": "19.9"}, ageSchema)
		assert.True(t, result.Valid)
		assert.Equal(t, 19, result.Sanitized["age"])
	})

	t.Run("unparsable input is a type error", func(t *testing.T) {
		result := Validate(map[string]any{"age": "abc"}, ageSchema)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "número válido")
		assert.NotContains(t, result.Sanitized, "age")
	})
}

func TestBooleanCoercionNeverErrors(t *testing.T) {
	schema := &Schema{
		Name: "prefs",
		Fields: []Field{
			{Name: "subscribe", Rule: Rule{Type: TypeBoolean}},
		},
	}

	tests := []struct {
		name  string
		input any
		want  bool
	}{
		{"bool passthrough", true, true},
		{"string true", "true", true},
		{"string one", "1", true},
		{"other string", "yes", false},
		{"nonzero number", float64(2), true},
		{"zero number", float64(0), false},
		{"object is truthy", map[string]any{"a": 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(map[string]any{"subscribe": tt.input}, schema)
			assert.True(t, result.Valid)
			assert.Equal(t, tt.want, result.Sanitized["subscribe"])
		})
	}
}

func TestDateNormalizedToUTC(t *testing.T) {
	r := builtinRegistry(t)
	schema := mustGet(t, r, "register")
	base := map[string]any{
		"name":     "Ana",
		"email":    "ana@example.com",
		"password": "longenough",
	}

	t.Run("offset near midnight does not shift the day", func(t *testing.T) {
		data := map[string]any{"birth_date": "1999-12-31T23:30:00-03:00"}
		for k, v := range base {
			data[k] = v
		}
		result := Validate(data, schema)
		assert.True(t, result.Valid)
		assert.Equal(t, "2000-01-01", result.Sanitized["birth_date"])
	})

	t.Run("plain date is kept", func(t *testing.T) {
		data := map[string]any{"birth_date": "2001-05-20"}
		for k, v := range base {
			data[k] = v
		}
		result := Validate(data, schema)
		assert.True(t, result.Valid)
		assert.Equal(t, "2001-05-20", result.Sanitized["birth_date"])
	})

	t.Run("unparsable date is a type error", func(t *testing.T) {
		data := map[string]any{"birth_date": "not-a-date"}
		for k, v := range base {
			data[k] = v
		}
		result := Validate(data, schema)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors[0], "data válida")
	})
}

func TestOptionalEmptyStringSkipped(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"name":            "Ana",
		"email":           "ana@example.com",
		"password":        "longenough",
		"education_level": "",
	}, mustGet(t, r, "register"))

	assert.True(t, result.Valid)
	assert.NotContains(t, result.Sanitized, "education_level")
}

func TestStringTypeMismatch(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"email":    "a@b.com",
		"password": float64(123456),
	}, mustGet(t, r, "login"))

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"password deve ser uma string"}, result.Errors)
	assert.NotContains(t, result.Sanitized, "password")
}

func TestMultipleConstraintViolationsAccumulate(t *testing.T) {
	schema := &Schema{
		Name: "handle",
		Fields: []Field{
			{Name: "handle", Rule: Rule{
				Required:  true,
				Type:      TypeString,
				MinLength: intPtr(5),
				Pattern:   regexp.MustCompile(`^[a-z]+$`),
			}},
		},
	}

	result := Validate(map[string]any{"handle": "A1"}, schema)

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestStringValueIsSanitized(t *testing.T) {
	r := builtinRegistry(t)

	result := Validate(map[string]any{
		"user_id": float64(1),
		"type":    "info",
		"title":   "  <script>alert(1)</script>Oi  ",
		"message": "tudo bem",
	}, mustGet(t, r, "notification"))

	assert.True(t, result.Valid)
	assert.Equal(t, "Oi", result.Sanitized["title"])
}

func TestRegistryDuplicateAndNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Schema{Name: "b"}))
	require.NoError(t, r.Register(&Schema{Name: "a"}))

	assert.Error(t, r.Register(&Schema{Name: "a"}))
	assert.Error(t, r.Register(&Schema{Name: ""}))
	assert.Equal(t, []string{"a", "b"}, r.Names())
}
