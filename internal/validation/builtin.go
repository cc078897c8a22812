package validation

import "regexp"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EducationLevels accepted by the register schema.
var EducationLevels = []string{"fundamental", "medio", "tecnico", "superior", "pos_graduacao"}

// NotificationTypes accepted by the notification schema.
var NotificationTypes = []string{"info", "success", "warning", "error"}

// RegisterBuiltins installs the application's request schemas. The
// mechanism stays generic; these are the shapes the current endpoints
// consume.
func RegisterBuiltins(r *Registry) error {
	schemas := []*Schema{
		{
			Name: "login",
			Fields: []Field{
				{Name: "email", Rule: Rule{Required: true, Type: TypeEmail, Pattern: emailPattern}},
				{Name: "password", Rule: Rule{Required: true, Type: TypeString, MinLength: intPtr(6)}},
			},
		},
		{
			Name: "register",
			Fields: []Field{
				{Name: "name", Rule: Rule{Required: true, Type: TypeString, MinLength: intPtr(2), MaxLength: intPtr(100)}},
				{Name: "email", Rule: Rule{Required: true, Type: TypeEmail, Pattern: emailPattern}},
				{Name: "password", Rule: Rule{Required: true, Type: TypeString, MinLength: intPtr(8), MaxLength: intPtr(72)}},
				{Name: "birth_date", Rule: Rule{Type: TypeDate}},
				{Name: "education_level", Rule: Rule{Type: TypeString, Enum: EducationLevels}},
			},
		},
		{
			Name: "quiz",
			Fields: []Field{
				{Name: "quiz_id", Rule: Rule{Required: true, Type: TypeNumber, Min: floatPtr(1)}},
				{Name: "answers", Rule: Rule{Required: true, Type: TypeArray, MinLength: intPtr(1)}},
			},
		},
		{
			Name: "notification",
			Fields: []Field{
				{Name: "user_id", Rule: Rule{Required: true, Type: TypeNumber, Min: floatPtr(1)}},
				{Name: "type", Rule: Rule{Required: true, Type: TypeString, Enum: NotificationTypes}},
				{Name: "title", Rule: Rule{Required: true, Type: TypeString, MaxLength: intPtr(100)}},
				{Name: "message", Rule: Rule{Required: true, Type: TypeString, MaxLength: intPtr(500)}},
			},
		},
	}

	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
