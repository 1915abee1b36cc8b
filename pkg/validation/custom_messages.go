package validation

// CustomMessage returns field-specific messages keyed by validation tag.
func CustomMessage(field string) map[string]string {
	var customValidationMessages = map[string]map[string]string{
		"Email": {
			"required": "email is required",
			"email":    "email must be a valid email address",
			"max":      "email is too long",
		},
		"Password": {
			"required": "password is required",
			"min":      "password must be at least 8 characters",
			"max":      "password must be at most 72 characters",
		},
		"Name": {
			"required": "name is required",
			"max":      "name must be at most 100 characters",
		},
		"InitialRole": {
			"oneof": "initialRole must be one of: expert, organization",
		},
		"IDToken": {
			"required": "idToken is required",
		},
		"Token": {
			"required":    "token is required",
			"hexadecimal": "token is malformed",
		},
	}
	return customValidationMessages[field]
}
