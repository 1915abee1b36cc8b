package constants

// Standard Response Field Keys
const (
	ResponseFieldMessage = "message"
	ResponseFieldCode    = "code"
	ResponseFieldDetails = "details"
	ResponseFieldData    = "data"
	ResponseFieldUser    = "user"
)

func BuildErrorResponse(message string, details any) map[string]any {
	response := map[string]any{
		ResponseFieldMessage: message,
	}

	if details != nil {
		response[ResponseFieldDetails] = details
	}

	return response
}

// BuildCodedErrorResponse adds a machine-readable code the client can branch on.
func BuildCodedErrorResponse(message, code string) map[string]any {
	return map[string]any{
		ResponseFieldMessage: message,
		ResponseFieldCode:    code,
	}
}

func BuildSuccessResponse(message string) map[string]any {
	return map[string]any{
		ResponseFieldMessage: message,
	}
}

func BuildUserResponse(user any) map[string]any {
	return map[string]any{
		ResponseFieldUser: user,
	}
}
