package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps upstream error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	CodeTransport: {
		Code:            CodeTransport,
		Description:     "External service could not be reached",
		SuggestedAction: "Check the service URLs: summit config show",
	},
	CodeHTTPStatus: {
		Code:            CodeHTTPStatus,
		Description:     "External service answered with an error status",
		SuggestedAction: "Check that the meeting id exists: summit meetings list",
	},
	CodeDecode: {
		Code:            CodeDecode,
		Description:     "External service answered with an unexpected body",
		SuggestedAction: "Verify the configured URL points at the right service",
	},
	CodeTimeout: {
		Code:            CodeTimeout,
		Description:     "External service did not answer within the timeout",
		SuggestedAction: "Raise the timeout: summit --timeout 2m ...",
	},
	CodeCancelled: {
		Code:            CodeCancelled,
		Description:     "Request cancelled",
		SuggestedAction: "No action needed if the cancellation was intentional",
	},
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Re-run with --debug for details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
