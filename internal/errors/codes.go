package errors

import "strings"

// Code is a structured error code carried by portal failures.
//
// Newer portal builds send a "code" field next to "message". Older builds
// only send a message, so LegacyCode recovers a code from known phrases.
type Code string

const (
	CodeGPSMissing      Code = "gps_missing"
	CodeIrrelevantImage Code = "irrelevant_image"
	CodeOutOfScope      Code = "out_of_scope"
	CodeNotFound        Code = "not_found"
	CodeInvalidStatus   Code = "invalid_status"
	CodeUnauthorized    Code = "unauthorized"
	CodeUnknown         Code = "unknown"
)

// legacyPhrases maps message fragments from older portal builds to codes.
// Order matters: the first match wins.
var legacyPhrases = []struct {
	fragment string
	code     Code
}{
	{"GPS", CodeGPSMissing},
	{"Irrelevant image", CodeIrrelevantImage},
	{"outside our scope", CodeOutOfScope},
	{"not found", CodeNotFound},
	{"Invalid status", CodeInvalidStatus},
	{"Please login first", CodeUnauthorized},
	{"No active session", CodeUnauthorized},
	{"Invalid credentials", CodeUnauthorized},
}

// friendly holds the user-facing message per code. An empty entry means
// "show the server's own message".
var friendly = map[Code]string{
	CodeGPSMissing:      "Please submit an image with GPS data. Use photos taken directly from camera.",
	CodeIrrelevantImage: "",
	CodeOutOfScope:      "",
	CodeNotFound:        "",
	CodeInvalidStatus:   "Invalid status. Status must be Pending, In Progress, or Resolved.",
	CodeUnauthorized:    "Your session has expired. Please log in again.",
}

// LegacyCode derives a code from a free-text server message.
func LegacyCode(message string) Code {
	for _, p := range legacyPhrases {
		if strings.Contains(message, p.fragment) {
			return p.code
		}
	}
	return CodeUnknown
}

// ResolveCode prefers an explicit known code and falls back to LegacyCode.
func ResolveCode(explicit, message string) Code {
	if c := Code(strings.TrimSpace(explicit)); c != "" {
		if _, known := friendly[c]; known {
			return c
		}
	}
	return LegacyCode(message)
}

// FriendlyMessage returns the message to show for a failure. When the code
// has no canned text the server message is used, then fallback.
func FriendlyMessage(code Code, serverMessage, fallback string) string {
	if msg := friendly[code]; msg != "" {
		return msg
	}
	if serverMessage != "" {
		return serverMessage
	}
	return fallback
}
