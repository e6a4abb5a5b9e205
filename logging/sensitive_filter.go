package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match secrets embedded in free-form strings.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$2[aby]?\$\d{2}\$[./A-Za-z0-9]{53}`),      // bcrypt hashes
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),        // Bearer tokens
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{8,})`),       // password= or password:
	regexp.MustCompile(`(?i)(secret(_auth)?\s*[:=]\s*[^\s,;]{4,})`), // secret= or secret_auth=
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),          // token= or token:
	regexp.MustCompile(`(?i)(api_?key\s*[:=]\s*[^\s,;]{8,})`),       // api_key= or apikey=
}

// sensitiveFieldNames are substrings of field or variable names whose values are never logged.
var sensitiveFieldNames = []string{
	"SECRET",
	"USER_AUTH",
	"PASSWORD",
	"TOKEN",
	"API_KEY",
	"APIKEY",
}

// RedactSensitiveData replaces every known secret pattern in value.
//
//	RedactSensitiveData("secret_auth=hunter22") // "[REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// RedactField redacts a field value if the field name indicates sensitive data,
// otherwise it scans the value itself.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return RedactSensitiveData(fieldValue)
}

// IsSensitiveField reports whether a field name marks its value as sensitive.
// Matching is case-insensitive, so "secret_auth" and "GENERATION_SECRET" both match.
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData returns true if the value contains any sensitive data patterns.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
