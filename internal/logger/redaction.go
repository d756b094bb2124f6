package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor masks credentials in rendered log lines.
type Redactor struct {
	patterns []*regexp.Regexp
	fields   *regexp.Regexp
}

// sensitiveFields are argument keys whose values are never logged.
var sensitiveFields = []string{"password", "passwd", "token", "secret", "api_key", "apiKey", "authorization"}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Provider API keys
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),

			// Bearer tokens
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// AWS keys
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		},
		fields: compileFieldPattern(sensitiveFields),
	}
}

// compileFieldPattern matches `"<field>":"value"` pairs inside JSON log lines.
func compileFieldPattern(fields []string) *regexp.Regexp {
	alt := ""
	for i, f := range fields {
		if i > 0 {
			alt += "|"
		}
		alt += regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(`("(?i:` + alt + `)"\s*:\s*)("(?:[^"\\]|\\.)*"|[^,}\s]+)`)
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact masks sensitive values in s.
func (r *Redactor) Redact(s string) string {
	result := r.fields.ReplaceAllString(s, `${1}"`+redacted+`"`)
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, redacted)
	}
	return result
}

// RedactArgs returns a copy of args with sensitive top-level values masked.
func (r *Redactor) RedactArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if r.fields.MatchString(`"` + k + `":""`) {
			out[k] = redacted
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = r.Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so zerolog does not treat a shorter
// redacted line as a short write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
