// internal/orchestration/intent/query.go
package intent

import (
	"strings"
	"unicode"
)

const DefaultCompany = "the company"

const (
	AuditTypeSupplier      = "supplier"
	AuditTypeInternal      = "internal"
	AuditTypeRegulatory    = "regulatory"
	AuditTypeComprehensive = "comprehensive"
)

var auditTypeKeywords = []struct {
	auditType string
	keywords  []string
}{
	{AuditTypeSupplier, []string{"supplier", "cdmo", "vendor"}},
	{AuditTypeInternal, []string{"internal", "site"}},
	{AuditTypeRegulatory, []string{"regulatory", "compliance"}},
}

var timePeriods = []string{"last year", "last 6 months", "last quarter"}

const defaultTimePeriod = "last audit"

// ExtractCompany returns the display name of the first known entity mentioned in query.
func ExtractCompany(query string, entities []string) string {
	q := strings.ToLower(query)
	for _, e := range entities {
		if e != "" && strings.Contains(q, strings.ToLower(e)) {
			return displayName(e)
		}
	}
	return DefaultCompany
}

// MentionsEntity reports whether query contains any known entity.
func MentionsEntity(query string, entities []string) bool {
	return ExtractCompany(query, entities) != DefaultCompany
}

func AuditType(query string) string {
	q := strings.ToLower(query)
	for _, t := range auditTypeKeywords {
		for _, k := range t.keywords {
			if strings.Contains(q, k) {
				return t.auditType
			}
		}
	}
	return AuditTypeComprehensive
}

func TimePeriod(query string) string {
	q := strings.ToLower(query)
	for _, p := range timePeriods {
		if strings.Contains(q, p) {
			return p
		}
	}
	return defaultTimePeriod
}

func displayName(entity string) string {
	words := strings.Fields(entity)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
