package message

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholders supported by outreach templates. {company} and {company_name}
// are aliases kept for compatibility with existing user templates.
const (
	PlaceholderSalutation  = "{salutation}"
	PlaceholderCompany     = "{company}"
	PlaceholderCompanyName = "{company_name}"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}\n]*)\}`)

var knownPlaceholders = map[string]struct{}{
	"salutation":   {},
	"company":      {},
	"company_name": {},
}

// ValidateTemplate checks that the template is non-empty and contains only
// supported {...} placeholders. Callers validate before a dispatch run starts;
// Render assumes a valid template.
func ValidateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return ErrEmptyTemplate
	}
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		if _, ok := knownPlaceholders[m[1]]; !ok {
			return fmt.Errorf("%w: {%s}", ErrUnknownPlaceholder, m[1])
		}
	}
	return nil
}

// Render substitutes placeholder values into the template.
func Render(template, salutation, company string) string {
	return strings.NewReplacer(
		PlaceholderSalutation, salutation,
		PlaceholderCompany, company,
		PlaceholderCompanyName, company,
	).Replace(template)
}
