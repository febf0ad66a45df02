// internal/service/template.go
package service

import (
	"strings"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// RenderForLead fills the lead placeholders supported in sequence and
// broadcast templates.
func RenderForLead(template string, lead *model.Lead) string {
	return RenderTemplate(template, map[string]string{
		"first_name": lead.FirstName,
		"last_name":  lead.LastName,
		"phone":      lead.Phone,
	})
}
