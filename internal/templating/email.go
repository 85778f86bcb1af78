package templating

import (
	"net/url"
	"strings"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// Draft resolves the email templates for one row.
func Draft(t models.EmailTemplates, vars Variables) *models.EmailDraft {
	d := &models.EmailDraft{
		To:      splitRecipients(Resolve(t.To, vars)),
		Subject: Resolve(t.Subject, vars),
		Body:    Resolve(t.Body, vars),
	}
	d.Mailto = MailtoURL(d)
	return d
}

// MailtoURL builds a mailto: link for the draft.
func MailtoURL(d *models.EmailDraft) string {
	recipients := make([]string, 0, len(d.To))
	for _, r := range d.To {
		recipients = append(recipients, url.PathEscape(r))
	}

	q := make([]string, 0, 2)
	if d.Subject != "" {
		q = append(q, "subject="+queryEscape(d.Subject))
	}
	if d.Body != "" {
		q = append(q, "body="+queryEscape(strings.ReplaceAll(d.Body, "\r\n", "\n")))
	}

	link := "mailto:" + strings.Join(recipients, ",")
	if len(q) > 0 {
		link += "?" + strings.Join(q, "&")
	}
	return link
}

// IsZero reports whether no email template is set.
func IsZero(t models.EmailTemplates) bool {
	return t.To == "" && t.Subject == "" && t.Body == ""
}

func splitRecipients(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// queryEscape escapes a mailto header value. Spaces become %20 since mail
// clients do not decode '+'.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
