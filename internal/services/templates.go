package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

const layoutTmpl = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222;max-width:600px;margin:auto">
<h2 style="color:#2b5cab">{{.Heading}}</h2>
{{template "content" .}}
<p style="color:#888;font-size:12px;margin-top:32px">Candi Tracker</p>
</body></html>{{end}}`

var (
	codeEmailTmpl = template.Must(template.Must(template.New("code").Parse(layoutTmpl)).Parse(
		`{{define "content"}}<p>Hello {{.Name}},</p>
<p>{{.Intro}}</p>
<p style="font-size:28px;letter-spacing:6px;font-weight:bold">{{.Code}}</p>
<p>This code expires in {{.TTL}}. If you did not request it, you can ignore this email.</p>{{end}}`))

	interviewEmailTmpl = template.Must(template.Must(template.New("interview").Parse(layoutTmpl)).Parse(
		`{{define "content"}}<p>Hello {{.Name}},</p>
<p>{{.Message}}</p>
<table cellpadding="4">
{{if .Company}}<tr><td><b>Company</b></td><td>{{.Company}}</td></tr>{{end}}
{{if .Position}}<tr><td><b>Position</b></td><td>{{.Position}}</td></tr>{{end}}
{{if .When}}<tr><td><b>When</b></td><td>{{.When}}</td></tr>{{end}}
{{if .Location}}<tr><td><b>Where</b></td><td>{{.Location}}</td></tr>{{end}}
</table>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">Open interview</a></p>{{end}}{{end}}`))

	followUpEmailTmpl = template.Must(template.Must(template.New("followup").Parse(layoutTmpl)).Parse(
		`{{define "content"}}<p>Hello {{.Name}},</p>
<p>{{.Message}}</p>
<p>A short, polite follow-up often moves an application forward.</p>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">Open application</a></p>{{end}}{{end}}`))

	weeklyEmailTmpl = template.Must(template.Must(template.New("weekly").Parse(layoutTmpl)).Parse(
		`{{define "content"}}<p>Hello {{.Name}},</p>
<p>{{.Message}}</p>
<ul>
<li>Applications sent: {{.Stats.applications_sent}}</li>
<li>Interviews held: {{.Stats.interviews_held}}</li>
<li>Upcoming interviews: {{.Stats.interviews_upcoming}}</li>
<li>Offers: {{.Stats.offers}}</li>
<li>Rejections: {{.Stats.rejections}}</li>
<li>Active applications: {{.Stats.active_applications}}</li>
</ul>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">See the full report</a></p>{{end}}{{end}}`))

	genericEmailTmpl = template.Must(template.Must(template.New("generic").Parse(layoutTmpl)).Parse(
		`{{define "content"}}<p>Hello {{.Name}},</p>
<p>{{.Message}}</p>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">Open Candi Tracker</a></p>{{end}}{{end}}`))
)

var codeCopy = map[models.VerificationKind]struct {
	Subject string
	Intro   string
	SMS     string
}{
	models.KindEmailVerification: {"Verify your email address", "Use this code to verify your email address:", "verification code"},
	models.KindPasswordReset:     {"Reset your password", "Use this code to reset your password:", "password reset code"},
	models.KindTwoFactor:         {"Your sign-in code", "Use this code to finish signing in:", "sign-in code"},
	models.KindPhoneVerification: {"Verify your phone number", "Use this code to verify your phone number:", "phone verification code"},
	models.KindAccountDeletion:   {"Confirm account deletion", "Use this code to confirm the deletion of your account. This cannot be undone:", "account deletion code"},
	models.KindSensitiveAction:   {"Confirm a sensitive action", "Use this code to confirm the requested action:", "confirmation code"},
}

func formatTTL(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
}

func renderCodeEmail(kind models.VerificationKind, code, name string, ttl time.Duration) (EmailMessage, error) {
	c := codeCopy[kind]
	var buf bytes.Buffer
	err := codeEmailTmpl.ExecuteTemplate(&buf, "layout", map[string]interface{}{
		"Heading": c.Subject,
		"Name":    name,
		"Intro":   c.Intro,
		"Code":    code,
		"TTL":     formatTTL(ttl),
	})
	if err != nil {
		return EmailMessage{}, fmt.Errorf("render code email: %w", err)
	}
	text := fmt.Sprintf("%s\n\n%s\n\nThis code expires in %s.", c.Intro, code, formatTTL(ttl))
	return EmailMessage{Subject: c.Subject, HTML: buf.String(), Text: text}, nil
}

func renderCodeSMS(kind models.VerificationKind, code string, ttl time.Duration) string {
	return fmt.Sprintf("Candi Tracker %s: %s. Valid %s.", codeCopy[kind].SMS, code, formatTTL(ttl))
}

// renderNotificationEmail picks the type-specific template and falls back to the generic one.
func renderNotificationEmail(in DispatchInput, name string) (EmailMessage, error) {
	vars := map[string]interface{}{
		"Heading": in.Title,
		"Name":    name,
		"Message": in.Message,
	}
	if in.ActionURL != nil {
		vars["ActionURL"] = *in.ActionURL
	}

	tmpl := genericEmailTmpl
	switch in.Type {
	case models.NotificationInterviewReminder:
		tmpl = interviewEmailTmpl
		vars["Company"] = dataString(in.Data, "company")
		vars["Position"] = dataString(in.Data, "position")
		vars["Location"] = dataString(in.Data, "location")
		vars["When"] = dataString(in.Data, "scheduled_at")
	case models.NotificationApplicationFollowUp:
		tmpl = followUpEmailTmpl
	case models.NotificationWeeklyReport:
		tmpl = weeklyEmailTmpl
		vars["Stats"] = in.Data
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", vars); err != nil {
		return EmailMessage{}, fmt.Errorf("render %s email: %w", strings.ToLower(string(in.Type)), err)
	}
	return EmailMessage{Subject: in.Title, HTML: buf.String(), Text: in.Title + "\n\n" + in.Message}, nil
}

func renderNotificationSMS(in DispatchInput) string {
	msg := []rune(in.Title + ": " + in.Message)
	if len(msg) > 300 {
		msg = append(msg[:297], []rune("...")...)
	}
	return "Candi Tracker - " + string(msg)
}

func dataString(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
