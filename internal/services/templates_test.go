package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

func TestFormatTTL(t *testing.T) {
	assert.Equal(t, "1 minute", formatTTL(time.Minute))
	assert.Equal(t, "15 minutes", formatTTL(15*time.Minute))
	assert.Equal(t, "1 hour", formatTTL(time.Hour))
	assert.Equal(t, "24 hours", formatTTL(24*time.Hour))
	assert.Equal(t, "90 minutes", formatTTL(90*time.Minute))
}

func TestRenderCodeEmailPerKind(t *testing.T) {
	for kind, c := range codeCopy {
		msg, err := renderCodeEmail(kind, "123456", "Ada", CodeTTL(kind))
		require.NoError(t, err, kind)
		assert.Equal(t, c.Subject, msg.Subject)
		assert.Contains(t, msg.HTML, "123456")
		assert.Contains(t, msg.HTML, "Hello Ada")
		assert.Contains(t, msg.Text, "123456")
	}
}

func TestRenderCodeEmailEscapesName(t *testing.T) {
	msg, err := renderCodeEmail(models.KindTwoFactor, "123456", "<script>", 5*time.Minute)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestRenderNotificationEmailInterview(t *testing.T) {
	url := "https://app.example.com/interviews/7"
	msg, err := renderNotificationEmail(DispatchInput{
		Type:    models.NotificationInterviewReminder,
		Title:   "Interview in 1 hour",
		Message: "Prepare your notes",
		Data: map[string]interface{}{
			"company":      "Acme",
			"position":     "Go engineer",
			"location":     "Zoom",
			"scheduled_at": "Mon 10 Mar 13:00",
		},
		ActionURL: &url,
	}, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Interview in 1 hour", msg.Subject)
	for _, want := range []string{"Acme", "Go engineer", "Zoom", "Mon 10 Mar 13:00", url} {
		assert.Contains(t, msg.HTML, want)
	}
}

func TestRenderNotificationEmailGeneric(t *testing.T) {
	msg, err := renderNotificationEmail(DispatchInput{Type: models.NotificationSystem, Title: "Hi", Message: "Maintenance tonight"}, "Ada")
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Maintenance tonight")
	assert.NotContains(t, msg.HTML, "href")
}

func TestRenderNotificationSMSTruncates(t *testing.T) {
	long := strings.Repeat("é", 400)
	out := renderNotificationSMS(DispatchInput{Title: "T", Message: long})
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Equal(t, 300+len([]rune("Candi Tracker - ")), utf8.RuneCountInString(out))
}
