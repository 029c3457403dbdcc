package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

func TestWeeklyReport(t *testing.T) {
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	data := WeeklyReportData{
		Name: "Ada",
		Stats: models.WeeklyStats{
			UserID:           1,
			From:             from,
			To:               from.Add(7 * 24 * time.Hour),
			ApplicationsSent: 4,
			Offers:           1,
		},
		Upcoming: []models.UpcomingInterview{{
			Interview: models.Interview{ID: 1, Type: "video", ScheduledAt: from.Add(8 * 24 * time.Hour)},
			Company:   "Acme",
			Position:  "Backend engineer",
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewReportGenerator("").WeeklyReport(&buf, data))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWeeklyReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReportGenerator("").WeeklyReport(&buf, WeeklyReportData{}))
	assert.NotZero(t, buf.Len())
}
