package pdf

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

type Generator interface {
	WeeklyReport(w io.Writer, data WeeklyReportData) error
}

type WeeklyReportData struct {
	Name     string
	Stats    models.WeeklyStats
	Upcoming []models.UpcomingInterview
}

// ReportGenerator renders with the TTF at FontPath, or the core Helvetica font when it is empty.
type ReportGenerator struct {
	FontPath string
	fontName string
}

func NewReportGenerator(fontPath string) *ReportGenerator {
	g := &ReportGenerator{FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		g.fontName = "DejaVu"
	}
	return g
}

func (g *ReportGenerator) WeeklyReport(w io.Writer, data WeeklyReportData) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Weekly report", false)
	pdf.SetAuthor("Candi Tracker", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	g.addUTF8Font(pdf)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "Weekly report", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	period := fmt.Sprintf("%s - %s", data.Stats.From.Format("02 Jan 2006"), data.Stats.To.Format("02 Jan 2006"))
	pdf.CellFormat(0, 7, period, "", 1, "C", false, 0, "")
	if data.Name != "" {
		pdf.CellFormat(0, 7, data.Name, "", 1, "C", false, 0, "")
	}
	g.hr(pdf)

	g.sectionTitle(pdf, "Activity")
	s := data.Stats
	g.kvLine(pdf, "Applications sent", fmt.Sprintf("%d", s.ApplicationsSent))
	g.kvLine(pdf, "Interviews held", fmt.Sprintf("%d", s.InterviewsHeld))
	g.kvLine(pdf, "Upcoming interviews", fmt.Sprintf("%d", s.InterviewsUpcoming))
	g.kvLine(pdf, "Offers", fmt.Sprintf("%d", s.Offers))
	g.kvLine(pdf, "Rejections", fmt.Sprintf("%d", s.Rejections))
	g.kvLine(pdf, "Active applications", fmt.Sprintf("%d", s.ActiveApplications))
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Next interviews")
	if len(data.Upcoming) == 0 {
		pdf.MultiCell(0, 6, "No interviews scheduled.", "", "L", false)
	} else {
		g.interviewTable(pdf, data.Upcoming)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render weekly report: %w", err)
	}
	return nil
}

func (g *ReportGenerator) interviewTable(pdf *gofpdf.Fpdf, rows []models.UpcomingInterview) {
	widths := []float64{40, 50, 50, 30}
	pdf.SetFont(g.fontName, "B", 10)
	for i, h := range []string{"When", "Company", "Position", "Type"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(g.fontName, "", 10)
	for _, r := range rows {
		pdf.CellFormat(widths[0], 6, r.ScheduledAt.Format("Mon 02 Jan 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, r.Company, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, r.Position, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, r.Type, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
}

func (g *ReportGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *ReportGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(55, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *ReportGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func (g *ReportGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	if g.FontPath == "" {
		return
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}
