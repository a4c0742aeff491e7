// Package pdf renders the downloadable wellness report: the questionnaire
// answers as a summary table with a severity reading per screening item,
// followed by the personalized recommendation. The recommendation text is
// lightweight markdown (headings and bullets) and is walked line by line.
package pdf

import (
	"bytes"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/animoa/animoa-backend/internal/domain"
)

// severityByCadence maps the screening cadence answers to a severity label.
var severityByCadence = map[string]string{
	"Not at all":              "None",
	"Several days":            "Mild",
	"More than half the days": "Moderate",
	"Nearly every day":        "Severe",
}

// qualityBySleep maps sleep answers to a quality label.
var qualityBySleep = map[string]string{
	"Very poor": "Very Poor",
	"Poor":      "Poor",
	"Fair":      "Fair",
	"Good":      "Good",
	"Very good": "Excellent",
}

// levelBySupport maps social support answers to a level label.
var levelBySupport = map[string]string{
	"No support":       "None",
	"Limited support":  "Limited",
	"Moderate support": "Moderate",
	"Strong support":   "Strong",
}

// placeholderRecommendation is rendered when the recommendation back-fill has
// not completed yet.
const placeholderRecommendation = "Your recommendation has not been generated yet. Please check back shortly."

// RenderWellnessReport produces the PDF for one assessment. recommendation
// may be nil when the back-fill has not landed; a placeholder is rendered
// instead.
func RenderWellnessReport(answers domain.AssessmentAnswers, recommendation *string, generatedAt time.Time) ([]byte, error) {
	doc := fpdf.New("P", "mm", "Letter", "")
	doc.SetMargins(25, 25, 25)
	doc.SetAutoPageBreak(true, 25)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	// Title block
	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 10, tr("MENTAL WELLNESS INSIGHTS"), "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 8, tr("Generated on "+generatedAt.Format("January 2, 2006")), "", 1, "C", false, 0, "")
	doc.Ln(6)

	// Assessment summary table
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 7, tr("ASSESSMENT SUMMARY"), "", 1, "L", false, 0, "")
	doc.Ln(1)

	rows := [][3]string{
		{"Feeling down or depressed", answers.Mood, lookup(severityByCadence, answers.Mood)},
		{"Little interest or pleasure", answers.Interest, lookup(severityByCadence, answers.Interest)},
		{"Feeling anxious", answers.Anxiety, lookup(severityByCadence, answers.Anxiety)},
		{"Uncontrollable worry", answers.Worry, lookup(severityByCadence, answers.Worry)},
		{"Sleep quality", answers.Sleep, lookup(qualityBySleep, answers.Sleep)},
		{"Social support", answers.Support, lookup(levelBySupport, answers.Support)},
	}

	colW := [3]float64{70, 58, 35}
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(230, 230, 230)
	doc.CellFormat(colW[0], 7, tr("Assessment Area"), "1", 0, "C", true, 0, "")
	doc.CellFormat(colW[1], 7, tr("Response"), "1", 0, "C", true, 0, "")
	doc.CellFormat(colW[2], 7, tr("Severity/Quality"), "1", 1, "C", true, 0, "")

	doc.SetFont("Helvetica", "", 10)
	for _, r := range rows {
		doc.CellFormat(colW[0], 7, tr(r[0]), "1", 0, "L", false, 0, "")
		doc.CellFormat(colW[1], 7, tr(r[1]), "1", 0, "C", false, 0, "")
		doc.CellFormat(colW[2], 7, tr(r[2]), "1", 1, "C", false, 0, "")
	}
	doc.Ln(4)

	// Coping strategies go below the table; free text can be long.
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 7, tr("Current Coping Strategies:"), "", 1, "L", false, 0, "")
	coping := strings.TrimSpace(answers.Coping)
	if coping == "" {
		coping = "No coping strategies provided."
	}
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 5, tr(coping), "", "L", false)
	doc.Ln(5)

	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 7, tr("PERSONALIZED RECOMMENDATIONS"), "", 1, "L", false, 0, "")
	doc.Ln(1)

	body := placeholderRecommendation
	if recommendation != nil && strings.TrimSpace(*recommendation) != "" {
		body = *recommendation
	}
	writeMarkdown(doc, tr, body)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeMarkdown walks the recommendation line by line, mapping markdown
// headings and bullets onto PDF styles. Inline bold markers are stripped.
func writeMarkdown(doc *fpdf.Fpdf, tr func(string) string, text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			doc.Ln(3)
		case strings.HasPrefix(line, "### "):
			doc.SetFont("Helvetica", "B", 11)
			doc.MultiCell(0, 6, tr(stripBold(line[4:])), "", "L", false)
		case strings.HasPrefix(line, "## "):
			doc.SetFont("Helvetica", "B", 12)
			doc.MultiCell(0, 6, tr(stripBold(line[3:])), "", "L", false)
		case strings.HasPrefix(line, "# "):
			doc.SetFont("Helvetica", "B", 14)
			doc.MultiCell(0, 7, tr(stripBold(line[2:])), "", "L", false)
		case strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "- "):
			doc.SetFont("Helvetica", "", 10)
			doc.MultiCell(0, 5, tr("• "+stripBold(line[2:])), "", "L", false)
		default:
			doc.SetFont("Helvetica", "", 10)
			doc.MultiCell(0, 5, tr(stripBold(line)), "", "L", false)
		}
	}
}

// stripBold removes markdown emphasis markers; fpdf has no inline style runs.
func stripBold(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

// lookup returns the mapped label or a dash for unknown answers.
func lookup(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return "-"
}
