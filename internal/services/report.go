package services

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

// IsPositiveVerdict reports whether a final concept means the candidate
// meets the profile: it must say CUMPLE and must not contain NO.
func IsPositiveVerdict(concept string) bool {
	upper := strings.ToUpper(concept)
	return strings.Contains(upper, "CUMPLE") && !strings.Contains(upper, "NO")
}

type ReportRenderer struct {
	md goldmark.Markdown
}

func NewReportRenderer() *ReportRenderer {
	return &ReportRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Markdown renders a structured result and its verified experience as a
// Markdown report.
func (r *ReportRenderer) Markdown(result *models.ComplianceResult, experience *models.ExperienceSummary) string {
	var b strings.Builder

	verdict := "⚠️ " + result.FinalConcept
	if IsPositiveVerdict(result.FinalConcept) {
		verdict = "✅ " + result.FinalConcept
	}

	fmt.Fprintf(&b, "# Concepto de idoneidad: %s\n\n", verdict)
	fmt.Fprintf(&b, "**Nombre:** %s  \n**Cédula:** %s\n\n", result.Name, result.Identification)
	fmt.Fprintf(&b, "## Idoneidad\n\n%s\n\n", result.SuitabilityText)
	fmt.Fprintf(&b, "## Formación\n\n%s\n\n", result.EducationText)

	b.WriteString("## Experiencia\n\n")
	if experience == nil || len(experience.Entries) == 0 {
		b.WriteString("Sin experiencia reportada.\n\n")
	} else {
		b.WriteString("| Empresa | Inicio | Fin | Meses | Días | Validada | Observación |\n")
		b.WriteString("| :--- | :---: | :---: | ---: | ---: | :---: | :--- |\n")
		for _, e := range experience.Entries {
			validated := "NO"
			if e.Valid {
				validated = "SI"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %s | %s |\n",
				tableCell(e.Employer), tableCell(e.StartDate), tableCell(e.EndDate),
				e.ComputedMonths, e.ComputedDays, validated, tableCell(e.Reason))
		}
		fmt.Fprintf(&b, "\n**Total experiencia validada:** %d meses %d días\n\n", experience.TotalMonths, experience.TotalDays)

		if len(experience.Discrepancies) > 0 {
			b.WriteString("### Diferencias con el cálculo del modelo\n\n")
			for _, d := range experience.Discrepancies {
				fmt.Fprintf(&b, "- %s\n", d)
			}
			b.WriteString("\n")
		}
	}

	if strings.TrimSpace(result.DetailedAnalysis) != "" {
		fmt.Fprintf(&b, "## Análisis detallado\n\n%s\n", result.DetailedAnalysis)
	}

	return b.String()
}

// HTML converts a Markdown report into a standalone HTML page.
func (r *ReportRenderer) HTML(title, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &body); err != nil {
		return nil, errors.Wrap(err, "failed to render markdown")
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2rem auto; color: #222; }
table { border-collapse: collapse; width: 100%%; }
th, td { border: 1px solid #ccc; padding: 6px 8px; vertical-align: top; }
th { background: #39A900; color: #fff; }
</style>
</head>
<body>
`, html.EscapeString(title))
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	return page.Bytes(), nil
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
