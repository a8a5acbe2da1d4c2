package services

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

var (
	fenceOpen     = regexp.MustCompile("^```([A-Za-z0-9_-]*[ \t]*\r?\n)?")
	fenceClose    = regexp.MustCompile("\r?\n?```[ \t]*$")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// StripCodeFences removes a surrounding Markdown code fence, with or without
// a language tag, and returns the inner content unchanged. Text without a
// fence is returned trimmed.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	inner := fenceOpen.ReplaceAllString(trimmed, "")
	inner = fenceClose.ReplaceAllString(inner, "")
	return inner
}

// ParseJSON parses a model response into a generic object. A direct parse is
// tried first; on failure the text is repaired (fences, surrounding prose,
// raw control characters inside strings, trailing commas) and parsed again,
// through gjson. Repaired text that is still not valid JSON, such as output
// cut off at the token limit, is rejected with ErrUnparseableResponse.
func ParseJSON(raw string) (map[string]any, error) {
	var out map[string]any
	directErr := json.Unmarshal([]byte(raw), &out)
	if directErr == nil && out != nil {
		return out, nil
	}

	repaired := RepairJSON(raw)
	if gjson.Valid(repaired) {
		if value, ok := gjson.Parse(repaired).Value().(map[string]any); ok {
			return value, nil
		}
	}

	if directErr == nil {
		directErr = errors.New("response is not a JSON object")
	}
	return nil, errors.Wrap(ErrUnparseableResponse, directErr.Error())
}

// RepairJSON applies the textual fixes used by ParseJSON.
func RepairJSON(raw string) string {
	text := StripCodeFences(raw)
	text = extractJSON(text)
	text = escapeControlCharsInStrings(text)
	text = trailingComma.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// extractJSON cuts the text down to its outermost JSON object or array.
func extractJSON(text string) string {
	startObj := strings.Index(text, "{")
	endObj := strings.LastIndex(text, "}")
	startArr := strings.Index(text, "[")
	endArr := strings.LastIndex(text, "]")

	if startObj != -1 && endObj > startObj && (startArr == -1 || startObj < startArr) {
		return text[startObj : endObj+1]
	}
	if startArr != -1 && endArr > startArr {
		return text[startArr : endArr+1]
	}
	return text
}

// escapeControlCharsInStrings escapes raw newlines, tabs and other control
// characters that appear inside JSON string literals. Carriage returns are
// dropped. Whitespace between tokens is left alone.
func escapeControlCharsInStrings(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for _, r := range text {
		if !inString {
			if r == '"' {
				inString = true
			}
			b.WriteRune(r)
			continue
		}

		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
			b.WriteRune(r)
		case r == '"':
			inString = false
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
		case r < 0x20:
			b.WriteString(`\u00`)
			b.WriteString(strconv.FormatInt(int64(r)>>4, 16))
			b.WriteString(strconv.FormatInt(int64(r)&0xf, 16))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeResult parses a structured model response into a
// ComplianceResult. Numbers sent as strings are accepted and missing fields
// fall back to placeholders so the result can always be rendered.
func NormalizeResult(raw string) (*models.ComplianceResult, error) {
	obj, err := ParseJSON(raw)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(obj)
	if err != nil {
		return nil, errors.Wrap(ErrUnparseableResponse, err.Error())
	}
	doc := gjson.ParseBytes(encoded)

	result := &models.ComplianceResult{
		Name:             doc.Get("nombre").String(),
		Identification:   doc.Get("cedula").String(),
		FinalConcept:     strings.TrimSpace(doc.Get("concepto_final").String()),
		SuitabilityText:  doc.Get("idoneidad_texto").String(),
		EducationText:    doc.Get("formacion_texto").String(),
		DetailedAnalysis: doc.Get("analisis_detallado_markdown").String(),
	}

	for _, item := range doc.Get("experiencia_lista").Array() {
		if !item.IsObject() {
			continue
		}
		result.Experience = append(result.Experience, models.ExperienceEntry{
			Employer:  strings.TrimSpace(item.Get("empresa").String()),
			StartDate: strings.TrimSpace(item.Get("fecha_inicio").String()),
			EndDate:   strings.TrimSpace(item.Get("fecha_fin").String()),
			Months:    lenientInt(item.Get("meses")),
			Days:      lenientInt(item.Get("dias")),
			Validated: strings.ToUpper(strings.TrimSpace(item.Get("validada").String())),
		})
	}

	applyResultDefaults(result)
	return result, nil
}

func applyResultDefaults(r *models.ComplianceResult) {
	if r.FinalConcept == "" {
		r.FinalConcept = "NO CUMPLE"
	}
	if r.SuitabilityText == "" {
		r.SuitabilityText = "Sin información"
	}
	if r.EducationText == "" {
		r.EducationText = "Sin información"
	}
	for i := range r.Experience {
		if r.Experience[i].Validated == "" {
			r.Experience[i].Validated = "NO"
		}
	}
}

func lenientInt(v gjson.Result) int {
	switch v.Type {
	case gjson.Number:
		return int(v.Int())
	case gjson.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}
