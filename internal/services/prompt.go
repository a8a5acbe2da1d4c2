package services

import (
	"fmt"
	"strings"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentImage SegmentKind = "image"
)

// Segment is one part of a model request, either text or an inline image.
type Segment struct {
	Kind     SegmentKind
	Text     string
	Name     string
	MIMEType string
	Data     []byte
}

// Prompt is a single model request: a system instruction plus ordered
// content segments.
type Prompt struct {
	System   string
	Segments []Segment
	Mode     models.ResponseMode
}

// Text joins all text segments with blank lines. Images are represented by
// their caption segment only.
func (p *Prompt) Text() string {
	var parts []string
	for _, s := range p.Segments {
		if s.Kind == SegmentText {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (p *Prompt) ImageCount() int {
	n := 0
	for _, s := range p.Segments {
		if s.Kind == SegmentImage {
			n++
		}
	}
	return n
}

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

func (pb *PromptBuilder) Build(input *EvaluationInput) *Prompt {
	if input.Mode == models.ModeStructured {
		return pb.BuildStructuredPrompt(input)
	}
	return pb.BuildMarkdownPrompt(input)
}

// BuildMarkdownPrompt asks for a Markdown report with a compliance table and
// an APTO / NO APTO conclusion. All text goes into a single segment.
func (pb *PromptBuilder) BuildMarkdownPrompt(input *EvaluationInput) *Prompt {
	var evidence strings.Builder
	var images []Segment
	for _, doc := range input.Evidence {
		switch doc.Kind {
		case EvidencePDF:
			fmt.Fprintf(&evidence, "\n--- SOPORTE: %s ---\n%s\n", doc.Name, doc.Text)
		case EvidenceImage:
			fmt.Fprintf(&evidence, "\n--- SOPORTE: %s ---\n[Imagen adjunta: %s]\n", doc.Name, doc.Name)
			images = append(images, imageSegment(doc))
		}
	}

	text := fmt.Sprintf(`CANDIDATO: %s (ID: %s)

=== PERFIL REQUERIDO Y REQUISITOS ===
%s

=== DOCUMENTOS APORTADOS (EVIDENCIA) ===
%s`, input.Candidate.Name, input.Candidate.Identification, input.Requirements, evidence.String())

	segments := append([]Segment{{Kind: SegmentText, Text: text}}, images...)

	return &Prompt{
		System:   markdownSystemInstruction,
		Segments: segments,
		Mode:     models.ModeMarkdown,
	}
}

// BuildStructuredPrompt asks for the JSON compliance result. Evidence is sent
// in upload order, with each image preceded by its caption.
func (pb *PromptBuilder) BuildStructuredPrompt(input *EvaluationInput) *Prompt {
	segments := []Segment{
		{Kind: SegmentText, Text: "=== PERFIL REQUERIDO ===\n" + input.Requirements},
		{Kind: SegmentText, Text: "=== EVIDENCIAS DEL CANDIDATO ==="},
	}

	for _, doc := range input.Evidence {
		switch doc.Kind {
		case EvidencePDF:
			segments = append(segments, Segment{
				Kind: SegmentText,
				Text: fmt.Sprintf("DOCUMENTO PDF (%s):\n%s", doc.Name, doc.Text),
			})
		case EvidenceImage:
			segments = append(segments,
				Segment{Kind: SegmentText, Text: fmt.Sprintf("IMAGEN (%s):", doc.Name)},
				imageSegment(doc),
			)
		}
	}

	return &Prompt{
		System:   structuredSystemInstruction(input.Candidate),
		Segments: segments,
		Mode:     models.ModeStructured,
	}
}

func imageSegment(doc EvidenceDocument) Segment {
	return Segment{
		Kind:     SegmentImage,
		Name:     doc.Name,
		MIMEType: doc.MIMEType,
		Data:     doc.Data,
	}
}

const markdownSystemInstruction = `Eres el Auditor de Contratación del SENA (Regional Huila).
Tu misión es validar rigurosamente si un candidato cumple con los requisitos para ser Instructor.

INSTRUCCIONES DE VALIDACIÓN:
1. Analiza DETALLADAMENTE los "REQUISITOS DEL PERFIL" proporcionados.
2. Revisa UNO A UNO los "DOCUMENTOS APORTADOS" (Soportes).
3. Para cada requisito, busca la evidencia correspondiente en los soportes.
4. Determina si el candidato "CUMPLE" o "NO CUMPLE" con cada requisito específico.
5. Justifica tu decisión citando el documento y la página (si es posible) donde se encuentra la evidencia.
6. Si un requisito no tiene soporte, marca "NO CUMPLE" y explica que falta la evidencia.
7. Cuando el perfil ofrezca alternativas (por ejemplo "título A o título B"), basta con cumplir una de ellas.

FORMATO DE SALIDA (Markdown):
- Resumen del Perfil: Breve descripción del cargo.
- Tabla de Cumplimiento:
  | Requisito | Estado (CUMPLE / NO CUMPLE) | Justificación / Evidencia |
  | :--- | :---: | :--- |
  | ... | ... | ... |
- Conclusión Final: Párrafo indicando si el candidato es APTO o NO APTO para contratación, basado en si cumple TODOS los requisitos críticos.`

func structuredSystemInstruction(c Candidate) string {
	return fmt.Sprintf(`Eres el Auditor de Contratación del SENA.

OBJETIVO:
Determinar si el candidato %[1]s (ID: %[2]s) CUMPLE o NO CUMPLE con el perfil.

REGLAS ESTRICTAS DE VALIDACIÓN:
1. FECHAS EXACTAS: Solo acepta experiencias con fecha de inicio y fin completas (DD/MM/AAAA).
   - Si una certificación solo tiene MM/AAAA, DESCARTARLA (no cuenta).
   - Si no tiene fecha de fin (y no es actual), DESCARTARLA.
2. TARJETA PROFESIONAL: Si el perfil exige Tarjeta Profesional, búscala en los soportes.
   - Si la encuentras, extrae: "COPNIA [Número] [Fecha]".
3. INSTRUCTORES: La experiencia como "Instructor SENA" o similar ES VÁLIDA como experiencia técnica.
4. ALTERNATIVAS: Si el perfil ofrece requisitos alternativos, basta con cumplir uno de ellos.
5. SUMATORIA: Suma solo los tiempos de certificaciones VÁLIDAS (con fechas completas).

SALIDA JSON OBLIGATORIA:
{
  "nombre": "%[1]s",
  "cedula": "%[2]s",
  "concepto_final": "CUMPLE (solo si cumple 100%% formación Y tiempo total de experiencia) o NO CUMPLE",
  "idoneidad_texto": "CONCLUSIÓN: [CUMPLE/NO CUMPLE]. Justificación detallada. Si falta Tarjeta Profesional y se requiere, indicarlo.",
  "formacion_texto": "Título Profesional + Fecha Grado. (Y Tarjeta Profesional si aplica).",
  "experiencia_lista": [
    {
      "empresa": "Nombre Empresa",
      "fecha_inicio": "DD/MM/AAAA",
      "fecha_fin": "DD/MM/AAAA",
      "meses": 12,
      "dias": 0,
      "validada": "SI"
    }
  ],
  "analisis_detallado_markdown": "Tabla resumen en Markdown."
}`, c.Name, c.Identification)
}
