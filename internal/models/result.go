package models

// ComplianceResult is the structured answer requested from the model.
type ComplianceResult struct {
	Name             string            `json:"nombre"`
	Identification   string            `json:"cedula"`
	FinalConcept     string            `json:"concepto_final"`
	SuitabilityText  string            `json:"idoneidad_texto"`
	EducationText    string            `json:"formacion_texto"`
	Experience       []ExperienceEntry `json:"experiencia_lista"`
	DetailedAnalysis string            `json:"analisis_detallado_markdown"`
}

type ExperienceEntry struct {
	Employer  string `json:"empresa"`
	StartDate string `json:"fecha_inicio"`
	EndDate   string `json:"fecha_fin"`
	Months    int    `json:"meses"`
	Days      int    `json:"dias"`
	Validated string `json:"validada"`
}

// VerifiedExperience is an experience entry after local date arithmetic.
type VerifiedExperience struct {
	ExperienceEntry
	Valid          bool   `json:"valida"`
	ComputedMonths int    `json:"meses_calculados"`
	ComputedDays   int    `json:"dias_calculados"`
	Reason         string `json:"motivo,omitempty"`
}

type ExperienceSummary struct {
	Entries          []VerifiedExperience `json:"entradas"`
	TotalMonths      int                  `json:"total_meses"`
	TotalDays        int                  `json:"total_dias"`
	ModelTotalMonths int                  `json:"total_meses_modelo"`
	ModelTotalDays   int                  `json:"total_dias_modelo"`
	Discrepancies    []string             `json:"discrepancias,omitempty"`
}

// StoredResult is the structured outcome persisted with an evaluation.
type StoredResult struct {
	Result     *ComplianceResult  `json:"result"`
	Experience *ExperienceSummary `json:"experience,omitempty"`
}

type ValidationResponse struct {
	Analysis string `json:"analisis"`
}

type StructuredValidationResponse struct {
	Result          *ComplianceResult  `json:"result"`
	Experience      *ExperienceSummary `json:"experience"`
	VerdictPositive bool               `json:"verdict_positive"`
	Markdown        string             `json:"markdown"`
}

type UploadResponse struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FileType     string `json:"file_type"`
	Pages        int    `json:"pages,omitempty"`
}

type EvaluateRequest struct {
	CandidateName          string   `json:"nombre"`
	CandidateID            string   `json:"identificacion"`
	Requirements           string   `json:"requisitos"`
	RequirementDocumentIDs []string `json:"requirement_document_ids"`
	EvidenceDocumentIDs    []string `json:"evidence_document_ids"`
	TemplateDocumentID     string   `json:"template_document_id"`
	Mode                   string   `json:"mode"`
}

type EvaluateResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ResultResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Result       *EvaluationData `json:"result,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

type EvaluationData struct {
	CandidateName   string             `json:"nombre"`
	CandidateID     string             `json:"identificacion"`
	Mode            string             `json:"mode"`
	Analysis        string             `json:"analisis,omitempty"`
	Verdict         string             `json:"concepto_final,omitempty"`
	VerdictPositive bool               `json:"verdict_positive"`
	Structured      *ComplianceResult  `json:"structured,omitempty"`
	Experience      *ExperienceSummary `json:"experience,omitempty"`
}
