package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"alfredoptarigan/idoneidad-checker/internal/models"
	"alfredoptarigan/idoneidad-checker/internal/repositories"
)

const (
	VerdictApto   = "APTO"
	VerdictNoApto = "NO APTO"
)

var (
	verdictPattern = regexp.MustCompile(`\bNO\s+(?:ES\s+)?APTO\b|\bAPTO\b`)
)

// EvaluationOutcome is the result of one compliance check.
type EvaluationOutcome struct {
	Mode            models.ResponseMode
	Candidate       Candidate
	Prompt          *Prompt
	RawResponse     string
	Analysis        string
	Result          *models.ComplianceResult
	Experience      *models.ExperienceSummary
	Verdict         string
	VerdictPositive bool
}

type EvaluatorService interface {
	Evaluate(ctx context.Context, req *CollectRequest) (*EvaluationOutcome, error)
	EvaluateCandidate(ctx context.Context, evalID uuid.UUID) error
}

type evaluatorService struct {
	evalRepo      repositories.EvaluationRepository
	storage       StorageService
	collector     InputCollector
	promptBuilder *PromptBuilder
	modelClient   ModelClient
	renderer      *ReportRenderer
	maxAttempts   int
	now           func() time.Time
}

// NewEvaluatorService wires the pipeline. evalRepo and storage may be nil
// when only synchronous evaluation is used.
func NewEvaluatorService(
	evalRepo repositories.EvaluationRepository,
	storage StorageService,
	collector InputCollector,
	modelClient ModelClient,
	maxAttempts int,
) EvaluatorService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &evaluatorService{
		evalRepo:      evalRepo,
		storage:       storage,
		collector:     collector,
		promptBuilder: NewPromptBuilder(),
		modelClient:   modelClient,
		renderer:      NewReportRenderer(),
		maxAttempts:   maxAttempts,
		now:           time.Now,
	}
}

// Evaluate runs collect, prompt, model and normalize for one request.
// Invalid input fails before the model is called.
func (e *evaluatorService) Evaluate(ctx context.Context, req *CollectRequest) (*EvaluationOutcome, error) {
	input, err := e.collector.Collect(ctx, req)
	if err != nil {
		return nil, err
	}

	prompt := e.promptBuilder.Build(input)
	logger := log.WithFields(log.Fields{
		"candidate": input.Candidate.Name,
		"mode":      prompt.Mode,
	})
	logger.WithFields(log.Fields{
		"prompt_chars": len(prompt.Text()),
		"images":       prompt.ImageCount(),
	}).Info("Sending evaluation prompt")

	raw, err := e.modelClient.GenerateWithRetry(ctx, prompt, e.maxAttempts)
	if err != nil {
		logger.WithError(err).Error("Model call failed")
		return nil, newStageError(StageModel, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, newStageError(StageModel, ErrEmptyResponse)
	}
	logger.WithField("response_chars", len(raw)).Info("Model response received")

	outcome := &EvaluationOutcome{
		Mode:        prompt.Mode,
		Candidate:   input.Candidate,
		Prompt:      prompt,
		RawResponse: raw,
	}

	if prompt.Mode == models.ModeStructured {
		if err := e.finishStructured(outcome, input.Candidate); err != nil {
			logger.WithError(err).Error("Failed to normalize model response")
			return nil, err
		}
	} else {
		outcome.Analysis = StripCodeFences(raw)
		outcome.Verdict = MarkdownVerdict(outcome.Analysis)
		outcome.VerdictPositive = outcome.Verdict == VerdictApto
	}

	logger.WithField("verdict", outcome.Verdict).Info("Evaluation finished")
	return outcome, nil
}

func (e *evaluatorService) finishStructured(outcome *EvaluationOutcome, candidate Candidate) error {
	result, err := NormalizeResult(outcome.RawResponse)
	if err != nil {
		return newStageError(StageNormalize, err)
	}
	if strings.TrimSpace(result.Name) == "" {
		result.Name = candidate.Name
	}
	if strings.TrimSpace(result.Identification) == "" {
		result.Identification = candidate.Identification
	}

	outcome.Result = result
	outcome.Experience = VerifyExperience(result.Experience, e.now())
	outcome.Verdict = result.FinalConcept
	outcome.VerdictPositive = IsPositiveVerdict(result.FinalConcept)
	outcome.Analysis = e.renderer.Markdown(result, outcome.Experience)
	return nil
}

// MarkdownVerdict reads the APTO / NO APTO conclusion from a Markdown
// report: the last verdict after the final "Conclusión" heading, or in the
// whole report when that section has none. An empty string means no
// conclusion was found.
func MarkdownVerdict(report string) string {
	upper := strings.ToUpper(report)
	if i := strings.LastIndex(upper, "CONCLUSI"); i >= 0 {
		if v := lastVerdict(upper[i:]); v != "" {
			return v
		}
	}
	return lastVerdict(upper)
}

func lastVerdict(upper string) string {
	matches := verdictPattern.FindAllString(upper, -1)
	if len(matches) == 0 {
		return ""
	}
	if strings.HasPrefix(matches[len(matches)-1], "NO") {
		return VerdictNoApto
	}
	return VerdictApto
}

// EvaluateCandidate processes a stored evaluation and records its result or
// failure.
func (e *evaluatorService) EvaluateCandidate(ctx context.Context, evalID uuid.UUID) error {
	if e.evalRepo == nil || e.storage == nil {
		return errors.New("evaluation storage is not configured")
	}

	if err := e.evalRepo.UpdateStatus(evalID, models.StatusProcessing); err != nil {
		return errors.Wrap(err, "failed to update status")
	}

	logger := log.WithField("evaluation_id", evalID)
	logger.Info("Starting evaluation")

	evaluation, err := e.evalRepo.FindByID(evalID)
	if err != nil {
		return e.fail(evalID, errors.Wrap(err, "failed to get evaluation"))
	}

	req, err := e.requestFor(evaluation)
	if err != nil {
		return e.fail(evalID, err)
	}

	outcome, err := e.Evaluate(ctx, req)
	if err != nil {
		return e.fail(evalID, err)
	}

	update := &repositories.EvaluationUpdateData{
		Analysis:        &outcome.Analysis,
		Verdict:         &outcome.Verdict,
		VerdictPositive: &outcome.VerdictPositive,
	}
	if outcome.Result != nil {
		data, err := json.Marshal(models.StoredResult{Result: outcome.Result, Experience: outcome.Experience})
		if err != nil {
			return e.fail(evalID, errors.Wrap(err, "failed to encode result"))
		}
		stored := string(data)
		update.ResultJSON = &stored
	}

	if err := e.evalRepo.UpdateResult(evalID, update); err != nil {
		return errors.Wrap(err, "failed to save results")
	}

	logger.Info("Evaluation completed")
	return nil
}

func (e *evaluatorService) requestFor(evaluation *models.Evaluation) (*CollectRequest, error) {
	req := &CollectRequest{
		Candidate: Candidate{
			Name:           evaluation.CandidateName,
			Identification: evaluation.CandidateID,
		},
		RequirementsText: evaluation.RequirementsText,
		Mode:             evaluation.Mode,
	}

	for _, link := range evaluation.Documents {
		data, err := e.storage.ReadFile(link.Document.FilePath)
		if err != nil {
			return nil, newStageError(StageExtract, err)
		}
		file := UploadedFile{
			Name:     link.Document.OriginalFileName,
			MIMEType: link.Document.MIMEType,
			Data:     data,
		}

		switch link.Role {
		case models.DocumentRequirement:
			req.RequirementPDFs = append(req.RequirementPDFs, file)
		case models.DocumentEvidence:
			req.Evidence = append(req.Evidence, file)
		}
	}

	return req, nil
}

func (e *evaluatorService) fail(evalID uuid.UUID, cause error) error {
	if err := e.evalRepo.UpdateError(evalID, UserMessage(cause)); err != nil {
		log.WithError(err).WithField("evaluation_id", evalID).Error("Failed to record evaluation error")
	}
	log.WithError(cause).WithField("evaluation_id", evalID).Error("Evaluation failed")
	return cause
}
