package services

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrMissingRequirements = errors.New("Debes proporcionar los requisitos (Texto o PDF).")
	ErrMissingEvidence     = errors.New("Debes subir los archivos soporte (PDFs).")
	ErrUnsupportedFile     = errors.New("tipo de archivo no soportado")
	ErrEmptyResponse       = errors.New("el modelo no devolvió contenido")
	ErrUnparseableResponse = errors.New("no se pudo interpretar la respuesta del modelo")
	ErrTemplateNotFound    = errors.New("plantilla no encontrada")
	ErrInvalidTemplate     = errors.New("La plantilla no es un archivo Excel (.xlsx) válido.")
)

// Stage names the pipeline step an EvaluationError comes from.
type Stage string

const (
	StageCollect   Stage = "collect"
	StageExtract   Stage = "extract"
	StageModel     Stage = "model"
	StageNormalize Stage = "normalize"
)

type EvaluationError struct {
	Stage Stage
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

func (e *EvaluationError) Is(target error) bool {
	t, ok := target.(*EvaluationError)
	if !ok {
		return false
	}
	return t.Stage == e.Stage
}

func newStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &EvaluationError{Stage: stage, Err: err}
}

// IsValidationError reports whether err is caused by missing or invalid
// user input rather than a failure of the model or the environment.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingRequirements) ||
		errors.Is(err, ErrMissingEvidence) ||
		errors.Is(err, ErrUnsupportedFile) ||
		errors.Is(err, ErrInvalidTemplate)
}

// UserMessage returns the message shown to the user for err. Validation
// sentinels are shown verbatim.
func UserMessage(err error) string {
	for _, sentinel := range []error{ErrMissingEvidence, ErrMissingRequirements, ErrInvalidTemplate} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}

	if errors.Is(err, ErrTemplateNotFound) {
		return strings.TrimSuffix(err.Error(), ": "+ErrTemplateNotFound.Error())
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr.Err.Error()
	}
	return err.Error()
}
