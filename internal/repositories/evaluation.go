package repositories

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

type EvaluationRepository interface {
	Create(eval *models.Evaluation) error
	FindByID(id uuid.UUID) (*models.Evaluation, error)
	UpdateStatus(id uuid.UUID, status models.EvaluationStatus) error
	UpdateResult(id uuid.UUID, result *EvaluationUpdateData) error
	UpdateError(id uuid.UUID, errorMsg string) error
	FindPendingJobs(limit int) ([]models.Evaluation, error)
}

type EvaluationUpdateData struct {
	Analysis        *string
	ResultJSON      *string
	Verdict         *string
	VerdictPositive *bool
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Create stores the evaluation and its document links in one transaction.
func (r *evaluationRepository) Create(eval *models.Evaluation) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(eval).Error; err != nil {
			return err
		}

		for i := range eval.Documents {
			link := &eval.Documents[i]
			link.EvaluationID = eval.ID
			if err := tx.Omit(clause.Associations).Create(link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to create evaluation")
	}
	return nil
}

// FindByID loads the evaluation with its documents in submission order.
func (r *evaluationRepository) FindByID(id uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	err := r.db.
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Documents.Document").
		Where("id = ?", id).
		First(&eval).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(ErrNotFound, "evaluation not found")
		}
		return nil, errors.Wrap(err, "failed to find evaluation")
	}
	return &eval, nil
}

func (r *evaluationRepository) UpdateStatus(id uuid.UUID, status models.EvaluationStatus) error {
	return r.update(id, map[string]interface{}{
		"status": status,
	}, "failed to update status")
}

func (r *evaluationRepository) UpdateResult(id uuid.UUID, data *EvaluationUpdateData) error {
	updates := map[string]interface{}{
		"status":        models.StatusCompleted,
		"error_message": nil,
	}

	if data.Analysis != nil {
		updates["analysis"] = *data.Analysis
	}
	if data.ResultJSON != nil {
		updates["result_json"] = *data.ResultJSON
	}
	if data.Verdict != nil {
		updates["verdict"] = *data.Verdict
	}
	if data.VerdictPositive != nil {
		updates["verdict_positive"] = *data.VerdictPositive
	}

	return r.update(id, updates, "failed to update result")
}

func (r *evaluationRepository) UpdateError(id uuid.UUID, errorMsg string) error {
	return r.update(id, map[string]interface{}{
		"status":        models.StatusFailed,
		"error_message": errorMsg,
	}, "failed to update error")
}

func (r *evaluationRepository) update(id uuid.UUID, updates map[string]interface{}, msg string) error {
	updates["updated_at"] = time.Now()

	result := r.db.Model(&models.Evaluation{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return errors.Wrap(result.Error, msg)
	}

	if result.RowsAffected == 0 {
		return errors.Wrap(ErrNotFound, "evaluation not found")
	}

	return nil
}

func (r *evaluationRepository) FindPendingJobs(limit int) ([]models.Evaluation, error) {
	var evals []models.Evaluation
	err := r.db.
		Where("status = ?", models.StatusQueued).
		Order("created_at ASC").
		Limit(limit).
		Find(&evals).Error

	if err != nil {
		return nil, errors.Wrap(err, "failed to find pending jobs")
	}

	return evals, nil
}
