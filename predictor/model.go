package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/Moustafa-Haydar/cargo-smart/models"
)

// Classifier is any trained model that can label a feature row.
type Classifier interface {
	Predict(row []float64) (float64, error)
}

// ProbaClassifier is a classifier that also exposes class probabilities.
// PredictProba returns P(delayed) for the row.
type ProbaClassifier interface {
	Classifier
	PredictProba(row []float64) (float64, error)
}

const (
	ModelLogisticRegression = "logistic_regression"
	ModelLinearLabel        = "linear_label"
)

// Artifact is the serialized form of a trained classifier.
type Artifact struct {
	ModelType    string    `json:"model_type"`
	Version      string    `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Classes      []int     `json:"classes"`
	Threshold    float64   `json:"threshold"`
}

// LoadModelFile reads and validates a model artifact.
func LoadModelFile(path string) (Classifier, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no model path configured", models.ErrModelUnavailable)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrModelUnavailable, path, err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", models.ErrModelUnavailable, path, err)
	}
	return a.Classifier()
}

// Classifier validates the artifact against the training schema and returns
// the model it describes.
func (a Artifact) Classifier() (Classifier, error) {
	if err := checkSchema(a.FeatureNames); err != nil {
		return nil, err
	}
	if len(a.Coefficients) != len(models.ModelColumns) {
		return nil, fmt.Errorf("%w: %d coefficients for %d columns",
			models.ErrModelUnavailable, len(a.Coefficients), len(models.ModelColumns))
	}

	lin := linear{coef: append([]float64(nil), a.Coefficients...), intercept: a.Intercept}
	switch a.ModelType {
	case ModelLogisticRegression:
		positive, err := positiveClassIndex(a.Classes)
		if err != nil {
			return nil, err
		}
		return &LogisticModel{linear: lin, positive: positive}, nil
	case ModelLinearLabel:
		return &LabelModel{linear: lin, threshold: a.Threshold}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported model_type %q", models.ErrModelUnavailable, a.ModelType)
	}
}

func checkSchema(names []string) error {
	if len(names) != len(models.ModelColumns) {
		return fmt.Errorf("%w: schema mismatch: %d feature names, want %d",
			models.ErrModelUnavailable, len(names), len(models.ModelColumns))
	}
	for i, name := range names {
		if name != models.ModelColumns[i] {
			return fmt.Errorf("%w: schema mismatch at column %d: %q, want %q",
				models.ErrModelUnavailable, i, name, models.ModelColumns[i])
		}
	}
	return nil
}

func positiveClassIndex(classes []int) (int, error) {
	if len(classes) == 0 {
		return 1, nil
	}
	if len(classes) != 2 {
		return 0, fmt.Errorf("%w: binary classifier expected, got %d classes", models.ErrModelUnavailable, len(classes))
	}
	for i, c := range classes {
		if c == 1 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: delayed class 1 not among classes %v", models.ErrModelUnavailable, classes)
}

type linear struct {
	coef      []float64
	intercept float64
}

func (l linear) decision(row []float64) (float64, error) {
	if len(row) != len(l.coef) {
		return 0, fmt.Errorf("row has %d columns, model expects %d", len(row), len(l.coef))
	}
	z := l.intercept + floats.Dot(l.coef, row)
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, fmt.Errorf("non-finite decision value")
	}
	return z, nil
}

// LogisticModel is a binary logistic regression.
type LogisticModel struct {
	linear
	positive int
}

func (m *LogisticModel) PredictProba(row []float64) (float64, error) {
	z, err := m.decision(row)
	if err != nil {
		return 0, err
	}
	p := 1 / (1 + math.Exp(-z))
	if m.positive == 0 {
		p = 1 - p
	}
	return p, nil
}

func (m *LogisticModel) Predict(row []float64) (float64, error) {
	p, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	if p >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

// LabelModel only emits hard 0/1 labels.
type LabelModel struct {
	linear
	threshold float64
}

func (m *LabelModel) Predict(row []float64) (float64, error) {
	z, err := m.decision(row)
	if err != nil {
		return 0, err
	}
	if z >= m.threshold {
		return 1, nil
	}
	return 0, nil
}
