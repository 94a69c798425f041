package models

// Model is a multiclass classifier over dense float rows. Probability columns
// follow the order of Classes.
type Model interface {
    Fit(X [][]float64, y []float64) error
    Predict(X [][]float64) []float64
    PredictProba(X [][]float64) [][]float64
    Classes() []float64
    FeatureImportances() []float64
    Name() string
}

var _ Model = (*RandomForest)(nil)
