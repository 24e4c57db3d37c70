package geoservices

import "encoding/json"

// Calculation types accepted by the remote service.
const (
	CalculationSolar   = "solar"
	CalculationWind    = "wind"
	CalculationBattery = "battery"
	CalculationAll     = "all"
)

// Calculation states reported by CalculationStatus.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CalculationRequest starts a site assessment. SiteGeometry is GeoJSON and
// is passed through unchanged.
type CalculationRequest struct {
	ProjectID       string          `json:"projectId"`
	SiteGeometry    json.RawMessage `json:"siteGeometry"`
	CalculationType string          `json:"calculationType"`
	Parameters      map[string]any  `json:"parameters,omitempty"`
}

// Constraint is a planning or physical constraint affecting a site.
type Constraint struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"` // low, medium, high
	Description string  `json:"description"`
	Impact      float64 `json:"impact"`
}

// SuitabilityAnalysis holds per-aspect suitability scores.
type SuitabilityAnalysis struct {
	SolarSuitability *float64 `json:"solarSuitability,omitempty"`
	WindSuitability  *float64 `json:"windSuitability,omitempty"`
	GridConnection   *float64 `json:"gridConnection,omitempty"`
	AccessRoads      *float64 `json:"accessRoads,omitempty"`
}

// CalculationData is the result payload of a finished calculation.
type CalculationData struct {
	DevelopabilityScore float64             `json:"developabilityScore"`
	Constraints         []Constraint        `json:"constraints"`
	SuitabilityAnalysis SuitabilityAnalysis `json:"suitabilityAnalysis"`
	Calculations        map[string]any      `json:"calculations"`
}

// CalculationResponse answers StartCalculation.
type CalculationResponse struct {
	Success     bool             `json:"success"`
	Data        *CalculationData `json:"data,omitempty"`
	Message     string           `json:"message,omitempty"`
	ExecutionID string           `json:"executionId,omitempty"`
}

// CalculationStatus reports progress of a long-running calculation.
type CalculationStatus struct {
	ExecutionID string           `json:"executionId"`
	Status      string           `json:"status"`
	Progress    *float64         `json:"progress,omitempty"`
	Message     string           `json:"message,omitempty"`
	Results     *CalculationData `json:"results,omitempty"`
}

// Done reports whether the calculation reached a final state.
func (s *CalculationStatus) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// CalculationParameter describes one input of a calculation type.
type CalculationParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// CalculationType describes a calculation offered by the service.
type CalculationType struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  []CalculationParameter `json:"parameters"`
}

// GeometryValidation answers ValidateGeometry.
type GeometryValidation struct {
	Valid       bool     `json:"valid"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// AreaConstraint is a constraint layer intersecting a queried area.
type AreaConstraint struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Severity    string          `json:"severity"`
	Geometry    json.RawMessage `json:"geometry"`
}

// ConstraintsResponse answers Constraints.
type ConstraintsResponse struct {
	Constraints []AreaConstraint `json:"constraints"`
}

// HealthResponse answers Health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type geometryRequest struct {
	Geometry json.RawMessage `json:"geometry"`
}
