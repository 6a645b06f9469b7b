package runs

import "time"

// Risk levels assigned by report synthesis.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Initial values for a freshly submitted run.
const (
	InitialStatus   = StatusSearching
	InitialProgress = 5
)

// Run is one end-to-end processing instance for a single submission.
type Run struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	InventionDescription string     `json:"inventionDescription"`
	TechnicalKeywords    []string   `json:"technicalKeywords"`
	ClassificationCodes  []string   `json:"classificationCodes"`
	Status               Status     `json:"status"`
	ProgressPercentage   int        `json:"progressPercentage"`
	RiskScore            *int       `json:"riskScore,omitempty"`
	RiskLevel            string     `json:"riskLevel,omitempty"`
	ReportGeneratedAt    *time.Time `json:"reportGeneratedAt,omitempty"`
	Paid                 bool       `json:"paid"`
	NotificationSent     bool       `json:"notificationSent"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	ErrorMessage         *string    `json:"errorMessage,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Update describes one stage write against a run. Nil fields are left unchanged.
type Update struct {
	Status            Status
	Progress          *int
	RiskScore         *int
	RiskLevel         string
	ReportGeneratedAt *time.Time
	ErrorMessage      string
}

// Progress returns a pointer to p for use in Update.
func Progress(p int) *int {
	return &p
}
