package model

import "time"

// StoppedInstance is a compute instance sitting in the stopped state.
type StoppedInstance struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	InstanceType string     `json:"instanceType"`
	State        string     `json:"state"`
	LaunchTime   *time.Time `json:"launchTime,omitempty"`
	Region       string     `json:"region"`
}

// UnattachedVolume is a block volume not attached to any instance.
type UnattachedVolume struct {
	ID         string     `json:"id"`
	SizeGiB    int32      `json:"sizeGiB"`
	VolumeType string     `json:"volumeType"`
	State      string     `json:"state"`
	Region     string     `json:"region"`
	CreateTime *time.Time `json:"createTime,omitempty"`
}

// UnassociatedFloatingIP is an allocated public address with no association.
type UnassociatedFloatingIP struct {
	PublicIP     string `json:"publicIp"`
	AllocationID string `json:"allocationId"`
	Region       string `json:"region"`
}

// AuditCategory names one of the independent audit scans.
type AuditCategory string

const (
	AuditCategoryStoppedInstances  AuditCategory = "stoppedInstances"
	AuditCategoryUnattachedVolumes AuditCategory = "unattachedVolumes"
	AuditCategoryUnassociatedIPs   AuditCategory = "unassociatedIPs"
	AuditCategoryBudgets           AuditCategory = "budgets"
)

// AuditErrors holds one optional message per category.
type AuditErrors struct {
	StoppedInstances  string `json:"stoppedInstances,omitempty"`
	UnattachedVolumes string `json:"unattachedVolumes,omitempty"`
	UnassociatedIPs   string `json:"unassociatedIPs,omitempty"`
	Budgets           string `json:"budgets,omitempty"`
}

// Any reports whether at least one category failed.
func (e AuditErrors) Any() bool {
	return e.StoppedInstances != "" || e.UnattachedVolumes != "" || e.UnassociatedIPs != "" || e.Budgets != ""
}

// AuditSummary counts findings and flags partial results.
type AuditSummary struct {
	StoppedInstances  int  `json:"stoppedInstances"`
	UnattachedVolumes int  `json:"unattachedVolumes"`
	UnattachedGiB     int  `json:"unattachedGiB"`
	UnassociatedIPs   int  `json:"unassociatedIPs"`
	BudgetsWarning    int  `json:"budgetsWarning"`
	BudgetsExceeded   int  `json:"budgetsExceeded"`
	Partial           bool `json:"partial"`
}

// AuditReport aggregates the outcome of all audit scans for one account.
type AuditReport struct {
	ID                string                   `json:"id"`
	ProfileName       string                   `json:"profileName"`
	AccountID         string                   `json:"accountId"`
	Regions           []string                 `json:"regions"`
	GeneratedAt       time.Time                `json:"generatedAt"`
	StoppedInstances  []StoppedInstance        `json:"stoppedInstances"`
	UnattachedVolumes []UnattachedVolume       `json:"unattachedVolumes"`
	UnassociatedIPs   []UnassociatedFloatingIP `json:"unassociatedIPs"`
	Budgets           []BudgetStatus           `json:"budgets"`
	Errors            AuditErrors              `json:"errors"`
	Summary           AuditSummary             `json:"summary"`
}

// Summarize recomputes the summary from the report contents.
func (r *AuditReport) Summarize() {
	s := AuditSummary{
		StoppedInstances:  len(r.StoppedInstances),
		UnattachedVolumes: len(r.UnattachedVolumes),
		UnassociatedIPs:   len(r.UnassociatedIPs),
		Partial:           r.Errors.Any(),
	}
	for _, v := range r.UnattachedVolumes {
		s.UnattachedGiB += int(v.SizeGiB)
	}
	for _, b := range r.Budgets {
		switch b.Status {
		case BudgetStateWarning:
			s.BudgetsWarning++
		case BudgetStateExceeded:
			s.BudgetsExceeded++
		}
	}
	r.Summary = s
}
