package models

import (
	"encoding/json"
	"time"
)

// LeadStatus tracks ownership and workflow gating: who may edit the
// lead and whether it is claimable. Independent of LeadStage.
type LeadStatus string

const (
	StatusPending   LeadStatus = "PENDING"
	StatusLocked    LeadStatus = "LOCKED"
	StatusPool      LeadStatus = "POOL"
	StatusConverted LeadStatus = "CONVERTED"
	StatusCancelled LeadStatus = "CANCELLED"
	StatusInactive  LeadStatus = "INACTIVE"
)

// LeadStage tracks sales-funnel position.
type LeadStage string

const (
	StageNew           LeadStage = "NEW"
	StageContacted     LeadStage = "CONTACTED"
	StageDemoScheduled LeadStage = "DEMO_SCHEDULED"
	StageDemoShowed    LeadStage = "DEMO_SHOWED"
	StageQuotationSent LeadStage = "QUOTATION_SENT"
	StageNegotiation   LeadStage = "NEGOTIATION"
	StageConverted     LeadStage = "CONVERTED"
	StageCancelled     LeadStage = "CANCELLED"
	StageExpired       LeadStage = "EXPIRED"
)

// ValidStatus reports whether s is a member of the status enum.
func ValidStatus(s LeadStatus) bool {
	switch s {
	case StatusPending, StatusLocked, StatusPool, StatusConverted, StatusCancelled, StatusInactive:
		return true
	}
	return false
}

// ValidStage reports whether s is a member of the stage enum.
func ValidStage(s LeadStage) bool {
	switch s {
	case StageNew, StageContacted, StageDemoScheduled, StageDemoShowed,
		StageQuotationSent, StageNegotiation, StageConverted, StageCancelled, StageExpired:
		return true
	}
	return false
}

// Lead is the aggregate root: a prospective customer (school) tracked
// through the sales funnel.
type Lead struct {
	ID string `db:"id" json:"id"`

	SchoolName    string `db:"school_name" json:"school_name"`
	RegionID      string `db:"region_id" json:"region_id"`
	RegionName    string `db:"region_name" json:"region_name"`
	Address       string `db:"address" json:"address"`
	ZipCode       string `db:"zip_code" json:"zip_code"`
	Landmark      string `db:"landmark" json:"landmark,omitempty"`
	ContactPerson string `db:"contact_person" json:"contact_person"`
	Designation   string `db:"designation" json:"designation,omitempty"`
	ContactEmail  string `db:"contact_email" json:"contact_email"`
	ContactPhone  string `db:"contact_phone" json:"contact_phone"`
	IsChain       bool   `db:"is_chain" json:"is_chain"`
	ChainName     string `db:"chain_name" json:"chain_name,omitempty"`
	Remarks       string `db:"remarks" json:"remarks"`
	PlaceID       string `db:"place_id" json:"place_id,omitempty"`

	Status           LeadStatus `db:"status" json:"status"`
	Stage            LeadStage  `db:"stage" json:"stage"`
	Probability      *int       `db:"probability" json:"probability,omitempty"`
	AssignedToUserID *string    `db:"assigned_to_user_id" json:"assigned_to_user_id,omitempty"`
	AssignedToName   *string    `db:"assigned_to_name" json:"assigned_to_name,omitempty"`
	LockedUntil      *time.Time `db:"locked_until" json:"locked_until,omitempty"`
	ContactedDate    *time.Time `db:"contacted_date" json:"contacted_date,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`

	// Updates is the append-only history, most recent first. Populated
	// on detail reads only.
	Updates []LeadUpdate `db:"-" json:"updates,omitempty"`
}

// DaysRemaining computes whole days left on the lock deadline as of
// now. Expiry is computed on read; nothing flips the status.
func (l *Lead) DaysRemaining(now time.Time) int {
	if l.LockedUntil == nil {
		return 0
	}
	remaining := l.LockedUntil.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}

// LockExpired reports whether the lock deadline has passed.
func (l *Lead) LockExpired(now time.Time) bool {
	return l.LockedUntil != nil && now.After(*l.LockedUntil)
}

// LeadUpdate is one history event on a lead. Stage records the funnel
// snapshot at the time of the update; Note is free text. A stage
// transition and its note travel together but the note alone never
// changes lead state.
type LeadUpdate struct {
	ID          string          `db:"id" json:"id"`
	LeadID      string          `db:"lead_id" json:"lead_id"`
	Stage       LeadStage       `db:"stage" json:"stage"`
	Note        string          `db:"note" json:"note"`
	Probability *int            `db:"probability" json:"probability,omitempty"`
	Attachments json.RawMessage `db:"attachments" json:"attachments,omitempty"`
	UpdatedBy   string          `db:"updated_by" json:"updated_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Attachment describes one file reference carried by a LeadUpdate.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// LeadFilter captures list filtering for leads.
type LeadFilter struct {
	Status           *LeadStatus
	Stage            *LeadStage
	RegionID         string
	AssignedToUserID string
	CreatedBy        string
	Search           string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
