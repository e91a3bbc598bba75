package domain

import (
	"time"
)

// IntakeKind names one of the request workflows customers can open.
type IntakeKind string

const (
	IntakeSurvey       IntakeKind = "survey"
	IntakeConsultation IntakeKind = "consultation"
	IntakeCofO         IntakeKind = "cofo"
	IntakeInvestment   IntakeKind = "investment"
)

var IntakeKinds = []IntakeKind{IntakeSurvey, IntakeConsultation, IntakeCofO, IntakeInvestment}

func (k IntakeKind) Valid() bool {
	for _, v := range IntakeKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Label is the human readable name used in notifications.
func (k IntakeKind) Label() string {
	switch k {
	case IntakeSurvey:
		return "Survey request"
	case IntakeConsultation:
		return "Engineering consultation"
	case IntakeCofO:
		return "Certificate of occupancy application"
	case IntakeInvestment:
		return "Investment inquiry"
	default:
		return string(k)
	}
}

// IntakeStatus is the workflow state of an intake request.
type IntakeStatus string

const (
	StatusPending    IntakeStatus = "pending"
	StatusProcessing IntakeStatus = "processing"
	StatusVerified   IntakeStatus = "verified"
	StatusApproved   IntakeStatus = "approved"
	StatusRejected   IntakeStatus = "rejected"
	StatusCancelled  IntakeStatus = "cancelled"
)

// intakeTransitions maps each status to the statuses it may move to.
// Statuses without an entry are terminal.
var intakeTransitions = map[IntakeStatus][]IntakeStatus{
	StatusPending:    {StatusProcessing, StatusRejected, StatusCancelled},
	StatusProcessing: {StatusVerified, StatusRejected},
	StatusVerified:   {StatusApproved, StatusRejected},
}

func (s IntakeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusVerified, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s IntakeStatus) Terminal() bool {
	return len(intakeTransitions[s]) == 0
}

// CanTransition checks the transition table.
func (s IntakeStatus) CanTransition(to IntakeStatus) bool {
	for _, next := range intakeTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns a copy of the allowed targets.
func (s IntakeStatus) NextStatuses() []IntakeStatus {
	return append([]IntakeStatus(nil), intakeTransitions[s]...)
}

// IntakeRequest holds survey, consultation, CofO and investment requests.
// Details carries the kind-specific fields; Attachments are stored references only.
type IntakeRequest struct {
	ID           int64                  `gorm:"primaryKey;autoIncrement:false" json:"id,string" csv:"id"`
	Reference    string                 `gorm:"size:36;uniqueIndex" json:"reference" csv:"reference"`
	Kind         IntakeKind             `gorm:"size:32;index" json:"kind" csv:"kind"`
	UserID       int64                  `gorm:"index" json:"user_id,string" csv:"user_id"`
	ContactName  string                 `gorm:"size:200" json:"contact_name" csv:"contact_name"`
	ContactEmail string                 `gorm:"size:200" json:"contact_email" csv:"contact_email"`
	ContactPhone string                 `gorm:"size:64" json:"contact_phone" csv:"contact_phone"`
	Details      map[string]interface{} `gorm:"type:text;serializer:json" json:"details" csv:"-"`
	Attachments  []string               `gorm:"type:text;serializer:json" json:"attachments" csv:"-"`
	Status       IntakeStatus           `gorm:"size:20;index" json:"status" csv:"status"`
	StatusNote   string                 `gorm:"size:1000" json:"status_note" csv:"status_note"`
	Version      int64                  `json:"version" csv:"-"`
	CreatedAt    time.Time              `json:"created_at" csv:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at" csv:"updated_at"`
}

// TableName Specify table name
func (IntakeRequest) TableName() string {
	return "intake_request"
}
