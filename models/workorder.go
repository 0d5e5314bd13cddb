package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkOrderPriority defines how urgent a maintenance request is.
type WorkOrderPriority string

const (
	PriorityEmergency   WorkOrderPriority = "emergency"
	PriorityUrgent      WorkOrderPriority = "urgent"
	PriorityNonCritical WorkOrderPriority = "non_critical"
	PriorityRoutine     WorkOrderPriority = "routine"
	PriorityPreventive  WorkOrderPriority = "preventive"
)

// WorkOrderStatus tracks the request lifecycle. Completed is terminal.
type WorkOrderStatus string

const (
	StatusNew        WorkOrderStatus = "new"
	StatusInProgress WorkOrderStatus = "in_progress"
	StatusOnHold     WorkOrderStatus = "on_hold"
	StatusCompleted  WorkOrderStatus = "completed"
)

// WorkOrderExecution says who performs the work.
type WorkOrderExecution string

const (
	ExecutionInHouse    WorkOrderExecution = "in_house"
	ExecutionContractor WorkOrderExecution = "contractor"
)

type WorkOrder struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID       uuid.UUID          `gorm:"type:uuid;not null;index" json:"company_id"`
	Company         *Company           `gorm:"foreignKey:CompanyID" json:"-"`
	Title           string             `gorm:"size:200;not null" json:"title"`
	Details         string             `gorm:"type:text" json:"details"`
	Location        string             `gorm:"size:200;not null" json:"location"`
	Priority        WorkOrderPriority  `gorm:"size:20;not null;default:routine" json:"priority"`
	Status          WorkOrderStatus    `gorm:"size:20;not null;default:new;index" json:"status"`
	Execution       WorkOrderExecution `gorm:"size:20;not null;default:in_house" json:"execution"`
	PONumber        *string            `gorm:"size:50" json:"po_number"`
	PONotApplicable bool               `gorm:"default:false" json:"po_na"`
	RequesterID     uuid.UUID          `gorm:"type:uuid;not null" json:"requester_id"`
	RequestedByName string             `gorm:"size:100" json:"requested_by_name"`
	CompletedAt     *time.Time         `json:"completed_at"`
	CompletedNote   string             `gorm:"type:text" json:"completed_note"`
	CreatedAt       time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	Notes  []WorkOrderNote  `gorm:"foreignKey:WorkOrderID" json:"notes,omitempty"`
	Photos []WorkOrderPhoto `gorm:"foreignKey:WorkOrderID" json:"photos,omitempty"`
}

func (wo *WorkOrder) BeforeCreate(tx *gorm.DB) (err error) {
	if wo.ID == uuid.Nil {
		wo.ID = uuid.New()
	}
	return
}

var validPriorities = map[WorkOrderPriority]bool{
	PriorityEmergency:   true,
	PriorityUrgent:      true,
	PriorityNonCritical: true,
	PriorityRoutine:     true,
	PriorityPreventive:  true,
}

var validStatuses = map[WorkOrderStatus]bool{
	StatusNew:        true,
	StatusInProgress: true,
	StatusOnHold:     true,
	StatusCompleted:  true,
}

var validExecutions = map[WorkOrderExecution]bool{
	ExecutionInHouse:    true,
	ExecutionContractor: true,
}

// Validate enforces the row invariants before any write reaches the
// store: known enum values, po_na forcing a null PO number, and a
// completion note whenever the status is completed.
func (wo *WorkOrder) Validate() error {
	if strings.TrimSpace(wo.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(wo.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if !validPriorities[wo.Priority] {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, wo.Priority)
	}
	if !validStatuses[wo.Status] {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, wo.Status)
	}
	if !validExecutions[wo.Execution] {
		return fmt.Errorf("%w: unknown execution %q", ErrValidation, wo.Execution)
	}
	if wo.PONotApplicable && wo.PONumber != nil {
		return fmt.Errorf("%w: po_number must be empty when po_na is set", ErrValidation)
	}
	if wo.Status == StatusCompleted && strings.TrimSpace(wo.CompletedNote) == "" {
		return fmt.Errorf("%w: a completion note is required to complete a work order", ErrValidation)
	}
	return nil
}

// CanTransition reports whether moving from the current status to next
// is allowed: new -> in_progress/on_hold, either of those -> the other
// or completed. Completed is one-way.
func (wo *WorkOrder) CanTransition(next WorkOrderStatus) bool {
	if !validStatuses[next] {
		return false
	}
	if wo.Status == next {
		return true
	}
	switch wo.Status {
	case StatusNew:
		return next == StatusInProgress || next == StatusOnHold
	case StatusInProgress:
		return next == StatusOnHold || next == StatusCompleted
	case StatusOnHold:
		return next == StatusInProgress || next == StatusCompleted
	case StatusCompleted:
		return false
	}
	return false
}

// WorkOrderNote is an append-only comment on a work order.
type WorkOrderNote struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WorkOrderID uuid.UUID  `gorm:"type:uuid;not null;index" json:"work_order_id"`
	WorkOrder   *WorkOrder `gorm:"foreignKey:WorkOrderID" json:"-"`
	AuthorID    uuid.UUID  `gorm:"type:uuid;not null" json:"author_id"`
	AuthorName  string     `gorm:"size:100" json:"author_name"`
	Note        string     `gorm:"type:text;not null" json:"note"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

func (n *WorkOrderNote) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}

// WorkOrderPhoto records an uploaded file; the binary itself lives in
// the object store under StoragePath.
type WorkOrderPhoto struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WorkOrderID uuid.UUID  `gorm:"type:uuid;not null;index" json:"work_order_id"`
	WorkOrder   *WorkOrder `gorm:"foreignKey:WorkOrderID" json:"-"`
	StoragePath string     `gorm:"size:512;not null" json:"storage_path"`
	MimeType    string     `gorm:"size:100" json:"mime_type"`
	UploadedBy  uuid.UUID  `gorm:"type:uuid" json:"uploaded_by"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

func (p *WorkOrderPhoto) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
