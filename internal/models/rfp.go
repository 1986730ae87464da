package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RFPStatus is the lifecycle state of an RFP.
type RFPStatus string

const (
	RFPStatusDraft       RFPStatus = "Draft"
	RFPStatusPublished   RFPStatus = "Published"
	RFPStatusUnderReview RFPStatus = "Under Review"
	RFPStatusCompleted   RFPStatus = "Completed"
	RFPStatusCancelled   RFPStatus = "Cancelled"
)

// rfpTransitions lists the accepted forward moves out of each state.
var rfpTransitions = map[RFPStatus][]RFPStatus{
	RFPStatusDraft:       {RFPStatusPublished, RFPStatusCancelled},
	RFPStatusPublished:   {RFPStatusUnderReview, RFPStatusCancelled},
	RFPStatusUnderReview: {RFPStatusCompleted, RFPStatusCancelled},
}

func (s RFPStatus) Valid() bool {
	switch s {
	case RFPStatusDraft, RFPStatusPublished, RFPStatusUnderReview, RFPStatusCompleted, RFPStatusCancelled:
		return true
	}
	return false
}

func (s RFPStatus) Terminal() bool {
	return s == RFPStatusCompleted || s == RFPStatusCancelled
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s RFPStatus) CanTransitionTo(next RFPStatus) bool {
	for _, allowed := range rfpTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResponseStatus is the review state of a supplier response.
type ResponseStatus string

const (
	ResponseStatusSubmitted   ResponseStatus = "Submitted"
	ResponseStatusUnderReview ResponseStatus = "Under Review"
	ResponseStatusApproved    ResponseStatus = "Approved"
	ResponseStatusRejected    ResponseStatus = "Rejected"
)

func (s ResponseStatus) rank() int {
	switch s {
	case ResponseStatusSubmitted:
		return 0
	case ResponseStatusUnderReview:
		return 1
	case ResponseStatusApproved, ResponseStatusRejected:
		return 2
	}
	return -1
}

func (s ResponseStatus) Valid() bool { return s.rank() >= 0 }

// ReviewTarget reports whether a buyer may set a response to s.
func (s ResponseStatus) ReviewTarget() bool {
	return s == ResponseStatusUnderReview || s == ResponseStatusApproved || s == ResponseStatusRejected
}

func (s ResponseStatus) Terminal() bool { return s.rank() == 2 }

// CanTransitionTo allows strictly forward moves; Approved and Rejected are final.
func (s ResponseStatus) CanTransitionTo(next ResponseStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	return next.rank() > s.rank()
}

// Response is a supplier submission embedded in its RFP.
type Response struct {
	ID          string         `json:"id"`
	RFPID       uuid.UUID      `json:"rfp_id"`
	SupplierID  uuid.UUID      `json:"supplier_id"`
	Content     map[string]any `json:"content"`
	Attachments []uuid.UUID    `json:"attachments"`
	Status      ResponseStatus `json:"status"`
	Feedback    *string        `json:"feedback,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ResponseID is the stable identifier of the response a supplier filed on an RFP.
func ResponseID(rfpID, supplierID uuid.UUID) string {
	return rfpID.String() + "-" + supplierID.String()
}

// RFP is a buyer's request for proposal together with its responses.
type RFP struct {
	ID           uuid.UUID                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BuyerID      uuid.UUID                      `gorm:"type:uuid;index;not null" json:"buyer_id"`
	Title        string                         `gorm:"not null" json:"title"`
	Description  string                         `gorm:"type:text" json:"description"`
	Requirements datatypes.JSONMap              `gorm:"type:jsonb" json:"requirements"`
	Deadline     *time.Time                     `json:"deadline,omitempty"`
	Category     *string                        `gorm:"type:varchar(128);index" json:"category,omitempty"`
	Tags         datatypes.JSONSlice[string]    `gorm:"type:jsonb" json:"tags"`
	Status       RFPStatus                      `gorm:"type:varchar(32);not null;index" json:"status"`
	Attachments  datatypes.JSONSlice[uuid.UUID] `gorm:"type:jsonb" json:"attachments"`
	Responses    datatypes.JSONSlice[Response]  `gorm:"type:jsonb" json:"responses"`
	PublishedAt  *time.Time                     `json:"published_at,omitempty"`
	CreatedAt    time.Time                      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time                      `json:"updated_at"`
}

// FindResponse returns the index and response filed by supplierID, or -1 and nil.
func (r *RFP) FindResponse(supplierID uuid.UUID) (int, *Response) {
	for i := range r.Responses {
		if r.Responses[i].SupplierID == supplierID {
			return i, &r.Responses[i]
		}
	}
	return -1, nil
}

// HasResponseFrom reports whether supplierID has already responded.
func (r *RFP) HasResponseFrom(supplierID uuid.UUID) bool {
	i, _ := r.FindResponse(supplierID)
	return i >= 0
}
