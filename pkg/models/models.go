// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// TicketStatus is the lifecycle state of a helpdesk ticket, collapsed to the
// values the pipeline cares about.
type TicketStatus string

const (
	// TicketNew is a ticket nobody has touched yet.
	TicketNew TicketStatus = "new"
	// TicketOpen is a ticket an agent has picked up but not resolved.
	TicketOpen TicketStatus = "open"
	// TicketOther covers pending, on-hold, solved and closed tickets.
	TicketOther TicketStatus = "other"
)

// Ticket represents a helpdesk ticket with its essential fields. It is read-only
// input to the pipeline and is never mutated after it has been fetched.
type Ticket struct {
	// ID is the helpdesk's numeric ticket identifier
	ID int64

	// Status is the ticket's lifecycle state
	Status TicketStatus

	// CreatedAt is the timestamp when the ticket was created
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the ticket was last updated
	UpdatedAt time.Time

	// Subject is the ticket's title
	Subject string

	// FormName is the intake form the ticket was submitted through, or ""
	// when the backend could not discover it
	FormName string

	// CustomFields holds raw custom-field values keyed by field ID
	CustomFields map[int64]any
}

// CommentCount splits a ticket's comments by visibility.
type CommentCount struct {
	Public  int
	Private int
}

// Total returns the number of comments regardless of visibility.
func (c CommentCount) Total() int {
	return c.Public + c.Private
}

// FieldMap tells the extractor which custom field holds each profile attribute.
// A zero ID means the attribute is not mapped and always takes its default.
type FieldMap struct {
	FirstName     int64 `mapstructure:"first_name" yaml:"first_name"`
	LastName      int64 `mapstructure:"last_name" yaml:"last_name"`
	PersonalEmail int64 `mapstructure:"personal_email" yaml:"personal_email"`
	Department    int64 `mapstructure:"department" yaml:"department"`
	JobTitle      int64 `mapstructure:"job_title" yaml:"job_title"`
	Manager       int64 `mapstructure:"manager" yaml:"manager"`
	EmployeeType  int64 `mapstructure:"employee_type" yaml:"employee_type"`
}

// EmployeeType classifies the hire's employment arrangement.
type EmployeeType string

const (
	// FullTime is a full-time employee.
	FullTime EmployeeType = "FT"
	// PartTime is a part-time employee.
	PartTime EmployeeType = "PT"
	// Contractor is the fallback for anything not positively identified.
	Contractor EmployeeType = "CT"
)

// GroupFlags selects the optional groups an account joins. They are only ever
// set by an operator editing the CSV handoff between phases.
type GroupFlags struct {
	ITEquipment  bool
	RemoteAccess bool
	OfficeUsers  bool
}

// EmployeeProfile is the pipeline's canonical unit of work: one hire derived
// from one ticket.
type EmployeeProfile struct {
	// FirstName is the hire's given name, "Unknown" when absent
	FirstName string

	// LastName is the hire's surname, "Unknown" when absent
	LastName string

	// Username is firstname.lastname, restricted to [a-z0-9.]
	Username string

	// PersonalEmail is where the credential is delivered; never empty
	PersonalEmail string

	// Department is at most 10 characters unless it is "Unknown"
	Department string

	// JobTitle is the hire's title, "Unknown" when absent
	JobTitle string

	// EmployeeType is the classified employment arrangement
	EmployeeType EmployeeType

	// Manager is the manager's firstname.lastname handle, "Unknown" when absent
	Manager string

	// Groups holds the optional group memberships
	Groups GroupFlags
}

// ProvisionStatus is the outcome of one provisioning attempt.
type ProvisionStatus string

const (
	// ProvisionCreated means a new account was created.
	ProvisionCreated ProvisionStatus = "Created"
	// ProvisionAlreadyExists means the account was already present and left alone.
	ProvisionAlreadyExists ProvisionStatus = "AlreadyExists"
	// ProvisionFailed means the directory rejected the account.
	ProvisionFailed ProvisionStatus = "Failed"
)

// ProvisioningResult reports what happened to one profile in the directory.
type ProvisioningResult struct {
	// Username is the account the result refers to
	Username string

	// Status is the outcome of the attempt
	Status ProvisionStatus

	// Credential is the generated one-time password; only set when Status
	// is ProvisionCreated and never written anywhere but memory
	Credential string

	// Err holds the directory error when Status is ProvisionFailed
	Err error
}

// VerificationResult records whether an account reached the secondary directory.
type VerificationResult struct {
	Username string
	Verified bool
}
