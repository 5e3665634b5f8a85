// Package models defines the records the offline-sync core reads from the
// remote store and persists in the local cache.
package models

import "github.com/dmitrijs2005/vaxtrack/internal/datex"

// BroadcastReceiver is the receiverId of notifications addressed to everyone.
const BroadcastReceiver = "all"

// User is the identity-scoped profile. IsActive stands in for "logged in"
// when the device starts without network.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsActive  bool   `json:"isActive"`
}

// CardEntry records the actual administration history of one vaccine.
type CardEntry struct {
	ID          string          `json:"id"`
	VaccineName string          `json:"vaccineName"`
	Doses       int             `json:"doses"`
	Date        []datex.Instant `json:"date"`
	Remarks     []string        `json:"remarks"`

	// AppointmentIDs lists the completed appointments recorded here.
	AppointmentIDs []string `json:"appointmentIds,omitempty"`
}

// Baby is a child registered by a parent.
type Baby struct {
	ID          string        `json:"id"`
	ParentID    string        `json:"parentId"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	Birthday    datex.Instant `json:"birthday"`
	BirthPlace  string        `json:"birthPlace"`
	Address     string        `json:"address"`
	AddressInfo string        `json:"addressInfo"`
	MotherName  string        `json:"motherName"`
	FatherName  string        `json:"fatherName"`
	Height      string        `json:"height"`
	Weight      string        `json:"weight"`
	Gender      string        `json:"gender"`
	Contact     string        `json:"contact"`
	CreatedAt   datex.Instant `json:"createdAt"`
	Card        []CardEntry   `json:"card"`
}

// Matches reports whether the baby carries the given names.
func (b Baby) Matches(firstName, lastName string) bool {
	return b.FirstName == firstName && b.LastName == lastName
}

// MilestoneData is one planned vaccine for a baby.
type MilestoneData struct {
	AgeInMonths  float64       `json:"ageInMonths"`
	Vaccine      string        `json:"vaccine"`
	ExpectedDate datex.Instant `json:"expectedDate"`
	Received     bool          `json:"received"`
	Description  string        `json:"description"`
	UpdatedAt    datex.Instant `json:"updatedAt"`
}

// MilestoneSet is the schedule of one baby.
type MilestoneSet struct {
	ID            string          `json:"id"`
	BabyID        string          `json:"babyId"`
	ParentID      string          `json:"parentId"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	CreatedAt     datex.Instant   `json:"createdAt"`
	MilestoneData []MilestoneData `json:"milestoneData"`
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending  AppointmentStatus = "pending"
	StatusUpcoming AppointmentStatus = "upcoming"
	StatusHistory  AppointmentStatus = "history"
)

// Appointment is a vaccination appointment request.
type Appointment struct {
	ID            string            `json:"id"`
	ParentID      string            `json:"parentId"`
	ParentName    string            `json:"parentName"`
	BabyFirstName string            `json:"babyFirstName"`
	BabyLastName  string            `json:"babyLastName"`
	Vaccine       string            `json:"vaccine"`
	ScheduleDate  datex.Instant     `json:"scheduleDate"`
	Status        AppointmentStatus `json:"status"`
	CreatedAt     datex.Instant     `json:"createdAt"`
	UpdatedAt     datex.Instant     `json:"updatedAt"`
}

// Notification is a facility announcement or a personal message.
type Notification struct {
	ID         string        `json:"id"`
	ReceiverID string        `json:"receiverId"`
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName"`
	Subject    string        `json:"subject"`
	Message    string        `json:"message"`
	IsRead     bool          `json:"isRead"`
	CreatedAt  datex.Instant `json:"createdAt"`
}

// IsBroadcast reports whether the notification is addressed to all users.
func (n Notification) IsBroadcast() bool {
	return n.ReceiverID == BroadcastReceiver
}
