package cache

import "fmt"

// Namespace names one partition of the local cache. The set is closed: the
// constants below are the only valid values and their spelling is the
// persisted key, stable across app versions.
type Namespace string

const (
	Users                  Namespace = "users"
	Babies                 Namespace = "babies"
	Milestones             Namespace = "milestones"
	Appointments           Namespace = "appointments"
	Notifications          Namespace = "notifications"
	SelectedBabyID         Namespace = "selectedBabyId"
	ProcessedNotifications Namespace = "processedNotifications"
	LastNotificationTapped Namespace = "lastNotificationTapped"
)

// Namespaces lists every namespace in a fixed order.
var Namespaces = []Namespace{
	Users,
	Babies,
	Milestones,
	Appointments,
	Notifications,
	SelectedBabyID,
	ProcessedNotifications,
	LastNotificationTapped,
}

// Valid reports whether n is one of the known namespaces.
func (n Namespace) Valid() bool {
	for _, known := range Namespaces {
		if n == known {
			return true
		}
	}
	return false
}

func (n Namespace) String() string { return string(n) }

func (n Namespace) mustBeKnown() {
	if !n.Valid() {
		panic(fmt.Sprintf("cache: unknown namespace %q", string(n)))
	}
}
