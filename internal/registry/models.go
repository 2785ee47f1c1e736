package registry

import (
	"time"

	"taxid/pkg/afm"
)

// LookupRequest identifies who is being looked up and who is asking. GSIS logs
// CalledBy as a legal requirement.
type LookupRequest struct {
	CalledFor afm.AFM
	CalledBy  afm.AFM
}

// TaxOffice is the DOY (Δημόσια Οικονομική Υπηρεσία) the entity is registered with.
type TaxOffice struct {
	Code        string
	Description string
}

// Address is the registered postal address.
type Address struct {
	Street  string
	Number  string
	ZipCode string
	Area    string
}

// IsEmpty reports whether no address fields are set.
func (a Address) IsEmpty() bool {
	return a.Street == "" && a.Number == "" && a.ZipCode == "" && a.Area == ""
}

// ActivityKindPrimary marks the main business activity.
const ActivityKindPrimary = "1"

// Activity is a registered business activity (ΚΑΔ).
type Activity struct {
	Code            string
	Description     string
	Kind            string
	KindDescription string
}

// IsPrimary reports whether this is the main activity.
func (a Activity) IsPrimary() bool {
	return a.Kind == ActivityKindPrimary
}

// deactivationFlagActive is the registry value for an active number.
const deactivationFlagActive = "1"

// Registration is the basic registry record for one AFM.
type Registration struct {
	AFM             afm.AFM
	TaxOffice       TaxOffice
	Name            string // PII for sole proprietors
	CommercialTitle string
	LegalStatus     string
	FirmFlag        string // "ΕΠΙΤΗΔΕΥΜΑΤΙΑΣ", "ΜΗ ΕΠΙΤΗΔΕΥΜΑΤΙΑΣ", ...
	InitialFlag     string
	// DeactivationFlag is "1" for active numbers, "2" for deactivated ones.
	DeactivationFlag        string
	DeactivationDescription string
	Address                 Address // PII for sole proprietors
	RegisteredOn            *time.Time
	StoppedOn               *time.Time
	NormalVAT               bool
	Activities              []Activity

	// CallSeqID is the registry's audit reference for the call.
	CallSeqID string

	minimized bool
}

// IsActive reports whether the number is currently active.
func (r Registration) IsActive() bool {
	return r.DeactivationFlag == deactivationFlagActive
}

// PrimaryActivity returns the main activity, if any.
func (r Registration) PrimaryActivity() (Activity, bool) {
	for _, a := range r.Activities {
		if a.IsPrimary() {
			return a, true
		}
	}
	return Activity{}, false
}

// IsMinimized reports whether PII has been stripped.
func (r Registration) IsMinimized() bool {
	return r.minimized
}

// Minimized returns a copy with personal details stripped, for regulated
// deployments. Status, tax office and activities are retained.
func (r Registration) Minimized() Registration {
	out := r
	out.Name = ""
	out.CommercialTitle = ""
	out.Address = Address{}
	out.Activities = append([]Activity(nil), r.Activities...)
	out.minimized = true
	return out
}
