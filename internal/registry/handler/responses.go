package handler

import (
	"time"

	"taxid/internal/registry"
)

// ValidateResponse is the HTTP response for AFM validation.
type ValidateResponse struct {
	Input   string `json:"input"`
	Compact string `json:"compact"`
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
	VAT     string `json:"vat,omitempty"`
}

// RegistrationResponse is the HTTP response for POST /afm/lookup.
type RegistrationResponse struct {
	AFM                 string             `json:"afm"`
	Name                string             `json:"name,omitempty"`
	CommercialTitle     string             `json:"commercial_title,omitempty"`
	LegalStatus         string             `json:"legal_status,omitempty"`
	FirmFlag            string             `json:"firm_flag,omitempty"`
	Active              bool               `json:"active"`
	StatusDescription   string             `json:"status_description,omitempty"`
	TaxOfficeCode       string             `json:"tax_office_code,omitempty"`
	TaxOfficeName       string             `json:"tax_office_name,omitempty"`
	Address             *AddressResponse   `json:"address,omitempty"`
	RegisteredOn        string             `json:"registered_on,omitempty"`
	StoppedOn           string             `json:"stopped_on,omitempty"`
	NormalVAT           bool               `json:"normal_vat"`
	Activities          []ActivityResponse `json:"activities"`
	RegistryReferenceID string             `json:"registry_reference_id,omitempty"`
	Minimized           bool               `json:"minimized,omitempty"`
}

type AddressResponse struct {
	Street  string `json:"street"`
	Number  string `json:"number"`
	ZipCode string `json:"zip_code"`
	Area    string `json:"area"`
}

type ActivityResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Primary     bool   `json:"primary"`
}

// ServiceErrorResponse carries an error reported by the registry itself.
type ServiceErrorResponse struct {
	Error              string `json:"error"`
	ServiceCode        string `json:"service_code"`
	ServiceDescription string `json:"service_description,omitempty"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

// FromRegistration converts a registry record to an HTTP response.
func FromRegistration(r *registry.Registration) *RegistrationResponse {
	resp := &RegistrationResponse{
		AFM:                 r.AFM.String(),
		Name:                r.Name,
		CommercialTitle:     r.CommercialTitle,
		LegalStatus:         r.LegalStatus,
		FirmFlag:            r.FirmFlag,
		Active:              r.IsActive(),
		StatusDescription:   r.DeactivationDescription,
		TaxOfficeCode:       r.TaxOffice.Code,
		TaxOfficeName:       r.TaxOffice.Description,
		RegisteredOn:        formatDate(r.RegisteredOn),
		StoppedOn:           formatDate(r.StoppedOn),
		NormalVAT:           r.NormalVAT,
		Activities:          make([]ActivityResponse, 0, len(r.Activities)),
		RegistryReferenceID: r.CallSeqID,
		Minimized:           r.IsMinimized(),
	}
	if !r.Address.IsEmpty() {
		resp.Address = &AddressResponse{
			Street:  r.Address.Street,
			Number:  r.Address.Number,
			ZipCode: r.Address.ZipCode,
			Area:    r.Address.Area,
		}
	}
	for _, a := range r.Activities {
		resp.Activities = append(resp.Activities, ActivityResponse{
			Code:        a.Code,
			Description: a.Description,
			Primary:     a.IsPrimary(),
		})
	}
	return resp
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
