package gsis

import (
	"encoding/xml"
	"strings"
	"time"

	"taxid/internal/registry"
	"taxid/pkg/afm"
)

const (
	nsEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	nsService  = "http://gr/gsis/rgwspublic/RgWsPublic.wsdl"
	nsTypes    = "http://gr/gsis/rgwspublic/RgWsPublic.wsdl/types/"
	nsXSI      = "http://www.w3.org/2001/XMLSchema-instance"
	nsWSSE     = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
)

// Outgoing messages. encoding/xml has no prefix support, so prefixes are
// spelled out in the element names and declared on the envelope.

type envelope struct {
	XMLName xml.Name `xml:"env:Envelope"`
	Env     string   `xml:"xmlns:env,attr"`
	NS      string   `xml:"xmlns:ns,attr"`
	Types   string   `xml:"xmlns:ns1,attr"`
	XSI     string   `xml:"xmlns:xsi,attr"`
	Header  *header  `xml:"env:Header,omitempty"`
	Body    body     `xml:"env:Body"`
}

type header struct {
	Security security `xml:"wsse:Security"`
}

type security struct {
	WSSE          string        `xml:"xmlns:wsse,attr"`
	UsernameToken usernameToken `xml:"wsse:UsernameToken"`
}

type usernameToken struct {
	Username string `xml:"wsse:Username"`
	Password string `xml:"wsse:Password"`
}

type body struct {
	Content any
}

type afmMethod struct {
	XMLName    xml.Name  `xml:"ns:rgWsPublicAfmMethod"`
	Input      afmInput  `xml:"RgWsPublicInputRt_in"`
	Basic      nilRecord `xml:"RgWsPublicBasicRt_out"`
	Activities nilRecord `xml:"arrayOfRgWsPublicFirmActRt_out"`
	CallSeqID  int       `xml:"pCallSeqId_out"`
	Error      nilRecord `xml:"pErrorRec_out"`
}

type afmInput struct {
	Type      string `xml:"xsi:type,attr"`
	CalledBy  string `xml:"ns1:afmCalledBy"`
	CalledFor string `xml:"ns1:afmCalledFor"`
}

// nilRecord is an output holder whose fields are all sent as explicit nils;
// the service rejects holders with missing fields.
type nilRecord struct {
	Type   string `xml:"xsi:type,attr"`
	Fields []nilField
}

type nilField struct {
	XMLName xml.Name
	Nil     string `xml:"xsi:nil,attr"`
}

type versionMethod struct {
	XMLName xml.Name `xml:"ns:rgWsPublicVersionInfo"`
}

var basicFields = []string{
	"afm", "stopDate", "postalAddressNo", "doyDescr", "initialFlagDescr",
	"deactivationFlag", "postalZipCode", "deactivationFlagDescr", "normalVatSystemFlag",
	"commerTitle", "postalAreaDescription", "doy", "firmFlagDescr", "postalAddress",
	"legalStatusDescr", "registDate", "onomasia",
}

var errorFields = []string{"errorDescr", "errorCode"}

func nilHolder(typeName string, fields []string) nilRecord {
	rec := nilRecord{Type: "ns1:" + typeName}
	for _, f := range fields {
		rec.Fields = append(rec.Fields, nilField{XMLName: xml.Name{Local: "ns1:" + f}, Nil: "true"})
	}
	return rec
}

func newEnvelope(content any, username, password string) envelope {
	env := envelope{
		Env:   nsEnvelope,
		NS:    nsService,
		Types: nsTypes,
		XSI:   nsXSI,
		Body:  body{Content: content},
	}
	if username != "" {
		env.Header = &header{Security: security{
			WSSE:          nsWSSE,
			UsernameToken: usernameToken{Username: username, Password: password},
		}}
	}
	return env
}

func newAFMMethod(req registry.LookupRequest) afmMethod {
	return afmMethod{
		Input: afmInput{
			Type:      "ns1:RgWsPublicInputRtUser",
			CalledBy:  req.CalledBy.String(),
			CalledFor: req.CalledFor.String(),
		},
		Basic:      nilHolder("RgWsPublicBasicRtUser", basicFields),
		Activities: nilHolder("RgWsPublicFirmActRtUserArray", nil),
		Error:      nilHolder("GenWsErrorRtUser", errorFields),
	}
}

// Incoming messages. Elements are matched by local name so the response
// prefixes do not matter.

type responseEnvelope struct {
	Body struct {
		Fault           *fault             `xml:"Fault"`
		AFMResponse     *afmMethodResponse `xml:"rgWsPublicAfmMethodResponse"`
		VersionResponse *versionResponse   `xml:"rgWsPublicVersionInfoResponse"`
	} `xml:"Body"`
}

type fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type afmMethodResponse struct {
	Basic      basicRecord    `xml:"RgWsPublicBasicRt_out"`
	Activities []firmActivity `xml:"arrayOfRgWsPublicFirmActRt_out>RgWsPublicFirmActRtUser"`
	CallSeqID  string         `xml:"pCallSeqId_out"`
	Error      errorRecord    `xml:"pErrorRec_out"`
}

type basicRecord struct {
	AFM                   string `xml:"afm"`
	DOY                   string `xml:"doy"`
	DOYDescr              string `xml:"doyDescr"`
	InitialFlagDescr      string `xml:"initialFlagDescr"`
	DeactivationFlag      string `xml:"deactivationFlag"`
	DeactivationFlagDescr string `xml:"deactivationFlagDescr"`
	FirmFlagDescr         string `xml:"firmFlagDescr"`
	Onomasia              string `xml:"onomasia"`
	CommerTitle           string `xml:"commerTitle"`
	LegalStatusDescr      string `xml:"legalStatusDescr"`
	PostalAddress         string `xml:"postalAddress"`
	PostalAddressNo       string `xml:"postalAddressNo"`
	PostalZipCode         string `xml:"postalZipCode"`
	PostalAreaDescription string `xml:"postalAreaDescription"`
	RegistDate            string `xml:"registDate"`
	StopDate              string `xml:"stopDate"`
	NormalVatSystemFlag   string `xml:"normalVatSystemFlag"`
}

type firmActivity struct {
	Code      string `xml:"firmActCode"`
	Descr     string `xml:"firmActDescr"`
	Kind      string `xml:"firmActKind"`
	KindDescr string `xml:"firmActKindDescr"`
}

type errorRecord struct {
	Code  string `xml:"errorCode"`
	Descr string `xml:"errorDescr"`
}

type versionResponse struct {
	Result string `xml:"result"`
}

func (r *afmMethodResponse) toRegistration() (*registry.Registration, error) {
	b := r.Basic
	number, err := afm.Parse(strings.TrimSpace(b.AFM))
	if err != nil {
		return nil, err
	}
	reg := &registry.Registration{
		AFM: number,
		TaxOffice: registry.TaxOffice{
			Code:        strings.TrimSpace(b.DOY),
			Description: strings.TrimSpace(b.DOYDescr),
		},
		Name:                    strings.TrimSpace(b.Onomasia),
		CommercialTitle:         strings.TrimSpace(b.CommerTitle),
		LegalStatus:             strings.TrimSpace(b.LegalStatusDescr),
		FirmFlag:                strings.TrimSpace(b.FirmFlagDescr),
		InitialFlag:             strings.TrimSpace(b.InitialFlagDescr),
		DeactivationFlag:        strings.TrimSpace(b.DeactivationFlag),
		DeactivationDescription: strings.TrimSpace(b.DeactivationFlagDescr),
		Address: registry.Address{
			Street:  strings.TrimSpace(b.PostalAddress),
			Number:  strings.TrimSpace(b.PostalAddressNo),
			ZipCode: strings.TrimSpace(b.PostalZipCode),
			Area:    strings.TrimSpace(b.PostalAreaDescription),
		},
		RegisteredOn: parseDate(b.RegistDate),
		StoppedOn:    parseDate(b.StopDate),
		NormalVAT:    strings.EqualFold(strings.TrimSpace(b.NormalVatSystemFlag), "Y"),
		CallSeqID:    strings.TrimSpace(r.CallSeqID),
	}
	for _, a := range r.Activities {
		reg.Activities = append(reg.Activities, registry.Activity{
			Code:            strings.TrimSpace(a.Code),
			Description:     strings.TrimSpace(a.Descr),
			Kind:            strings.TrimSpace(a.Kind),
			KindDescription: strings.TrimSpace(a.KindDescr),
		})
	}
	return reg, nil
}

// parseDate reads the date part of registry timestamps, which come either as
// "2006-01-02" or with a time and offset appended.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) < len(time.DateOnly) {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)])
	if err != nil {
		return nil
	}
	return &t
}
