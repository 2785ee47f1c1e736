// Package gsistest provides an in-process RgWsPublic fake for tests that
// drive the GSIS client end to end.
package gsistest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
)

// ErrorCodeNotFound is answered for numbers the fake does not know.
const ErrorCodeNotFound = "RG_WS_PUBLIC_WRONG_AFM"

const DefaultVersion = "Version: 3.1.0, 01/07/2014"

var calledForPattern = regexp.MustCompile(`<ns1:afmCalledFor>([^<]*)</ns1:afmCalledFor>`)

// Record is a registration the fake answers with.
type Record struct {
	Name   string
	Active bool
}

// Server answers rgWsPublicAfmMethod from Records and rgWsPublicVersionInfo
// with Version. Unknown numbers get an ErrorCodeNotFound error record.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	records map[string]Record
	version string
	calls   atomic.Int64
}

// NewServer starts a fake closed at test cleanup.
func NewServer(t *testing.T, records map[string]Record) *Server {
	t.Helper()
	s := &Server{records: records, version: DefaultVersion}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// SetVersion changes the rgWsPublicVersionInfo answer.
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// Calls returns the number of lookups served.
func (s *Server) Calls() int {
	return int(s.calls.Load())
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")

	s.mu.Lock()
	defer s.mu.Unlock()

	if bytes.Contains(body, []byte("rgWsPublicVersionInfo")) {
		_, _ = io.WriteString(w, VersionResponse(s.version))
		return
	}

	m := calledForPattern.FindSubmatch(body)
	if m == nil {
		http.Error(w, "missing afmCalledFor", http.StatusBadRequest)
		return
	}
	s.calls.Add(1)
	number := string(m[1])
	rec, ok := s.records[number]
	if !ok {
		_, _ = io.WriteString(w, ErrorResponse(ErrorCodeNotFound, "Ο Α.Φ.Μ. δεν είναι έγκυρος"))
		return
	}
	_, _ = io.WriteString(w, AFMResponse(number, rec))
}

// AFMResponse renders a successful rgWsPublicAfmMethod reply.
func AFMResponse(number string, rec Record) string {
	flag, flagDescr := "2", "ΑΠΕΝΕΡΓΟΣ ΑΦΜ"
	if rec.Active {
		flag, flagDescr = "1", "ΕΝΕΡΓΟΣ ΑΦΜ"
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:m="http://gr/gsis/rgwspublic/RgWsPublic.wsdl">
 <env:Body>
  <m:rgWsPublicAfmMethodResponse>
   <RgWsPublicBasicRt_out>
    <m:afm>%s</m:afm>
    <m:doy>1159</m:doy>
    <m:doyDescr>ΦΑΕ ΑΘΗΝΩΝ</m:doyDescr>
    <m:deactivationFlag>%s</m:deactivationFlag>
    <m:deactivationFlagDescr>%s</m:deactivationFlagDescr>
    <m:onomasia>%s</m:onomasia>
    <m:postalAddress>ΕΡΜΟΥ</m:postalAddress>
    <m:postalAddressNo>10</m:postalAddressNo>
    <m:postalZipCode>10563</m:postalZipCode>
    <m:postalAreaDescription>ΑΘΗΝΑ</m:postalAreaDescription>
    <m:registDate>1983-03-14</m:registDate>
   </RgWsPublicBasicRt_out>
   <arrayOfRgWsPublicFirmActRt_out>
    <m:RgWsPublicFirmActRtUser>
     <m:firmActCode>56301000</m:firmActCode>
     <m:firmActDescr>ΚΑΦΕΤΕΡΙΕΣ</m:firmActDescr>
     <m:firmActKind>1</m:firmActKind>
     <m:firmActKindDescr>ΚΥΡΙΑ</m:firmActKindDescr>
    </m:RgWsPublicFirmActRtUser>
   </arrayOfRgWsPublicFirmActRt_out>
   <pCallSeqId_out>31415926</pCallSeqId_out>
   <pErrorRec_out/>
  </m:rgWsPublicAfmMethodResponse>
 </env:Body>
</env:Envelope>`, escape(number), flag, escape(flagDescr), escape(rec.Name))
}

// ErrorResponse renders an rgWsPublicAfmMethod reply carrying an error record.
func ErrorResponse(code, descr string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:m="http://gr/gsis/rgwspublic/RgWsPublic.wsdl">
 <env:Body>
  <m:rgWsPublicAfmMethodResponse>
   <RgWsPublicBasicRt_out/>
   <pCallSeqId_out>0</pCallSeqId_out>
   <pErrorRec_out>
    <m:errorDescr>%s</m:errorDescr>
    <m:errorCode>%s</m:errorCode>
   </pErrorRec_out>
  </m:rgWsPublicAfmMethodResponse>
 </env:Body>
</env:Envelope>`, escape(descr), escape(code))
}

// VersionResponse renders an rgWsPublicVersionInfo reply.
func VersionResponse(version string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:m="http://gr/gsis/rgwspublic/RgWsPublic.wsdl">
 <env:Body>
  <m:rgWsPublicVersionInfoResponse>
   <result>%s</result>
  </m:rgWsPublicVersionInfoResponse>
 </env:Body>
</env:Envelope>`, escape(version))
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
