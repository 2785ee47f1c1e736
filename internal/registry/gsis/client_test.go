package gsis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxid/internal/registry"
	"taxid/internal/registry/gsis/gsistest"
	"taxid/pkg/afm"
)

const afmResponse = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:ns0="http://gr/gsis/rgwspublic/RgWsPublic.wsdl/types/" xmlns:m="http://gr/gsis/rgwspublic/RgWsPublic.wsdl">
 <env:Body>
  <m:rgWsPublicAfmMethodResponse>
   <RgWsPublicBasicRt_out xsi:type="ns0:RgWsPublicBasicRtUser">
    <m:afm>094259216</m:afm>
    <m:stopDate xsi:nil="1"/>
    <m:postalAddressNo>10</m:postalAddressNo>
    <m:doyDescr>ΦΑΕ ΑΘΗΝΩΝ</m:doyDescr>
    <m:initialFlagDescr>ΚΑΝΟΝΙΚΟΣ</m:initialFlagDescr>
    <m:deactivationFlag>1</m:deactivationFlag>
    <m:postalZipCode>10563</m:postalZipCode>
    <m:deactivationFlagDescr>ΕΝΕΡΓΟΣ ΑΦΜ</m:deactivationFlagDescr>
    <m:normalVatSystemFlag>Y</m:normalVatSystemFlag>
    <m:commerTitle>ΔΕΙΓΜΑ ΑΕ</m:commerTitle>
    <m:postalAreaDescription>ΑΘΗΝΑ</m:postalAreaDescription>
    <m:doy>1159</m:doy>
    <m:firmFlagDescr>ΕΠΙΤΗΔΕΥΜΑΤΙΑΣ</m:firmFlagDescr>
    <m:postalAddress>ΕΡΜΟΥ</m:postalAddress>
    <m:legalStatusDescr>ΑΕ</m:legalStatusDescr>
    <m:registDate>1983-03-14</m:registDate>
    <m:onomasia>ΔΕΙΓΜΑΤΙΚΗ ΑΝΩΝΥΜΗ ΕΤΑΙΡΕΙΑ</m:onomasia>
   </RgWsPublicBasicRt_out>
   <arrayOfRgWsPublicFirmActRt_out xsi:type="ns0:RgWsPublicFirmActRtUserArray">
    <m:RgWsPublicFirmActRtUser xsi:type="ns0:RgWsPublicFirmActRtUser">
     <m:firmActDescr>ΚΑΦΕΤΕΡΙΕΣ</m:firmActDescr>
     <m:firmActKind>1</m:firmActKind>
     <m:firmActKindDescr>ΚΥΡΙΑ</m:firmActKindDescr>
     <m:firmActCode>56301000</m:firmActCode>
    </m:RgWsPublicFirmActRtUser>
    <m:RgWsPublicFirmActRtUser xsi:type="ns0:RgWsPublicFirmActRtUser">
     <m:firmActDescr>ΥΠΗΡΕΣΙΕΣ ΕΣΤΙΑΣΗΣ</m:firmActDescr>
     <m:firmActKind>2</m:firmActKind>
     <m:firmActKindDescr>ΔΕΥΤΕΡΕΥΟΥΣΑ</m:firmActKindDescr>
     <m:firmActCode>56101000</m:firmActCode>
    </m:RgWsPublicFirmActRtUser>
   </arrayOfRgWsPublicFirmActRt_out>
   <pCallSeqId_out>31415926</pCallSeqId_out>
   <pErrorRec_out xsi:type="ns0:GenWsErrorRtUser">
    <m:errorDescr xsi:nil="1"/>
    <m:errorCode xsi:nil="1"/>
   </pErrorRec_out>
  </m:rgWsPublicAfmMethodResponse>
 </env:Body>
</env:Envelope>`

const errorResponse = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:m="http://gr/gsis/rgwspublic/RgWsPublic.wsdl">
 <env:Body>
  <m:rgWsPublicAfmMethodResponse>
   <RgWsPublicBasicRt_out/>
   <pCallSeqId_out>0</pCallSeqId_out>
   <pErrorRec_out>
    <m:errorDescr>Ο Α.Φ.Μ. για τον οποίο ζητούνται πληροφορίες δεν αντιστοιχεί σε ενεργό μη φυσικό πρόσωπο</m:errorDescr>
    <m:errorCode>RG_WS_PUBLIC_AFM_CALLED_BY_NOT_FOUND</m:errorCode>
   </pErrorRec_out>
  </m:rgWsPublicAfmMethodResponse>
 </env:Body>
</env:Envelope>`

const faultResponse = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
 <env:Body>
  <env:Fault>
   <faultcode>env:Client</faultcode>
   <faultstring>RG_WS_PUBLIC_TOKEN_USERNAME_NOT_AUTHENTICATED</faultstring>
  </env:Fault>
 </env:Body>
</env:Envelope>`

const versionResponseBody = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:m="http://gr/gsis/rgwspublic/RgWsPublic.wsdl">
 <env:Body>
  <m:rgWsPublicVersionInfoResponse>
   <result>Version: 3.1.0, 01/07/2014</result>
  </m:rgWsPublicVersionInfoResponse>
 </env:Body>
</env:Envelope>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{Endpoint: srv.URL, Username: "USER01", Password: "s3cr<t", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func lookupRequest() registry.LookupRequest {
	return registry.LookupRequest{CalledFor: afm.MustParse("094259216"), CalledBy: afm.MustParse("123456783")}
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Username: "user"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = New(Config{Password: "pass"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	c, err := New(Config{Username: "user", Password: "pass"})
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, c.endpoint)
}

func TestLookup_SendsAuthenticatedRequest(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "text/xml")
		body, _ := io.ReadAll(r.Body)
		got = string(body)
		_, _ = io.WriteString(w, afmResponse)
	})

	_, err := c.Lookup(context.Background(), lookupRequest())
	require.NoError(t, err)

	assert.Contains(t, got, "<wsse:Username>USER01</wsse:Username>")
	assert.Contains(t, got, "<wsse:Password>s3cr&lt;t</wsse:Password>", "credentials are XML-escaped")
	assert.Contains(t, got, "<ns1:afmCalledBy>123456783</ns1:afmCalledBy>")
	assert.Contains(t, got, "<ns1:afmCalledFor>094259216</ns1:afmCalledFor>")
	assert.Contains(t, got, `<ns1:onomasia xsi:nil="true"></ns1:onomasia>`)
	assert.Contains(t, got, `<pErrorRec_out xsi:type="ns1:GenWsErrorRtUser">`)
	assert.True(t, strings.HasPrefix(got, "<?xml"))
}

func TestLookup_ParsesRegistration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, afmResponse)
	})

	record, err := c.Lookup(context.Background(), lookupRequest())
	require.NoError(t, err)

	assert.Equal(t, afm.AFM("094259216"), record.AFM)
	assert.Equal(t, "ΔΕΙΓΜΑΤΙΚΗ ΑΝΩΝΥΜΗ ΕΤΑΙΡΕΙΑ", record.Name)
	assert.Equal(t, "ΔΕΙΓΜΑ ΑΕ", record.CommercialTitle)
	assert.Equal(t, registry.TaxOffice{Code: "1159", Description: "ΦΑΕ ΑΘΗΝΩΝ"}, record.TaxOffice)
	assert.Equal(t, "ΕΡΜΟΥ", record.Address.Street)
	assert.Equal(t, "10563", record.Address.ZipCode)
	assert.True(t, record.IsActive())
	assert.True(t, record.NormalVAT)
	assert.Equal(t, "31415926", record.CallSeqID)
	require.NotNil(t, record.RegisteredOn)
	assert.Equal(t, time.Date(1983, 3, 14, 0, 0, 0, 0, time.UTC), *record.RegisteredOn)
	assert.Nil(t, record.StoppedOn)

	require.Len(t, record.Activities, 2)
	primary, ok := record.PrimaryActivity()
	require.True(t, ok)
	assert.Equal(t, "56301000", primary.Code)
	assert.False(t, record.Activities[1].IsPrimary())
}

func TestLookup_ServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, errorResponse)
	})

	_, err := c.Lookup(context.Background(), lookupRequest())

	var svcErr *registry.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "RG_WS_PUBLIC_AFM_CALLED_BY_NOT_FOUND", svcErr.Code)
	assert.Contains(t, svcErr.Description, "Α.Φ.Μ.")
	assert.NotErrorIs(t, err, afm.ErrValidation)
}

func TestLookup_FaultIsAuthentication(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, faultResponse)
	})

	_, err := c.Lookup(context.Background(), lookupRequest())
	assert.Equal(t, registry.ErrorAuthentication, registry.GetCategory(err))
	assert.False(t, registry.IsServiceError(err))
}

func TestLookup_TransportClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category registry.ErrorCategory
	}{
		{"gateway outage", http.StatusServiceUnavailable, "unavailable", registry.ErrorProviderOutage},
		{"unauthorized", http.StatusUnauthorized, "", registry.ErrorAuthentication},
		{"not found", http.StatusNotFound, "<html/>", registry.ErrorContractMismatch},
		{"garbage body", http.StatusOK, "not xml at all", registry.ErrorBadData},
		{"unexpected element", http.StatusOK, `<Envelope><Body><other/></Body></Envelope>`, registry.ErrorContractMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Lookup(context.Background(), lookupRequest())
			require.Error(t, err)
			assert.Equal(t, tt.category, registry.GetCategory(err))
		})
	}
}

func TestLookup_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Lookup(ctx, lookupRequest())
	assert.Equal(t, registry.ErrorTimeout, registry.GetCategory(err))
	assert.True(t, registry.IsRetryable(err))
}

func TestVersion(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = string(body)
		_, _ = io.WriteString(w, versionResponseBody)
	})

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Version: 3.1.0, 01/07/2014", v)
	assert.Contains(t, got, "<ns:rgWsPublicVersionInfo>")
	assert.NotContains(t, got, "wsse:Security", "version call is unauthenticated")
}

func TestParseDate(t *testing.T) {
	d := parseDate("2004-07-02T00:00:00.000+03:00")
	require.NotNil(t, d)
	assert.Equal(t, 2004, d.Year())

	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("02/07/2004"))
}

func TestClient_AgainstFakeRegistry(t *testing.T) {
	fake := gsistest.NewServer(t, map[string]gsistest.Record{
		"094259216": {Name: "ΔΕΙΓΜΑ & ΣΙΑ", Active: true},
	})
	c, err := New(Config{Endpoint: fake.URL, Username: "USER01", Password: "secret", HTTPClient: fake.Client()})
	require.NoError(t, err)

	record, err := c.Lookup(context.Background(), lookupRequest())
	require.NoError(t, err)
	assert.Equal(t, "ΔΕΙΓΜΑ & ΣΙΑ", record.Name)
	assert.True(t, record.IsActive())

	_, err = c.Lookup(context.Background(), registry.LookupRequest{CalledFor: afm.MustParse("123456783"), CalledBy: afm.MustParse("094259216")})
	var svcErr *registry.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, gsistest.ErrorCodeNotFound, svcErr.Code)

	version, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gsistest.DefaultVersion, version)
	assert.Equal(t, 2, fake.Calls())
}
