package soap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_PreservesParamOrder(t *testing.T) {
	envelope := string(Envelope("http://www.intelli-track.com/", "GetNodeFromLicensePlate", []Param{
		{Name: "Username", Value: "fleet"},
		{Name: "PIN1", Value: "1111"},
		{Name: "PIN2", Value: "2222"},
		{Name: "LicensePlate", Value: "34ABC123"},
	}))

	assert.Contains(t, envelope, `<?xml version="1.0" encoding="utf-8"?>`)
	assert.Contains(t, envelope, `xmlns:ns="http://www.intelli-track.com/"`)
	assert.Contains(t, envelope, "<ns:GetNodeFromLicensePlate>")

	// Authentication parameters must stay ahead of call parameters
	idxUser := strings.Index(envelope, "<Username>")
	idxPIN1 := strings.Index(envelope, "<PIN1>")
	idxPIN2 := strings.Index(envelope, "<PIN2>")
	idxPlate := strings.Index(envelope, "<LicensePlate>")
	require.True(t, idxUser >= 0 && idxPIN1 >= 0 && idxPIN2 >= 0 && idxPlate >= 0)
	assert.Less(t, idxUser, idxPIN1)
	assert.Less(t, idxPIN1, idxPIN2)
	assert.Less(t, idxPIN2, idxPlate)
}

func TestEnvelope_EscapesParamValues(t *testing.T) {
	hostile := `34<X>&"123"`
	envelope := Envelope("http://www.intelli-track.com/", "GetNodeFromLicensePlate", []Param{
		{Name: "LicensePlate", Value: hostile},
	})

	assert.NotContains(t, string(envelope), hostile)
	assert.Contains(t, string(envelope), "34&lt;X&gt;&amp;")

	// Escaping must survive a parse of the envelope itself
	root, err := Parse(envelope)
	require.NoError(t, err)

	method := root.Find("GetNodeFromLicensePlate")
	require.NotNil(t, method)
	require.Len(t, method.Children, 1)
	assert.Equal(t, "LicensePlate", method.Children[0].Name)
	assert.Equal(t, hostile, method.Children[0].Text)
}

func TestParse_StripsNamespacePrefixes(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns="http://www.intelli-track.com/">
  <soap:Body>
    <GetNodeFromLicensePlateResponse>
      <GetNodeFromLicensePlateResult>NODE001</GetNodeFromLicensePlateResult>
    </GetNodeFromLicensePlateResponse>
  </soap:Body>
</soap:Envelope>`)

	root, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "Envelope", root.Name)

	result := root.Find("GetNodeFromLicensePlateResult")
	require.NotNil(t, result)
	assert.Equal(t, "NODE001", result.Text)

	assert.Nil(t, root.Find("GetVehicleStatusByNodeV3Result"))
}

func TestParse_EmptyDocument(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty document")

	_, err = Parse([]byte("   "))
	require.Error(t, err)
}

func TestFind_MatchesSelfFirst(t *testing.T) {
	el := &Element{
		Name: "GetVehicleStatusByNodeV3Result",
		Children: []*Element{
			{Name: "LastPacket"},
		},
	}

	assert.Same(t, el, el.Find("Result"))
	assert.Same(t, el.Children[0], el.Find("LastPacket"))

	var nilElement *Element
	assert.Nil(t, nilElement.Find("anything"))
}

func TestMap_FlattensChildren(t *testing.T) {
	body := []byte(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <GetVehicleStatusByNodeV3Response>
      <GetVehicleStatusByNodeV3Result>
        <LastPacket>
          <strNode>NODE001</strNode>
          <dLatitude>40.978</dLatitude>
          <dLongitude>29.092</dLongitude>
        </LastPacket>
      </GetVehicleStatusByNodeV3Result>
    </GetVehicleStatusByNodeV3Response>
  </soap:Body>
</soap:Envelope>`)

	root, err := Parse(body)
	require.NoError(t, err)

	result := root.Find("GetVehicleStatusByNodeV3Result")
	require.NotNil(t, result)

	fields := result.Map()
	packet, ok := fields["LastPacket"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "NODE001", packet["strNode"])
	assert.Equal(t, "40.978", packet["dLatitude"])
	assert.Equal(t, "29.092", packet["dLongitude"])
}
