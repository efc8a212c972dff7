package client

import (
	"encoding/json"
	"testing"

	"github.com/lordbasex/dbgateway/internal/wire"
)

func TestEncodeEnvelopeProducesFieldsDecodeRequestExpects(t *testing.T) {
	env := wire.Envelope{
		Header: wire.NowHeader(1, "corr-1"),
		Auth:   wire.AuthToken{Token: "tok", ClientID: "c1"},
		Request: wire.QueryRequest{
			ID:     "req-1",
			Kind:   wire.KindSelect,
			SQL:    "SELECT 1",
			Params: []wire.Param{{Type: wire.TypeInt64, Int: 7}},
		},
	}
	body, err := encodeEnvelope(env)
	if err != nil {
		t.Fatalf("encodeEnvelope: %v", err)
	}

	var decoded struct {
		Header map[string]interface{} `json:"header"`
		Auth   map[string]interface{} `json:"auth"`
		ID     string                 `json:"id"`
		Kind   string                 `json:"kind"`
		SQL    string                 `json:"sql"`
		Params []map[string]interface{} `json:"params"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != "req-1" || decoded.Kind != "SELECT" || decoded.SQL != "SELECT 1" {
		t.Errorf("unexpected envelope body: %+v", decoded)
	}
	if decoded.Auth["ClientID"] != "c1" {
		t.Errorf("Auth.ClientID = %v, want \"c1\"", decoded.Auth["ClientID"])
	}
	if len(decoded.Params) != 1 || decoded.Params[0]["type"] != "int64" {
		t.Errorf("unexpected params: %+v", decoded.Params)
	}
}

func TestDecodeResponseParsesGatewayReplyShape(t *testing.T) {
	body := `{
		"header": {},
		"correlation_id": "req-1",
		"status": "OK",
		"columns": [{"Name": "id", "TypeName": "BIGINT"}],
		"rows": [[{"type": "int64", "int": 42}]],
		"rows_affected": 1,
		"duration_us": 100
	}`
	resp, err := decodeResponse([]byte(body))
	if err != nil {
		t.Fatalf("decodeResponse: %v", err)
	}
	if resp.Status != wire.StatusOK {
		t.Errorf("Status = %v, want StatusOK", resp.Status)
	}
	if resp.CorrelationID != "req-1" {
		t.Errorf("CorrelationID = %q, want \"req-1\"", resp.CorrelationID)
	}
	if len(resp.Rows) != 1 || resp.Rows[0][0].Int != 42 {
		t.Errorf("unexpected Rows: %+v", resp.Rows)
	}
}

func TestDecodeResponseRejectsMalformedJSON(t *testing.T) {
	if _, err := decodeResponse([]byte("not json")); err == nil {
		t.Error("expected an error decoding malformed JSON")
	}
}

func TestDecodeResponseMapsErrorStatuses(t *testing.T) {
	body := `{"correlation_id": "req-2", "status": "RATE_LIMITED", "error_message": "too many requests"}`
	resp, err := decodeResponse([]byte(body))
	if err != nil {
		t.Fatalf("decodeResponse: %v", err)
	}
	if resp.Status != wire.StatusRateLimited {
		t.Errorf("Status = %v, want StatusRateLimited", resp.Status)
	}
	if resp.ErrorMessage != "too many requests" {
		t.Errorf("ErrorMessage = %q", resp.ErrorMessage)
	}
}
