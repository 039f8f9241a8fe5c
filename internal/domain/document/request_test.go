package document

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag(t *testing.T) {
	tests := []struct {
		flag      Flag
		valid     bool
		abnormal  bool
		critical  bool
		direction int
		glyph     string
		code      string
	}{
		{"", true, false, false, 0, "", ""},
		{FlagNormal, true, false, false, 0, "", ""},
		{FlagHigh, true, true, false, 1, "▲", "H"},
		{FlagLow, true, true, false, -1, "▼", "L"},
		{FlagCriticalHigh, true, true, true, 1, "▲", "HH"},
		{FlagCriticalLow, true, true, true, -1, "▼", "LL"},
		{"HIGH", true, true, false, 1, "▲", "H"},
		{"weird", false, false, false, 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.flag), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.flag.IsValid())
			assert.Equal(t, tt.abnormal, tt.flag.IsAbnormal())
			assert.Equal(t, tt.critical, tt.flag.IsCritical())
			assert.Equal(t, tt.direction, tt.flag.Direction())
			assert.Equal(t, tt.glyph, tt.flag.Glyph())
			assert.Equal(t, tt.code, tt.flag.Code())
		})
	}
}

func TestText_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Text `json:"a"`
		B Text `json:"b"`
		C Text `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"42 y","b":13.5,"c":null}`), &v))
	assert.Equal(t, Text("42 y"), v.A)
	assert.Equal(t, Text("13.5"), v.B)
	assert.Equal(t, Text(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

func TestHistoryPoint_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		date  time.Time
		value string
	}{
		{"rfc3339", `{"date":"2024-03-01T08:30:00Z","value":5.1}`, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), "5.1"},
		{"plain date", `{"date":"2024-03-02","value":"6.25"}`, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), "6.25"},
		{"space separated", `{"date":"2024-03-03 10:00:00","value":7}`, time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC), "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p HistoryPoint
			require.NoError(t, json.Unmarshal([]byte(tt.input), &p))
			assert.True(t, tt.date.Equal(p.Date))
			assert.True(t, decimal.RequireFromString(tt.value).Equal(p.Value))
		})
	}

	var p HistoryPoint
	assert.Error(t, json.Unmarshal([]byte(`{"date":"yesterday","value":1}`), &p))
}

func TestReportRequest_Decode(t *testing.T) {
	body := `{
		"documentType": "masterSlip",
		"patientInfo": {"name": "Ana Ruiz", "patientId": "P-001", "age": 34, "gender": "F"},
		"visitInfo": {"visitId": "V-1001", "collectionDate": "2024-05-01"},
		"tests": [
			{"testName": "Hemoglobin", "department": "Hematology", "result": 11.2, "units": "g/dL", "flag": "low"},
			{"testName": "Glucose", "department": "Chemistry", "result": "98"}
		],
		"documentOptions": {"includeHistoryGraph": true}
	}`

	var req ReportRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, "P-001", req.PatientInfo.PatientID)
	assert.Equal(t, Text("34"), req.PatientInfo.Age)
	assert.Equal(t, "V-1001", req.VisitInfo.VisitID)
	require.Len(t, req.Tests, 2)
	assert.Equal(t, FlagLow, req.Tests[0].Flag)
	assert.Equal(t, Text("11.2"), req.Tests[0].Result)
	assert.True(t, req.IncludeHistoryGraph())

	var nilReq *ReportRequest
	assert.False(t, nilReq.IncludeHistoryGraph())
}
