package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slipJSON = `{
  "patientInfo": {"name": "Jane Roe", "patientId": "P-778"},
  "visitInfo": {"visitId": "V-2024-11"},
  "tests": [
    {"testName": "CBC", "department": "Hematology"},
    {"testName": "Glucose", "department": "Chemistry"}
  ]
}`

// writeFixtures creates a request file and a minimal config in a temp dir.
func writeFixtures(t *testing.T) (dir, request, cfg string) {
	t.Helper()
	dir = t.TempDir()
	request = filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(request, []byte(slipJSON), 0o600))
	cfg = filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[headless]\nengine = \"chromedp\"\n"), 0o600))
	return dir, request, cfg
}

func TestRun_WritesMasterSlip(t *testing.T) {
	dir, request, cfg := writeFixtures(t)
	out := filepath.Join(dir, "slip.pdf")
	var stderr bytes.Buffer

	code := run(context.Background(),
		[]string{"-type", "masterSlip", "-in", request, "-out", out, "-lang", "es", "-config", cfg},
		strings.NewReader(""), &bytes.Buffer{}, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRun_StdinToStdout(t *testing.T) {
	_, _, cfg := writeFixtures(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(),
		[]string{"-type", "labSlip", "-out", "-", "-config", cfg},
		strings.NewReader(slipJSON), &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.True(t, bytes.HasPrefix(stdout.Bytes(), []byte("%PDF-")))
}

func TestRun_Failures(t *testing.T) {
	dir, request, cfg := writeFixtures(t)
	out := filepath.Join(dir, "x.pdf")

	tests := []struct {
		name    string
		args    []string
		stdin   string
		code    int
		message string
	}{
		{"missing out", []string{"-type", "labSlip", "-in", request}, "", exitUsage, "-out is required"},
		{"unknown flag", []string{"-bogus"}, "", exitUsage, "flag provided but not defined"},
		{"missing request file", []string{"-type", "labSlip", "-in", filepath.Join(dir, "nope.json"), "-out", out, "-config", cfg}, "", exitUsage, "open request"},
		{"invalid json", []string{"-type", "labSlip", "-out", out, "-config", cfg}, "{", exitUsage, "decode request"},
		{"unsupported type", []string{"-type", "invoice", "-in", request, "-out", out, "-config", cfg}, "", exitFailed, "UNSUPPORTED_DOCUMENT_TYPE"},
		{"missing config", []string{"-type", "labSlip", "-in", request, "-out", out, "-config", filepath.Join(dir, "missing.toml")}, "", exitFailed, "config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			code := run(context.Background(), tt.args, strings.NewReader(tt.stdin), &bytes.Buffer{}, &stderr)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr.String(), tt.message)
		})
	}

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}
