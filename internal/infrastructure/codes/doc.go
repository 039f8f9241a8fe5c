// Package codes produces the machine-readable identifiers printed on slips
// and reports: a QR code carrying the patient/visit JSON payload and a
// Code 128 barcode carrying the raw visit id.
package codes
