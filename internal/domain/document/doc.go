// Package document contains the domain model of the laboratory document
// generator: request payloads, document type variants, slip geometry,
// the per-request generation state machine and the typed error taxonomy.
package document
