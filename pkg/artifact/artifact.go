// Package artifact defines uploaded artifacts and their kind detection.
// The kind is decided once at ingestion and carried through the session,
// so no extension branching happens downstream.
package artifact

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the tagged variant of artifact types the service understands.
type Kind string

const (
	// KindDocument covers PDF and plain-text artifacts answered via chunk retrieval.
	KindDocument Kind = "document"
	// KindTable covers CSV artifacts answered via a structural summary.
	KindTable Kind = "table"
)

// Artifact holds the raw uploaded bytes and metadata detected at ingestion.
type Artifact struct {
	Filename string
	Bytes    []byte
	Kind     Kind
	MIME     string
	// Language is the detected source language code, empty when detection failed.
	Language string
}

// DetectKind classifies raw bytes into a Kind. Content sniffing wins;
// the filename extension is a tiebreaker for text-like payloads, since
// a CSV sniffs as text/plain without one.
func DetectKind(filename string, data []byte) (Kind, string) {
	mtype := mimetype.Detect(data)

	switch {
	case mtype.Is("text/csv"):
		return KindTable, mtype.String()
	case mtype.Is("application/pdf"):
		return KindDocument, mtype.String()
	}

	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return KindTable, mtype.String()
	}

	return KindDocument, mtype.String()
}
