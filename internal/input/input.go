// Package input decides what a command-line argument refers to: a database
// connection, a script file, or SQL text given inline.
package input

import (
	"os"
	"strings"
)

// Kind classifies an input argument.
type Kind int

const (
	// RawSQL is script text passed directly.
	RawSQL Kind = iota
	// File is a path to an existing script file.
	File
	// Connection is a database URL or ADO-style connection string.
	Connection
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Connection:
		return "connection"
	default:
		return "sql"
	}
}

var urlSchemes = []string{
	"postgres://",
	"postgresql://",
	"mysql://",
	"sqlite://",
	"sqlserver://",
}

var adoKeywords = []string{
	"server=",
	"data source=",
	"initial catalog=",
	"database=",
	"integrated security=",
	"user id=",
	"password=",
	"trusted_connection=",
	"multipleactiveresultsets=",
	"encrypt=",
	"trustservercertificate=",
}

// Resolve classifies s. Connection strings win over file paths, and anything that
// is neither is treated as SQL text.
func Resolve(s string) Kind {
	if IsConnectionString(s) {
		return Connection
	}
	if info, err := os.Stat(s); err == nil && !info.IsDir() {
		return File
	}
	return RawSQL
}

// IsConnectionString reports whether s is a supported database URL or an ADO-style
// connection string.
func IsConnectionString(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, scheme := range urlSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return IsADOConnectionString(s)
}

// IsADOConnectionString reports whether s contains a well-known ADO connection
// keyword such as "Server=" or "Initial Catalog=". Matching is case-insensitive.
func IsADOConnectionString(s string) bool {
	lower := strings.ToLower(s)
	for _, keyword := range adoKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
