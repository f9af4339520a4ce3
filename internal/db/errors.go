package db

import "errors"

var (
	// ErrKeyNotFound is returned for a missing cache key.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned when the FT index does not exist.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by CreateIndex for a name already taken.
	ErrIndexExists = errors.New("db: index already exists")
)

// Command names recorded on Error.
const (
	OpPing        = "PING"
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHSet        = "HSET"
	OpScan        = "SCAN"
	OpGet         = "GET"
	OpSet         = "SET"
)

// Error is a failed store command.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return e.Op + " " + e.Key + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsMissing reports whether err means the key or index is simply absent.
func IsMissing(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrIndexNotFound)
}
