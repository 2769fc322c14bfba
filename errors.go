package idbstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind classifies failures reported by Manager operations.
type ErrorKind int

const (
	// OpenFailure means the database could not be opened or upgraded.
	OpenFailure ErrorKind = iota + 1
	// NotFoundFailure means an update targeted a missing primary key.
	NotFoundFailure
	// WriteFailure means an add, update or delete was rejected.
	WriteFailure
	// ReadFailure means a plain or indexed read was rejected.
	ReadFailure
	// NotConnected means a record operation was issued while the Manager is not open.
	NotConnected
)

func (k ErrorKind) String() string {
	switch k {
	case OpenFailure:
		return "error opening database"
	case NotFoundFailure:
		return "item not found"
	case WriteFailure:
		return "write failed"
	case ReadFailure:
		return "read failed"
	case NotConnected:
		return "database not open"
	default:
		return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Kind sentinels; match with errors.Is(err, ErrNotFound) etc.
var (
	ErrOpen         = &Error{Kind: OpenFailure}
	ErrNotFound     = &Error{Kind: NotFoundFailure}
	ErrWrite        = &Error{Kind: WriteFailure}
	ErrRead         = &Error{Kind: ReadFailure}
	ErrNotConnected = &Error{Kind: NotConnected}
)

// Causes wrapped by *Error.
var (
	ErrVersion               = errors.New("requested version is less than the stored version")
	ErrConstraint            = errors.New("unique index constraint violated")
	ErrUnknownIndex          = errors.New("no such index")
	ErrInvalidKey            = errors.New("not a valid index key")
	ErrNoCollection          = errors.New("collection does not exist")
	ErrKeyProvided           = errors.New("record must not carry a primary key")
	ErrKeyImmutable          = errors.New("primary key cannot be changed")
	ErrNotJSONSafe           = errors.New("value cannot be stored as JSON")
	ErrKeyGeneratorExhausted = errors.New("key generator exhausted")
)

// Error is returned by every Manager operation.
type Error struct {
	Kind       ErrorKind
	Op         string
	Collection string
	Index      string
	Key        int64
	Msg        string
	Err        error
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind sentinel matching e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Collection != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) Error() string {
	var buf strings.Builder
	if e.Op != "" {
		buf.WriteString(e.Op)
		buf.WriteByte(' ')
	}
	if e.Collection != "" {
		buf.WriteString(e.Collection)
	}
	if e.Index != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Index)
	}
	if e.Key != 0 {
		buf.WriteByte('/')
		buf.WriteString(strconv.FormatInt(e.Key, 10))
	}
	if buf.Len() > 0 {
		buf.WriteString(": ")
	}
	if e.Msg != "" {
		buf.WriteString(e.Msg)
	} else {
		buf.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// classify wraps err into an *Error of the given kind unless it already is one.
func classify(kind ErrorKind, op, coll string, key int64, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			e.Op = op
		}
		if e.Collection == "" {
			e.Collection = coll
		}
		if e.Key == 0 {
			e.Key = key
		}
		return e
	}
	return &Error{Kind: kind, Op: op, Collection: coll, Key: key, Err: err}
}

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}
