package idbstore

import (
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Backend selects the host engine that stores the database.
type Backend int

const (
	// BoltBackend keeps each database in a single Bolt file, <Dir>/<name>.db.
	BoltBackend Backend = iota
	// BadgerBackend keeps each database in a Badger directory, <Dir>/<name>.badger.
	BadgerBackend
	// MemoryBackend keeps databases in process memory, keyed by <Dir>/<name>.
	// Contents survive Close for the lifetime of the process.
	MemoryBackend
)

func (b Backend) String() string {
	switch b {
	case BoltBackend:
		return "bolt"
	case BadgerBackend:
		return "badger"
	case MemoryBackend:
		return "memory"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// State is the connection state of a Manager.
type State int

const (
	StateUnopened State = iota
	StateOpening
	StateOpen
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const defaultOpenTimeout = time.Second

type Options struct {
	Dir       string
	Backend   Backend
	Encoding  Encoding
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// OpenTimeout bounds how long Open waits for a Bolt file held by another
	// connection. Defaults to one second.
	OpenTimeout time.Duration

	SuppressContentWhenLogging bool

	// OnUpgrade, if set, runs inside the upgrade transaction after the
	// collection and its indexes have been brought up to date.
	OnUpgrade func(oldVersion, newVersion uint64)
}

func (opt *Options) openTimeout() time.Duration {
	if opt.OpenTimeout > 0 {
		return opt.OpenTimeout
	}
	return defaultOpenTimeout
}

// Manager owns one collection inside one named, versioned database.
//
// All methods are safe for concurrent use. Record operations each run in
// their own transaction; Bolt and the memory engine serialize writers and
// give readers a consistent snapshot.
type Manager struct {
	dbName   string
	collName string
	fields   []Field
	opt      Options
	logf     func(format string, args ...any)
	verbose  bool

	mu      sync.RWMutex
	state   State
	store   storage
	version uint64

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

// New captures configuration. It performs no I/O.
func New(dbName, collName string, fields []Field, opt Options) (*Manager, error) {
	if err := validateDatabaseName(dbName); err != nil {
		return nil, err
	}
	if err := validateCollectionName(collName); err != nil {
		return nil, err
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	logf := opt.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Manager{
		dbName:   dbName,
		collName: collName,
		fields:   slices.Clone(fields),
		opt:      opt,
		logf:     logf,
		verbose:  opt.Verbose,
	}, nil
}

func (m *Manager) DatabaseName() string   { return m.dbName }
func (m *Manager) CollectionName() string { return m.collName }
func (m *Manager) Fields() []Field        { return slices.Clone(m.fields) }

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Version returns the version the database was opened at, or 0.
func (m *Manager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

func (m *Manager) path(ext string) string {
	return filepath.Join(m.opt.Dir, m.dbName+ext)
}

func (m *Manager) openStorage() (storage, error) {
	switch m.opt.Backend {
	case BoltBackend:
		return openBoltStorage(m.path(".db"), &m.opt)
	case BadgerBackend:
		return openBadgerStorage(m.path(".badger"), &m.opt)
	case MemoryBackend:
		return openMemStorage(m.path("")), nil
	default:
		return nil, fmt.Errorf("unknown backend %v", m.opt.Backend)
	}
}

// Open opens the database at the given version, creating it if needed.
//
// When version exceeds the stored version (0 for a new database), the
// collection is created or its missing indexes are added, and the version is
// bumped, all in a single transaction. Opening at a lower version than the
// stored one fails. On failure no handle is retained and Open may be retried.
func (m *Manager) Open(version int) error {
	const op = "open"
	if version < 1 {
		return &Error{Kind: OpenFailure, Op: op, Collection: m.collName, Err: fmt.Errorf("invalid version %d", version)}
	}

	m.mu.Lock()
	if m.state == StateOpening || m.state == StateOpen {
		st := m.state
		m.mu.Unlock()
		return &Error{Kind: OpenFailure, Op: op, Collection: m.collName, Msg: fmt.Sprintf("database is already %v", st)}
	}
	m.state = StateOpening
	m.mu.Unlock()

	ver := uint64(version)
	store, err := m.openStorage()
	if err == nil {
		err = m.run(store, true, ver, func(tx *txn) error {
			return m.upgradeIfNeeded(tx, ver)
		})
		if err != nil {
			store.Close()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateFailed
		m.logf("db: failed to open %s: %v", m.dbName, err)
		return &Error{Kind: OpenFailure, Op: op, Collection: m.collName, Msg: OpenFailure.String(), Err: err}
	}
	m.store, m.version, m.state = store, ver, StateOpen
	if m.verbose {
		m.logf("db: OPEN %s/%s v%d (%v)", m.dbName, m.collName, ver, m.opt.Backend)
	}
	return nil
}

// Close waits for in-flight operations and releases the database. The
// Manager can be opened again afterwards. Closing an unopened Manager is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen {
		if m.state == StateFailed {
			m.state = StateUnopened
		}
		return nil
	}
	err := m.store.Close()
	m.store, m.version, m.state = nil, 0, StateUnopened
	if err != nil {
		return fmt.Errorf("idbstore: closing %s: %w", m.dbName, err)
	}
	return nil
}

// do runs f in a transaction on the open database, holding the read lock so
// that Close waits for it. Errors are reported as *Error of the given kind.
func (m *Manager) do(op string, kind ErrorKind, writable bool, key int64, f func(tx *txn) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateOpen {
		return &Error{Kind: NotConnected, Op: op, Collection: m.collName, Key: key, Msg: fmt.Sprintf("database not open (%v)", m.state)}
	}
	err := m.run(m.store, writable, m.version, f)
	return classify(kind, op, m.collName, key, err)
}
