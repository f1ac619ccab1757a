package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tarndb/tarn/internal/executor"

	// SQL drivers selected by url scheme
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DataSource is a resolved reference bound to a driver. Construction
// never touches the network; Open establishes the connection lazily.
type DataSource struct {
	// Name identifies the datasource in logs and the registry
	Name string

	// Ref is the reference this datasource was resolved from
	Ref Reference

	// driver is the database/sql driver name selected from the url
	driver string

	// dsn is the driver-specific connection string
	dsn string

	// mu guards db
	mu sync.Mutex

	// db is the open handle, nil until Open
	db *sqlx.DB
}

// Resolve validates a reference's properties and binds it to a driver
// without connecting.
func Resolve(name string, props map[string]string) (*DataSource, error) {
	ref, err := ParseReference(props)
	if err != nil {
		return nil, fmt.Errorf("datasource %q: %w", name, err)
	}

	driver, dsn, err := driverFor(ref.URL)
	if err != nil {
		return nil, fmt.Errorf("datasource %q: %w", name, err)
	}

	return &DataSource{
		Name:   name,
		Ref:    ref,
		driver: driver,
		dsn:    dsn,
	}, nil
}

// Driver returns the database/sql driver name selected for this
// datasource.
func (ds *DataSource) Driver() string {
	return ds.driver
}

// Open establishes the connection on first use and verifies it with a
// ping. The reference's login timeout bounds the attempt; subsequent
// calls return the already-open handle.
func (ds *DataSource) Open(ctx context.Context) (*sqlx.DB, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.db != nil {
		return ds.db, nil
	}

	if ds.Ref.LoginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ds.Ref.LoginTimeout)*time.Second)
		defer cancel()
	}

	db, err := sqlx.Open(ds.driver, ds.dsn)
	if err != nil {
		return nil, fmt.Errorf("datasource %q: failed to open: %w", ds.Name, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("datasource %q: ping failed: %w", ds.Name, err)
	}

	ds.db = db
	return db, nil
}

// Ping verifies connectivity, opening the datasource if needed
func (ds *DataSource) Ping(ctx context.Context) error {
	db, err := ds.Open(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes the open handle, if any. The datasource can be opened
// again afterwards.
func (ds *DataSource) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.db == nil {
		return nil
	}

	err := ds.db.Close()
	ds.db = nil
	return err
}

// String returns a log-friendly description without credentials
func (ds *DataSource) String() string {
	return fmt.Sprintf("DataSource{Name: %s, Driver: %s}", ds.Name, ds.driver)
}

// Registry holds named datasources resolved from configuration
//
// A Registry is safe for concurrent use.
type Registry struct {
	// mu protects sources
	mu sync.RWMutex

	// sources maps datasource name to its resolved handle
	sources map[string]*DataSource

	// logger for structured logging
	logger *slog.Logger
}

// NewRegistry resolves a set of named references. References that fail
// validation abort the whole load; a registry is either complete or not
// constructed.
func NewRegistry(refs map[string]map[string]string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sources := make(map[string]*DataSource, len(refs))
	for name, props := range refs {
		ds, err := Resolve(name, props)
		if err != nil {
			return nil, err
		}
		sources[name] = ds
		logger.Debug("resolved datasource", "name", name, "driver", ds.Driver())
	}

	return &Registry{sources: sources, logger: logger}, nil
}

// Get returns the named datasource
func (r *Registry) Get(name string) (*DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("datasource %q not registered", name)
	}

	return ds, nil
}

// Names returns the registered datasource names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}

	return names
}

// Count returns the number of registered datasources
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sources)
}

// PingAll health-checks every datasource concurrently and returns a map
// of datasource name to ping outcome.
func (r *Registry) PingAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	sources := make([]*DataSource, 0, len(r.sources))
	for _, ds := range r.sources {
		sources = append(sources, ds)
	}
	r.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]error, len(sources))
	)

	for _, ds := range sources {
		wg.Add(1)

		go func(ds *DataSource) {
			defer wg.Done()

			err := ds.Ping(ctx)

			mu.Lock()
			results[ds.Name] = err
			mu.Unlock()

			if err != nil {
				r.logger.Warn("datasource health check failed", "name", ds.Name, "error", err)
			} else {
				r.logger.Debug("datasource health check passed", "name", ds.Name)
			}
		}(ds)
	}

	wg.Wait()
	return results
}

// PingAllVia health-checks every datasource by submitting one task per
// datasource through the given executor service, so checks run on the
// service's backend with its concurrency limits.
func (r *Registry) PingAllVia(ctx context.Context, svc *executor.Service) map[string]error {
	r.mu.RLock()
	sources := make([]*DataSource, 0, len(r.sources))
	for _, ds := range r.sources {
		sources = append(sources, ds)
	}
	r.mu.RUnlock()

	tasks := make(map[string]*executor.Task, len(sources))
	for _, ds := range sources {
		ds := ds
		tasks[ds.Name] = svc.Submit(ctx, func(ctx context.Context) error {
			return ds.Ping(ctx)
		})
	}

	results := make(map[string]error, len(tasks))
	for name, t := range tasks {
		if _, err := t.Get(ctx); err != nil {
			results[name] = executor.ExecutionCause(err)
			if results[name] == nil {
				// Wait failure rather than ping failure
				results[name] = err
			}
		} else {
			results[name] = nil
		}
	}

	return results
}

// Close closes every open datasource and empties the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, ds := range r.sources {
		if err := ds.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("datasource %q: %w", name, err)
		}
	}

	r.sources = make(map[string]*DataSource)
	return firstErr
}
