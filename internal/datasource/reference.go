// Package datasource resolves named datasource references into concrete
// database handles. A reference is a bag of named string properties, the
// shape peers and configuration files exchange; Resolve validates it and
// selects the SQL driver from the URL scheme, and Open turns it into a
// live sqlx handle on demand.
package datasource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for reference validation
var (
	// ErrMissingURL indicates a reference without the required url
	// property
	ErrMissingURL = errors.New("datasource reference has no url")

	// ErrUnknownScheme indicates a url whose scheme maps to no known
	// SQL driver
	ErrUnknownScheme = errors.New("unknown datasource url scheme")
)

// InvalidPropertyError reports a reference property that failed to parse
type InvalidPropertyError struct {
	// Name is the property name
	Name string

	// Value is the offending value
	Value string

	// Err is the underlying parse failure
	Err error
}

// Error implements the error interface
func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid datasource property %s=%q: %v", e.Name, e.Value, e.Err)
}

// Unwrap returns the underlying parse failure
func (e *InvalidPropertyError) Unwrap() error {
	return e.Err
}

// Reference is a resolved bag of datasource properties
type Reference struct {
	// URL locates the database; its scheme selects the driver
	URL string

	// User is the login user, optional
	User string

	// Password is the login password, optional
	Password string

	// Description is a free-form label, optional
	Description string

	// LoginTimeout bounds connection establishment, in seconds;
	// zero means no bound
	LoginTimeout int
}

// ParseReference reads a reference from named properties. The url
// property is required; loginTimeout must be a non-negative integer when
// present; unknown properties are ignored.
func ParseReference(props map[string]string) (Reference, error) {
	ref := Reference{
		URL:         props["url"],
		User:        props["user"],
		Password:    props["password"],
		Description: props["description"],
	}

	if ref.URL == "" {
		return Reference{}, ErrMissingURL
	}

	if raw, ok := props["loginTimeout"]; ok && raw != "" {
		timeout, err := strconv.Atoi(raw)
		if err != nil {
			return Reference{}, &InvalidPropertyError{Name: "loginTimeout", Value: raw, Err: err}
		}
		if timeout < 0 {
			return Reference{}, &InvalidPropertyError{Name: "loginTimeout", Value: raw, Err: errors.New("must not be negative")}
		}
		ref.LoginTimeout = timeout
	}

	return ref, nil
}

// driverFor selects the SQL driver and DSN for a datasource url.
// sqlite databases are addressed by path (file: prefix or a bare path);
// mysql and postgres by their url schemes.
func driverFor(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "file:"):
		return "sqlite3", url, nil
	case strings.HasPrefix(url, "mysql://"):
		// The mysql driver takes a bare DSN without the scheme
		return "mysql", strings.TrimPrefix(url, "mysql://"), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		// lib/pq accepts the full url form
		return "postgres", url, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownScheme, url)
	}
}
