package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/tarndb/tarn/internal/executor"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		props   map[string]string
		want    Reference
		wantErr error
	}{
		{
			name: "full reference",
			props: map[string]string{
				"url":          "postgres://db.internal:5432/tarn",
				"user":         "tarn",
				"password":     "secret",
				"description":  "primary store",
				"loginTimeout": "15",
			},
			want: Reference{
				URL:          "postgres://db.internal:5432/tarn",
				User:         "tarn",
				Password:     "secret",
				Description:  "primary store",
				LoginTimeout: 15,
			},
		},
		{
			name:  "url only",
			props: map[string]string{"url": "file:test.db"},
			want:  Reference{URL: "file:test.db"},
		},
		{
			name:    "missing url",
			props:   map[string]string{"user": "tarn"},
			wantErr: ErrMissingURL,
		},
		{
			name:  "unknown properties ignored",
			props: map[string]string{"url": "file:x.db", "flavor": "vanilla"},
			want:  Reference{URL: "file:x.db"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.props)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReference failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseReference_BadLoginTimeout(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"non-integer", "soon"},
		{"negative", "-1"},
		{"float", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReference(map[string]string{"url": "file:x.db", "loginTimeout": tt.value})
			if err == nil {
				t.Fatal("expected parse failure")
			}

			var propErr *InvalidPropertyError
			if !errors.As(err, &propErr) {
				t.Fatalf("expected *InvalidPropertyError, got %T", err)
			}
			if propErr.Name != "loginTimeout" || propErr.Value != tt.value {
				t.Errorf("error should name the property, got %+v", propErr)
			}
		})
	}
}

func TestDriverSelection(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantErr    bool
	}{
		{"sqlite://tarn.db", "sqlite3", false},
		{"file:tarn.db?mode=memory", "sqlite3", false},
		{"mysql://tarn:pw@tcp(db:3306)/tarn", "mysql", false},
		{"postgres://db:5432/tarn", "postgres", false},
		{"postgresql://db:5432/tarn", "postgres", false},
		{"oracle://db/tarn", "", true},
		{"tarn.db", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			ds, err := Resolve("test", map[string]string{"url": tt.url})
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownScheme) {
					t.Fatalf("expected ErrUnknownScheme, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if ds.Driver() != tt.wantDriver {
				t.Errorf("expected driver %q, got %q", tt.wantDriver, ds.Driver())
			}
		})
	}
}

func TestDataSource_OpenSQLite(t *testing.T) {
	ds, err := Resolve("memory", map[string]string{"url": "file::memory:?cache=shared"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	defer ds.Close()

	ctx := context.Background()

	db, err := ds.Open(ctx)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Second open returns the same handle
	again, err := ds.Open(ctx)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if again != db {
		t.Error("Open should reuse the established handle")
	}

	var one int
	if err := db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if one != 1 {
		t.Errorf("expected 1, got %d", one)
	}

	if err := ds.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent
	if err := ds.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	refs := map[string]map[string]string{
		"primary": {"url": "file::memory:?cache=shared"},
		"replica": {"url": "file:replica.db?mode=memory"},
	}

	reg, err := NewRegistry(refs, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	defer reg.Close()

	if reg.Count() != 2 {
		t.Errorf("expected 2 datasources, got %d", reg.Count())
	}

	if _, err := reg.Get("primary"); err != nil {
		t.Errorf("Get(primary) failed: %v", err)
	}
	if _, err := reg.Get("missing"); err == nil {
		t.Error("Get on an unregistered name should fail")
	}

	names := reg.Names()
	if len(names) != 2 {
		t.Errorf("expected 2 names, got %v", names)
	}
}

func TestRegistry_RejectsBrokenReference(t *testing.T) {
	refs := map[string]map[string]string{
		"good": {"url": "file:good.db?mode=memory"},
		"bad":  {"user": "tarn"},
	}

	if _, err := NewRegistry(refs, nil); !errors.Is(err, ErrMissingURL) {
		t.Errorf("expected ErrMissingURL, got %v", err)
	}
}

func TestRegistry_PingAll(t *testing.T) {
	refs := map[string]map[string]string{
		"memory": {"url": "file::memory:?cache=shared"},
	}

	reg, err := NewRegistry(refs, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	defer reg.Close()

	results := reg.PingAll(context.Background())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results["memory"] != nil {
		t.Errorf("expected healthy datasource, got %v", results["memory"])
	}
}

// directBackend runs handles inline on the submitting goroutine
type directBackend struct{}

func (directBackend) AddTask(t *executor.Task) { t.Run(context.Background()) }
func (directBackend) OnCompletion()            {}

func TestRegistry_PingAllVia(t *testing.T) {
	refs := map[string]map[string]string{
		"memory": {"url": "file::memory:?cache=shared"},
	}

	reg, err := NewRegistry(refs, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	defer reg.Close()

	svc := executor.NewService(directBackend{}, nil)

	results := reg.PingAllVia(context.Background(), svc)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results["memory"] != nil {
		t.Errorf("expected healthy datasource, got %v", results["memory"])
	}
}
