package data

import (
	pg "github.com/code-payments/code-distributor/pkg/database/postgres"
)

// Provider is the data access layer used by the distributor services
type Provider interface {
	DatabaseData

	// Close releases the underlying database pool, if any
	Close() error
}

type provider struct {
	*DatabaseProvider
}

// NewDataProvider returns a Provider backed by postgres
func NewDataProvider(dbConfig *pg.Config) (Provider, error) {
	db, err := NewDatabaseProvider(dbConfig)
	if err != nil {
		return nil, err
	}
	return &provider{db.(*DatabaseProvider)}, nil
}

// NewTestDataProvider returns a Provider backed by in memory stores
func NewTestDataProvider() Provider {
	return &provider{NewTestDatabaseProvider().(*DatabaseProvider)}
}

func (p *provider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
