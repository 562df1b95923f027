package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{"postgres scheme", "postgres://u:p@localhost:5432/caseflow?sslmode=disable", false},
		{"postgresql scheme", "postgresql://localhost/caseflow", false},
		{"empty", "   ", true},
		{"key value form", "host=localhost user=caseflow", true},
		{"wrong scheme", "mysql://localhost/caseflow", true},
		{"missing host", "postgres:///caseflow", true},
		{"missing database", "postgres://u:p@localhost:5432", true},
		{"root path only", "postgres://localhost:5432/", true},
		{"nested path", "postgres://localhost/caseflow/extra", true},
		{"known sslmode", "postgres://localhost/caseflow?sslmode=verify-full", false},
		{"unknown sslmode", "postgres://localhost/caseflow?sslmode=always", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDSN(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyPoolConfig(t *testing.T) {
	pcfg, err := pgxpool.ParseConfig("postgres://localhost/caseflow")
	require.NoError(t, err)

	applyPoolConfig(pcfg, DBConfig{MaxConns: 4, MinConns: 10})
	assert.Equal(t, int32(4), pcfg.MaxConns)
	assert.Equal(t, int32(4), pcfg.MinConns, "最小连接数不能超过最大连接数")
	assert.Equal(t, 30*time.Minute, pcfg.MaxConnLifetime)
	assert.Equal(t, time.Minute, pcfg.HealthCheckPeriod)

	applyPoolConfig(pcfg, DBConfig{MaxConns: 8, MinConns: 2, MaxConnIdleTime: time.Second})
	assert.Equal(t, int32(8), pcfg.MaxConns)
	assert.Equal(t, int32(2), pcfg.MinConns)
	assert.Equal(t, time.Second, pcfg.MaxConnIdleTime)
}

func TestNewPoolRejectsInvalidDSN(t *testing.T) {
	_, err := NewPool(t.Context(), "mysql://localhost/caseflow", DefaultDBConfig())
	assert.ErrorContains(t, err, "invalid POSTGRES_DSN")
}
