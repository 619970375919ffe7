package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AWS_S3_REPORTS_BUCKET", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("DEFAULT_REGIONS", " branca , ,azul ")
	t.Setenv("SERVER_ADDRESS", "https://presenca.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.AWS.Enabled())
	assert.Equal(t, "America/Sao_Paulo", cfg.Attendance.Timezone)
	assert.Equal(t, "https://presenca.example.com", cfg.Attendance.ServerAddress)
	assert.Equal(t, []string{"branca", "azul"}, cfg.Bootstrap.Regions)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())

	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}
