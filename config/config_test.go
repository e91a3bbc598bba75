package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "estatehub.yml")
	content := []byte(`
system:
  workdir: ` + dir + `
database:
  type: sqlite
  name: test.db
cart:
  min_order_qty: 150
`)
	require.NoError(t, os.WriteFile(cfile, content, 0o600))

	cfg := LoadConfig(cfile)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 150, cfg.Cart.MinOrderQty)
	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Cart.MaxRetries)
	assert.Equal(t, 1816, cfg.Web.Port)
	assert.DirExists(t, cfg.GetDataDir())
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := *DefaultAppConfig
	env := map[string]string{
		"ESTATEHUB_WEB_PORT":           "9000",
		"ESTATEHUB_CART_MIN_ORDER_QTY": "250",
		"ESTATEHUB_DB_DEBUG":           "true",
		"ESTATEHUB_MAIL_HOST":          "smtp.example.com",
		"ESTATEHUB_CART_MAX_RETRIES":   "not-a-number",
	}
	applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, 9000, cfg.Web.Port)
	assert.Equal(t, 250, cfg.Cart.MinOrderQty)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 3, cfg.Cart.MaxRetries)
}
