package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Equity Screener Configuration

[database]
# SQLite database file (defaults to screener.db next to this file)
# path = "/var/lib/equity-screener/screener.db"

[signals]
# Signals are deactivated this many days after their detection date
expiry_days = 5
rsi_oversold = 30.0
rsi_overbought = 70.0
# Volume / volume_sma ratio that counts as a volume breakout
volume_breakout_threshold = 2.0
# Volume / volume_sma ratio that confirms another signal
volume_confirm_ratio = 1.5
# ADX level that confirms a golden/death cross
adx_trend_threshold = 25.0
# Compute indicators from prices when they are not stored
compute_missing_indicators = true
history_days = 400
workers = 4
# Skip stocks that already hold active signals during batch detection
skip_existing = true

[patterns]
cache_max_age = "24h"
default_limit = 100
# Signals older than this are ignored by technical screening
technical_window_days = 7
seed_presets = true

[cache]
# Results cache backend: "sqlite" or "redis"
backend = "sqlite"
redis_addr = "localhost:6379"
redis_password = ""
redis_db = 0
key_prefix = "screener"

[api]
listen_addr = ":8080"
allowed_origins = ["http://localhost:5173", "http://localhost:8080"]
release_mode = false

[scheduler]
enabled = false
# Cron specs with a leading seconds field
intraday_spec = "0 */15 9-15 * * MON-FRI"
eod_spec = "0 30 16 * * MON-FRI"
expiry_spec = "0 0 6 * * *"
timezone = "Asia/Jakarta"
market_open = "09:00"
market_close = "16:00"

[logging]
level = "info"
console = true
file = true
max_size = 50
max_backups = 5
max_age = 14
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
