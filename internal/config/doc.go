// Package config handles configuration loading for the PDF merge bot.
//
// # Overview
//
// Configuration starts from built-in defaults, is optionally overlaid by a
// YAML or TOML file, then by deployment environment variables, and is
// validated before use.
//
// # Configuration File
//
// The file path comes from the --config flag or the PDFMERGE_CONFIG
// environment variable. Files ending in .toml are parsed as TOML; anything
// else is parsed as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	bot:
//	  token: "${TELEGRAM_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Environment Overrides
//
// These variables win over the file:
//
//	TOKEN                bot.token
//	RENDER_EXTERNAL_URL  bot.base_url
//	PORT                 server.http_addr (as 0.0.0.0:PORT)
//	PDFMERGE_DB_PATH     storage.database_path
//	PDFMERGE_TEMP_DIR    storage.temp_dir
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	limits:
//	  download_timeout: "60s"
//	  merge_timeout: "2m"
//
// # Example Configuration
//
//	bot:
//	  token: "${TOKEN}"
//	  base_url: "https://pdfmerge.onrender.com"
//	  drop_pending_updates: true
//
//	server:
//	  http_addr: "0.0.0.0:5000"
//
//	storage:
//	  temp_dir: "/var/lib/pdfmerge/tmp"
//	  database_path: "/var/lib/pdfmerge/pdfmerge.db"
//
//	limits:
//	  max_attachments: 99
//	  max_attachment_bytes: 20971520
//	  max_session_bytes: 524288000
//	  max_concurrent_downloads: 8
//	  download_timeout: "60s"
//	  merge_timeout: "2m"
//
//	matrix:
//	  enabled: true
//	  homeserver: "https://matrix.org"
//	  user_id: "@pdfmerge:matrix.org"
//	  access_token: "${MATRIX_TOKEN}"
//
//	auth:
//	  jwt_secret: "${PDFMERGE_JWT_SECRET}"
//
//	logging:
//	  level: "info"
//	  format: "json"
package config
