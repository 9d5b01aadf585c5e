// Package config holds the network client's tuning knobs (spec §6) and
// the cobra/viper/godotenv wiring that fills them in from flags, env
// vars and .env files.
package config
