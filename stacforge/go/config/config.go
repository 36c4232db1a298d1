// Package config reads the process configuration from the environment and
// selects the Azure cloud the process talks to.
package config

import (
	"os"
	"strconv"

	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog/sflogimpl"
)

const (
	// Environment variables.
	DataStorageAccountEnvVar = "DATA_STORAGE_ACCOUNT"
	// HostStorageAccountEnvVar is the storage account of the hosting
	// platform, used as a fallback for the data account.
	HostStorageAccountEnvVar = "AzureWebJobsStorage__accountName"
	DataContainerEnvVar      = "DATA_CONTAINER"
	LogsStorageAccountEnvVar = "LOGS_STORAGE_ACCOUNT"
	LogsTableEnvVar          = "LOGS_TABLE"
	TableLogsLevelEnvVar     = "STORAGE_TABLE_LOGS_LEVEL"
	GeocatalogURLEnvVar      = "GEOCATALOG_URL"
	MinSASExpirationEnvVar   = "MIN_SAS_TOKEN_EXPIRATION_HOURS"
	DefaultSASExpirationVar  = "DEFAULT_SAS_TOKEN_EXPIRATION_HOURS"

	DefaultDataContainer      = "collections"
	DefaultLogsTable          = "logs"
	DefaultMinSASExpiration   = 12
	DefaultSASTokenExpiration = 24
)

// DataStorageAccount returns the storage account where collections are
// written. Falls back to the host platform's account when no dedicated data
// account is configured.
func DataStorageAccount() (string, error) {
	if account := os.Getenv(DataStorageAccountEnvVar); account != "" {
		return account, nil
	}
	if account := os.Getenv(HostStorageAccountEnvVar); account != "" {
		return account, nil
	}
	return "", sferr.Fmt("no storage account configured; set %s", DataStorageAccountEnvVar)
}

// DataContainer returns the container where collections are written.
func DataContainer() string {
	if container := os.Getenv(DataContainerEnvVar); container != "" {
		return container
	}
	return DefaultDataContainer
}

// LogsStorageAccount returns the storage account used for log shipping, empty
// when table logging is disabled.
func LogsStorageAccount() string {
	return os.Getenv(LogsStorageAccountEnvVar)
}

// LogsTable returns the table name used for log shipping.
func LogsTable() string {
	if table := os.Getenv(LogsTableEnvVar); table != "" {
		return table
	}
	return DefaultLogsTable
}

// TableLogsLevel returns the minimum severity shipped to table storage.
func TableLogsLevel() sflogimpl.Severity {
	return sflogimpl.SeverityFromString(os.Getenv(TableLogsLevelEnvVar))
}

// GeocatalogURL returns the base URL of the catalog collections are ingested
// into.
func GeocatalogURL() (string, error) {
	if u := os.Getenv(GeocatalogURLEnvVar); u != "" {
		return u, nil
	}
	return "", sferr.Fmt("no catalog configured; set %s", GeocatalogURLEnvVar)
}

// MinSASTokenExpirationHours is the remaining credential lifetime below which
// an ingestion source is refreshed.
func MinSASTokenExpirationHours() int {
	return intEnv(MinSASExpirationEnvVar, DefaultMinSASExpiration)
}

// DefaultSASTokenExpirationHours is the lifetime of newly minted credentials.
func DefaultSASTokenExpirationHours() int {
	return intEnv(DefaultSASExpirationVar, DefaultSASTokenExpiration)
}

func intEnv(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
