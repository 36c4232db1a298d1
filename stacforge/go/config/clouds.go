package config

import (
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"

	"go.stacforge.org/infra/go/sferr"
)

const CloudEnvVar = "AZURE_CLOUD"

// Cloud describes one Azure cloud environment: its SDK configuration plus
// the endpoints and token scopes the SDK configuration does not carry.
type Cloud struct {
	Name string

	// Configuration is passed to Azure SDK clients so they target the right
	// authority and audiences.
	Configuration cloud.Configuration

	// StorageSuffix is the blob and table endpoint suffix.
	StorageSuffix string

	// StorageScope is the token scope for storage data-plane access.
	StorageScope string

	// GeocatalogScope is the token scope for the catalog API. Empty in
	// clouds where the catalog service is not available.
	GeocatalogScope string
}

var clouds = map[string]Cloud{
	"AzureCloud": {
		Name:            "AzureCloud",
		Configuration:   cloud.AzurePublic,
		StorageSuffix:   "core.windows.net",
		StorageScope:    "https://storage.azure.com/.default",
		GeocatalogScope: "https://geocatalog.spatio.azure.com/.default",
	},
	"AzureUSGovernment": {
		Name:          "AzureUSGovernment",
		Configuration: cloud.AzureGovernment,
		StorageSuffix: "core.usgovcloudapi.net",
		StorageScope:  "https://storage.azure.com/.default",
	},
	"AzureChinaCloud": {
		Name:          "AzureChinaCloud",
		Configuration: cloud.AzureChina,
		StorageSuffix: "core.chinacloudapi.cn",
		StorageScope:  "https://storage.azure.com/.default",
	},
}

// GetCloud returns the configuration of the named cloud, or of the cloud
// selected by the AZURE_CLOUD environment variable when name is empty. The
// default is the public cloud.
func GetCloud(name string) (Cloud, error) {
	if name == "" {
		name = os.Getenv(CloudEnvVar)
	}
	if name == "" {
		name = "AzureCloud"
	}
	c, ok := clouds[name]
	if !ok {
		return Cloud{}, sferr.Fmt("cloud %s is not supported", name)
	}
	return c, nil
}
