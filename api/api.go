// Package api embeds the OpenAPI document served at /docs.
package api

import _ "embed"

// OpenAPI is the YAML source of the REST API description.
//
//go:embed openapi.yaml
var OpenAPI []byte
