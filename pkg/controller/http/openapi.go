package http

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed openapi.yaml
var openapiSpec []byte

// loadOpenAPIDoc parses and validates the bundled API document.
func loadOpenAPIDoc(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load OpenAPI document")
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, goerr.Wrap(err, "invalid OpenAPI document")
	}
	return doc, nil
}

// handleOpenAPI serves the API document
func handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiSpec)
}
