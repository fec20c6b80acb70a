package httpapi

import (
	"github.com/masaicai/openresponses/gateway/nativetool"
	"github.com/masaicai/openresponses/gateway/responses"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
)

// buildAccessor projects the request's tool-scoped configuration (currently
// just file_search) into the toolcatalog.ParamsAccessor native tool
// executors read from,
func buildAccessor(fileSearch *responses.FileSearchConfig) toolcatalog.ParamsAccessor {
	params := toolcatalog.StaticParams{}
	if fileSearch != nil {
		params[nativetool.FileSearchConfigKey] = nativetool.FileSearchConfig{
			VectorStoreIDs: fileSearch.VectorStoreIDs,
			MaxNumResults:  fileSearch.MaxNumResults,
		}
	}
	return params
}
