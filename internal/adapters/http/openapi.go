package http

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	return yamlToJSON(openAPIYAML)
})

// getOpenAPIJSON returns the embedded OpenAPI document as JSON.
func getOpenAPIJSON() ([]byte, error) {
	return openAPIJSON()
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing OpenAPI document: %w", err)
	}
	if _, ok := doc["openapi"]; !ok {
		return nil, errors.New("parsing OpenAPI document: missing openapi version")
	}
	return json.MarshalIndent(stringKeys(doc), "", "  ")
}

// stringKeys converts nested YAML mappings to JSON objects. Non-string
// keys such as unquoted status codes are formatted.
func stringKeys(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			out[key] = stringKeys(value)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			out[fmt.Sprint(key)] = stringKeys(value)
		}
		return out
	case []interface{}:
		for i := range v {
			v[i] = stringKeys(v[i])
		}
		return v
	default:
		return v
	}
}
