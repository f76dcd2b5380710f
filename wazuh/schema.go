package wazuh

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// envelopeSchema is the contract the _search response must satisfy
// before any mapping happens. It pins down exactly what the sync path
// depends on: a hits object carrying a hit list whose entries have a
// string _id. Everything inside _source stays optional; the mapper
// applies defaults there.
const envelopeSchema = `{
	"type": "object",
	"required": ["hits"],
	"properties": {
		"hits": {
			"type": "object",
			"required": ["hits"],
			"properties": {
				"hits": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["_id"],
						"properties": {
							"_id": {"type": "string"},
							"_source": {"type": "object"}
						}
					}
				},
				"total": {
					"type": ["object", "integer"]
				}
			}
		}
	}
}`

var compiledEnvelopeSchema = gojsonschema.NewStringLoader(envelopeSchema)

// validateEnvelope checks the raw response body against the envelope
// schema. Schema violations are parse failures, indistinguishable from
// any other malformed body at the sync boundary.
func validateEnvelope(body []byte) error {
	result, err := gojsonschema.Validate(compiledEnvelopeSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if !result.Valid() {
		first := "unknown violation"
		if errs := result.Errors(); len(errs) > 0 {
			first = errs[0].String()
		}
		return fmt.Errorf("%w: envelope schema violation: %s", ErrParseFailed, first)
	}
	return nil
}
