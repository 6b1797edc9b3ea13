package cachemdw

import (
	"bytes"
	"encoding/json"

	"github.com/kava-labs/evm-rpc-middleware/decode"
)

// GetFingerprint returns the identity of a request, the method and its params
// in canonical json. skipBlockTag leaves the block tag param out of the params.
// Returns false for requests which are never cached.
func GetFingerprint(req *decode.EVMRPCRequestEnvelope, skipBlockTag bool) (string, bool) {
	if req == nil || decode.Classify(req.Method) == decode.CacheCategoryNever {
		return "", false
	}

	params := req.Params
	if skipBlockTag {
		params = req.ParamsWithoutBlockTag()
	}

	serializedParams, err := canonicalJSON(params)
	if err != nil {
		return "", false
	}

	return req.Method + ":" + serializedParams, true
}

// canonicalJSON encodes params with object keys sorted at every level
func canonicalJSON(params []interface{}) (string, error) {
	if params == nil {
		params = []interface{}{}
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	// a generic round trip turns every object into a map, which encoding/json writes sorted.
	// Numbers are kept as their literal text so large integers stay distinct.
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()

	var generic interface{}
	if err := decoder.Decode(&generic); err != nil {
		return "", err
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}

	return string(canonical), nil
}
