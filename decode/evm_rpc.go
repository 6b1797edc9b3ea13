package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	cosmosmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// These block tags are special strings used to reference blocks in JSON-RPC
// see https://ethereum.org/en/developers/docs/apis/json-rpc/#default-block
const (
	BlockTagLatest    = "latest"
	BlockTagPending   = "pending"
	BlockTagEarliest  = "earliest"
	BlockTagFinalized = "finalized"
	BlockTagSafe      = "safe"
	// "empty" is not an eth api tag, it is our encoding for requests made with a nil
	// or omitted block tag param. Clients interpret it as "latest".
	BlockTagEmpty = "empty"
)

// Errors that might result from decoding parts or the whole of
// an EVM RPC request
var (
	ErrInvalidEthAPIRequest = errors.New("request is not valid for the eth api")
	ErrInvalidBlockTag      = errors.New("invalid block tag")
)

// CacheCategory describes how long the result of a method stays valid.
type CacheCategory string

const (
	// CacheCategoryPerma results never change once observed (e.g. a mined transaction).
	CacheCategoryPerma CacheCategory = "perma"
	// CacheCategoryFork results are valid until a reorg replaces the block.
	CacheCategoryFork CacheCategory = "fork"
	// CacheCategoryBlock results are valid only for the block they were read at.
	CacheCategoryBlock CacheCategory = "block"
	// CacheCategoryNever results are never cached.
	CacheCategoryNever CacheCategory = "never"
)

// Mapping of evm method names to how long their results can be cached
var methodNameToCacheCategory = map[string]CacheCategory{
	"web3_clientVersion":                    CacheCategoryPerma,
	"web3_sha3":                             CacheCategoryPerma,
	"eth_protocolVersion":                   CacheCategoryPerma,
	"eth_getBlockTransactionCountByHash":    CacheCategoryPerma,
	"eth_getUncleCountByBlockHash":          CacheCategoryPerma,
	"eth_getCode":                           CacheCategoryPerma,
	"eth_getBlockByHash":                    CacheCategoryPerma,
	"eth_getTransactionByHash":              CacheCategoryPerma,
	"eth_getTransactionByBlockHashAndIndex": CacheCategoryPerma,
	"eth_getTransactionReceipt":             CacheCategoryPerma,
	"eth_getUncleByBlockHashAndIndex":       CacheCategoryPerma,
	"eth_getCompilers":                      CacheCategoryPerma,
	"eth_compileLLL":                        CacheCategoryPerma,
	"eth_compileSolidity":                   CacheCategoryPerma,
	"eth_compileSerpent":                    CacheCategoryPerma,
	"shh_version":                           CacheCategoryPerma,
	"test_permaCache":                       CacheCategoryPerma,

	"eth_getBlockByNumber":                    CacheCategoryFork,
	"eth_getBlockTransactionCountByNumber":    CacheCategoryFork,
	"eth_getUncleCountByBlockNumber":          CacheCategoryFork,
	"eth_getTransactionByBlockNumberAndIndex": CacheCategoryFork,
	"eth_getUncleByBlockNumberAndIndex":       CacheCategoryFork,
	"test_forkCache":                          CacheCategoryFork,

	"eth_gasPrice":            CacheCategoryBlock,
	"eth_blockNumber":         CacheCategoryBlock,
	"eth_getBalance":          CacheCategoryBlock,
	"eth_getStorageAt":        CacheCategoryBlock,
	"eth_getTransactionCount": CacheCategoryBlock,
	"eth_call":                CacheCategoryBlock,
	"eth_estimateGas":         CacheCategoryBlock,
	"eth_getFilterLogs":       CacheCategoryBlock,
	"eth_getLogs":             CacheCategoryBlock,
	"test_blockCache":         CacheCategoryBlock,
}

// Mapping of the position of the block tag param for a given method name
var MethodNameToBlockTagParamIndex = map[string]int{
	"eth_getStorageAt":        2,
	"eth_getBalance":          1,
	"eth_getCode":             1,
	"eth_getTransactionCount": 1,
	"eth_call":                1,
	"eth_getBlockByNumber":    0,
}

// Classify returns the cache category of a method, unknown methods are never cached.
func Classify(method string) CacheCategory {
	category, exists := methodNameToCacheCategory[method]
	if !exists {
		return CacheCategoryNever
	}

	return category
}

// BlockTagParamIndex returns the index of the block tag param for
// a method and false if the method does not take one.
func BlockTagParamIndex(method string) (int, bool) {
	index, exists := MethodNameToBlockTagParamIndex[method]
	return index, exists
}

// IsSymbolicBlockTag returns true for the named block tags of the eth api
// and for our "empty" encoding.
func IsSymbolicBlockTag(tag string) bool {
	switch tag {
	case BlockTagLatest, BlockTagPending, BlockTagEarliest, BlockTagFinalized, BlockTagSafe, BlockTagEmpty:
		return true
	default:
		return false
	}
}

// EVMRPCRequestEnvelope wraps expected values present in a request
// to the RPC endpoint for an EVM node API
// https://ethereum.org/en/developers/docs/apis/json-rpc/
type EVMRPCRequestEnvelope struct {
	// version of the RPC spec being used
	// https://www.jsonrpc.org/specification
	JSONRPCVersion string        `json:"jsonrpc"`
	ID             interface{}   `json:"id"`
	Method         string        `json:"method"`
	Params         []interface{} `json:"params"`
	// SkipCache bypasses the block cache and the in-flight cache
	SkipCache bool `json:"skipCache,omitempty"`
	// Origin is the domain the request originated from, forwarded upstream as a header
	Origin string `json:"origin,omitempty"`
}

// DecodeEVMRPCRequest attempts to decode the provided bytes into
// an EVMRPCRequestEnvelope, returning the decoded request and error (if any)
func DecodeEVMRPCRequest(body []byte) (*EVMRPCRequestEnvelope, error) {
	var request EVMRPCRequestEnvelope
	err := json.Unmarshal(body, &request)
	return &request, err
}

// DecodeEVMRPCRequestList attempts to decode the provided bytes into a batch of requests
func DecodeEVMRPCRequestList(body []byte) ([]*EVMRPCRequestEnvelope, error) {
	var request []*EVMRPCRequestEnvelope
	err := json.Unmarshal(body, &request)
	return request, err
}

// IsBatch reports whether a raw request body is a JSON array.
func IsBatch(body []byte) bool {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	return strings.HasPrefix(trimmed, "[")
}

// HasBlockTagParam checks if the request method accepts a block tag param
func (r *EVMRPCRequestEnvelope) HasBlockTagParam() bool {
	_, exists := BlockTagParamIndex(r.Method)
	return exists
}

// BlockTag returns the block tag param of the request.
// BlockTagEmpty is returned when the method takes no block tag
// or the param was omitted or null.
func (r *EVMRPCRequestEnvelope) BlockTag() (string, error) {
	index, exists := BlockTagParamIndex(r.Method)
	if !exists || index >= len(r.Params) || r.Params[index] == nil {
		return BlockTagEmpty, nil
	}

	tag, isString := r.Params[index].(string)
	if !isString {
		return "", fmt.Errorf("%w: param %+v at index %d is not a string", ErrInvalidBlockTag, r.Params[index], index)
	}

	return tag, nil
}

// SetBlockTag writes tag into the block tag param, growing params with nulls
// if the param was omitted. It is a no-op for methods without a block tag.
func (r *EVMRPCRequestEnvelope) SetBlockTag(tag string) {
	index, exists := BlockTagParamIndex(r.Method)
	if !exists {
		return
	}

	for len(r.Params) <= index {
		r.Params = append(r.Params, nil)
	}

	r.Params[index] = tag
}

// ParamsWithoutBlockTag returns the params of the request with the block tag removed.
// eth_getBlockByNumber keeps its trailing "include transactions" flag.
func (r *EVMRPCRequestEnvelope) ParamsWithoutBlockTag() []interface{} {
	index, exists := BlockTagParamIndex(r.Method)
	// block tag param not passed
	if !exists || index >= len(r.Params) {
		return r.Params
	}

	if r.Method == "eth_getBlockByNumber" {
		return r.Params[1:]
	}

	return r.Params[:index]
}

// Clone returns a deep copy of the request
func (r *EVMRPCRequestEnvelope) Clone() *EVMRPCRequestEnvelope {
	clone := *r
	if r.Params != nil {
		clone.Params = cloneValue(r.Params).([]interface{})
	}

	return &clone
}

func cloneValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, item := range typed {
			out[k] = cloneValue(item)
		}
		return out
	case json.RawMessage:
		return append(json.RawMessage(nil), typed...)
	default:
		return v
	}
}

// ParseBlockNumber parses a 0x prefixed hex block number
func ParseBlockNumber(tag string) (uint64, error) {
	if !strings.HasPrefix(tag, "0x") && !strings.HasPrefix(tag, "0X") {
		return 0, fmt.Errorf("%w: %q is not hex encoded", ErrInvalidBlockTag, tag)
	}

	number, valid := cosmosmath.NewIntFromString(tag)
	if !valid || !number.IsUint64() {
		return 0, fmt.Errorf("%w: unable to parse %q to a block number", ErrInvalidBlockTag, tag)
	}

	return number.Uint64(), nil
}

// EncodeBlockNumber hex encodes a block number
func EncodeBlockNumber(number uint64) string {
	return hexutil.EncodeUint64(number)
}
