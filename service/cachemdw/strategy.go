package cachemdw

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kava-labs/evm-rpc-middleware/decode"
)

// methods whose result is only final once the transaction is in a block
var methodsRequiringBlockHash = map[string]bool{
	"eth_getTransactionByHash":  true,
	"eth_getTransactionReceipt": true,
}

// CanCacheRequest checks if the result of a request may be cached at all.
// Requests reading from the pending block never are.
func CanCacheRequest(req *decode.EVMRPCRequestEnvelope) bool {
	if req == nil || decode.Classify(req.Method) == decode.CacheCategoryNever {
		return false
	}

	tag, err := req.BlockTag()
	if err != nil {
		return false
	}

	return tag != decode.BlockTagPending
}

// CanCacheResult checks if a result of req may be cached.
// Empty results are not cached, nor are transactions which are not yet mined.
func CanCacheResult(req *decode.EVMRPCRequestEnvelope, result json.RawMessage) bool {
	if decode.IsEmptyResult(result) {
		return false
	}

	if methodsRequiringBlockHash[req.Method] {
		return hasBlockHash(result)
	}

	return true
}

func hasBlockHash(result json.RawMessage) bool {
	var tx struct {
		BlockHash interface{} `json:"blockHash"`
	}
	if err := json.Unmarshal(result, &tx); err != nil {
		return false
	}

	blockHash, ok := tx.BlockHash.(string)
	if !ok || blockHash == "" {
		return false
	}

	return common.HexToHash(blockHash) != (common.Hash{})
}
