package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kava-labs/evm-rpc-middleware/decode"
	"github.com/kava-labs/evm-rpc-middleware/engine"
	"github.com/kava-labs/evm-rpc-middleware/service/batchmdw"
)

// createRPCHandler creates the handler answering single and batch
// json-rpc requests through the pipeline
func createRPCHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}

		origin := r.Header.Get("Origin")

		if decode.IsBatch(rawBody) {
			serveBatch(service, w, r, rawBody, origin)
			return
		}

		req, err := decode.DecodeEVMRPCRequest(rawBody)
		if err != nil {
			service.Debug().Err(err).Msg("error parsing request body")
			writeRPCResponse(service, w, parseErrorResponse(err))
			return
		}
		setOrigin(req, origin)

		ctx, info := engine.WithRequestInfo(r.Context())

		res := service.Pipeline.Handle(ctx, req)

		cacheStatus := batchmdw.CacheMissHeaderValue
		if info.CacheHit() {
			cacheStatus = batchmdw.CacheHitHeaderValue
		}
		w.Header().Set(batchmdw.CacheHeaderKey, cacheStatus)

		writeRPCResponse(service, w, res)
	}
}

func serveBatch(service *ProxyService, w http.ResponseWriter, r *http.Request, rawBody []byte, origin string) {
	reqs, err := decode.DecodeEVMRPCRequestList(rawBody)
	if err != nil {
		service.Debug().Err(err).Msg("error parsing batch request body")
		writeRPCResponse(service, w, parseErrorResponse(err))
		return
	}

	if len(reqs) == 0 {
		writeRPCResponse(service, w, &decode.JsonRpcResponse{
			Version:      "2.0",
			JsonRpcError: decode.NewJsonRpcError(decode.ErrorCodeInvalidRequest, "empty batch", nil),
		})
		return
	}

	for _, req := range reqs {
		if req != nil {
			setOrigin(req, origin)
		}
	}

	result := service.BatchProcessor.Process(r.Context(), reqs)

	w.Header().Set(batchmdw.CacheHeaderKey, result.CacheStatus)

	writeRPCResponse(service, w, result.Responses)
}

// setOrigin falls back to the http origin when the request names none
func setOrigin(req *decode.EVMRPCRequestEnvelope, origin string) {
	if req.Origin == "" {
		req.Origin = origin
	}
}

func parseErrorResponse(err error) *decode.JsonRpcResponse {
	return &decode.JsonRpcResponse{
		Version:      "2.0",
		JsonRpcError: decode.NewJsonRpcError(decode.ErrorCodeParseError, fmt.Sprintf("parse error: %s", err), nil),
	}
}

func writeRPCResponse(service *ProxyService, w http.ResponseWriter, response interface{}) {
	if err := MarshalJSONResponse(response, w); err != nil {
		service.Error().Err(err).Msg("error encoding response")
	}
}

// createHealthcheckHandler creates a health check handler function that
// will respond 200 ok if the service is able to connect to
// it's dependencies and functioning as expected
func createHealthcheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var combinedErrors error

		service.Debug().Msg("/healthcheck called")

		// check that the database is reachable
		if err := service.Clients.Database.HealthCheck(); err != nil {
			service.Error().Err(err).Msg("database healthcheck failed")

			combinedErrors = errors.Join(combinedErrors, fmt.Errorf("service unable to connect to database: %v", err))
		}

		if service.Pipeline.Cache != nil {
			// check that the cache is reachable
			if err := service.Pipeline.Cache.Healthcheck(r.Context()); err != nil {
				service.Error().Err(err).Msg("cache healthcheck failed")

				combinedErrors = errors.Join(combinedErrors, fmt.Errorf("service unable to connect to cache: %v", err))
			}
		}

		if _, known := service.Clients.Tracker.CurrentBlock(); !known {
			combinedErrors = errors.Join(combinedErrors, errors.New("block tracker has not seen a block yet"))
		}

		if combinedErrors != nil {
			w.WriteHeader(http.StatusInternalServerError)

			w.Write([]byte(combinedErrors.Error()))

			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("service is healthy"))
	}
}

// createServicecheckHandler creates a service check handler function that
// will respond 200 ok if the service is running
func createServicecheckHandler(service *ProxyService) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		service.Debug().Msg("/servicecheck called")

		w.WriteHeader(http.StatusOK)

		w.Write([]byte("service is in service"))
	}
}

// MarshalJSONResponse marshals an interface into the response body and sets JSON content type headers
func MarshalJSONResponse(obj interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		return err
	}
	return nil
}
