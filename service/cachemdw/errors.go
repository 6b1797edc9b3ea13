package cachemdw

import "errors"

var (
	ErrNilCache               = errors.New("cache middleware requires a block cache")
	ErrRequestIsNotCacheable  = errors.New("request is not cacheable")
	ErrResponseIsNotCacheable = errors.New("response is not cacheable")
)
