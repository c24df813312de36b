package metadata

import (
	"context"
	"encoding/json"
)

// QueryStatus classifies the outcome of one metadata source query
type QueryStatus string

const (
	StatusSuccess      QueryStatus = "success"       // complete data found
	StatusPartialData  QueryStatus = "partial_data"  // some data found but incomplete
	StatusNotFound     QueryStatus = "not_found"     // definitively absent from the source
	StatusServiceError QueryStatus = "service_error" // temporary failure, retry later
)

// QueryResult is the outcome of one source query
type QueryResult struct {
	Status       QueryStatus
	Aircraft     *AircraftRecord
	RawPayload   json.RawMessage
	ErrorMessage string
}

// Success creates a result carrying complete aircraft data
func Success(aircraft *AircraftRecord, raw json.RawMessage) QueryResult {
	return QueryResult{Status: StatusSuccess, Aircraft: aircraft, RawPayload: raw}
}

// Partial creates a result carrying incomplete aircraft data
func Partial(aircraft *AircraftRecord, raw json.RawMessage) QueryResult {
	return QueryResult{Status: StatusPartialData, Aircraft: aircraft, RawPayload: raw}
}

// NotFound creates a result for an address the source definitively lacks
func NotFound() QueryResult {
	return QueryResult{Status: StatusNotFound}
}

// ServiceError creates a result for a temporary failure
func ServiceError(message string) QueryResult {
	return QueryResult{Status: StatusServiceError, ErrorMessage: message}
}

// IsSuccess reports whether the query produced any aircraft data
func (r QueryResult) IsSuccess() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartialData
}

// IsRetriable reports whether the failure is temporary
func (r QueryResult) IsRetriable() bool {
	return r.Status == StatusServiceError
}

// IsPermanentFailure reports whether the address should not be retried
func (r QueryResult) IsPermanentFailure() bool {
	return r.Status == StatusNotFound
}

// Source is a queryable aircraft metadata database
type Source interface {
	// Name returns a human-readable name for this source
	Name() string

	// Accept reports whether this source can handle the given Mode-S address
	Accept(modesAddress string) bool

	// QueryWithStatus looks up metadata for the given Mode-S hex address,
	// classifying the outcome so callers can distinguish a definitive miss
	// from a temporary failure.
	QueryWithStatus(ctx context.Context, modesAddress string) QueryResult
}
