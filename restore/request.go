// Package restore defines the domain types shared by producers and
// consumers of restore requests: the request entity, its status
// enumeration, and the status-location URI that encodes a request's
// storage address.
package restore

import "encoding/json"

// Status is the lifecycle state of a restore request.
type Status string

const (
	// StatusAccepted marks a request that has been recorded but not yet
	// picked up by a consumer. It is the only status the store's dequeue
	// scan matches.
	StatusAccepted Status = "ACCEPTED"

	// StatusClaimed marks a request a consumer has taken exclusive
	// ownership of via the claim step. A claimed request no longer
	// matches the dequeue scan.
	StatusClaimed Status = "CLAIMED"

	// StatusInProgress marks a request whose restore is running.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusCompleted marks a successfully finished restore.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed marks a restore that terminated with an error.
	StatusFailed Status = "FAILED"
)

// Request represents one restore operation's request and current status.
//
// Payload carries every caller-defined field verbatim; the store never
// inspects it. The full Request, payload included, is serialized as the
// stored record's body, so a round trip through the store preserves it
// exactly.
type Request struct {
	Status            Status          `json:"status"`
	StatusLocationURI string          `json:"statusLocationUri,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// Keys parses the request's StatusLocationURI into the (partition key,
// row key) pair it encodes. It returns [ErrMalformedLocator] if the URI
// does not contain at least two path segments.
func (r *Request) Keys() (partitionKey, rowKey string, err error) {
	return ParseLocator(r.StatusLocationURI)
}
