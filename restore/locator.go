package restore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedLocator is returned when a status-location URI does not
// contain at least two path segments and therefore cannot be resolved to
// a (partition key, row key) pair.
var ErrMalformedLocator = errors.New("malformed status location URI")

// BuildLocator joins a base URI with the partition and row key to form a
// status-location URI. The last path segment is the row key, the
// second-to-last the partition key.
func BuildLocator(base, partitionKey, rowKey string) string {
	return strings.TrimRight(base, "/") + "/" + partitionKey + "/" + rowKey
}

// ParseLocator extracts the (partition key, row key) pair from a
// status-location URI. The row key is the final path segment, the
// partition key the one before it. Returns [ErrMalformedLocator] if the
// URI cannot be parsed or has fewer than two path segments.
func ParseLocator(uri string) (partitionKey, rowKey string, err error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrMalformedLocator, uri)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 {
		return "", "", fmt.Errorf("%w: %s", ErrMalformedLocator, uri)
	}

	partitionKey = segments[len(segments)-2]
	rowKey = segments[len(segments)-1]

	if partitionKey == "" || rowKey == "" {
		return "", "", fmt.Errorf("%w: %s", ErrMalformedLocator, uri)
	}

	return partitionKey, rowKey, nil
}
