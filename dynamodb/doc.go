// Package dynamodb provides a DynamoDB-backed store for restore
// requests, functioning as a simple durable work-queue substrate:
// producers insert request records, a consumer polls for the next
// unprocessed record, and consumers update status as processing
// proceeds.
//
// # Overview
//
// Every restore request is one item keyed by a week bucket (partition
// key, "pk", format "{year}_{week}" from the ISO week date) and a
// generated UUID (sort key, "sk"). The full JSON-encoded request is
// stored in the "body" attribute, with its status mirrored in
// "current_status" so the dequeue scan can filter server-side without
// deserializing bodies. Both attributes are always written together, so
// the status column cannot diverge from the status inside the payload.
//
// The (partition key, row key) pair of a stored request is communicated
// back to callers through the request's status-location URI, whose final
// two path segments carry the pair. [Client.Update] resolves its target
// from that URI.
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB
// table name, and any [Option] values you need:
//
//	client := dynamodb.New(
//	    &awsCfg,
//	    tableName,
//	    dynamodb.WithStatusLocationBase("https://api.example.com/restore/requests"),
//	)
//
// By default, [New] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # Dequeue Semantics
//
// [Client.GetNextPending] scans only the partition of the current week,
// recomputed from the clock at query time. A request not drained within
// the week it was created in becomes unreachable through the dequeue
// path once the wall clock advances to the next week; it remains
// retrievable via [Client.GetDetails]. Only the first response page is
// consulted, there is no ordering guarantee among pending requests, and
// the scan takes no lock: two concurrent consumers may observe the same
// record. [Client.ClaimNextPending] adds the conditional
// ACCEPTED-to-CLAIMED transition for consumers that need exclusive
// ownership.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines.
package dynamodb
