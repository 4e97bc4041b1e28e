package memory

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Bucket names used by the snapshot stores' state table.
const (
	BucketVariants  = "variants"
	BucketRelations = "relations"
	BucketRevisions = "revisions"
	BucketSequences = "sequences"
)

// Buckets lists every persisted bucket in write order.
var Buckets = []string{BucketVariants, BucketRelations, BucketRevisions, BucketSequences}

// EncodeBucket marshals the named part of the snapshot.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	var v any
	switch bucket {
	case BucketVariants:
		v = s.Variants
	case BucketRelations:
		v = s.Relations
	case BucketRevisions:
		v = s.Revisions
	case BucketSequences:
		v = s.Sequences
	default:
		return nil, errors.Newf("unknown bucket %q", bucket)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", bucket)
	}
	return data, nil
}

// DecodeBucket unmarshals payload into the named part of the snapshot.
// Unknown buckets are ignored so older databases keep loading.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketVariants:
		target = &s.Variants
	case BucketRelations:
		target = &s.Relations
	case BucketRevisions:
		target = &s.Revisions
	case BucketSequences:
		target = &s.Sequences
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return errors.Wrapf(err, "decode %s", bucket)
	}
	return nil
}
