// Package cache stores serialized prediction results keyed by feature vector.
// A cache is an optimization only: callers treat every error as a miss.
package cache

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"

	"hemocheck/internal/features"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// keySpace namespaces the name-based UUIDs derived from feature vectors.
var keySpace = uuid.MustParse("6f1c2b8e-3d4a-5e6f-8a9b-0c1d2e3f4a5b")

// Key derives a stable cache key from the model namespace and a feature
// vector. Equal namespaces and vectors, bit for bit, map to the same key;
// results from different models never share one.
func Key(namespace string, v features.Vector) string {
	buf := make([]byte, 0, len(namespace)+1+8*features.NumFeatures)
	buf = append(buf, namespace...)
	buf = append(buf, 0)
	for _, x := range v {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	}
	return "pred:" + uuid.NewSHA1(keySpace, buf).String()
}
