package loader

import "fmt"

type locationKind int

const (
	locationUnknown locationKind = iota
	locationPath
	locationBucket
)

// Location identifies where a Source last read an Element from, for
// inclusion in an Error's context. It wraps either a filesystem path, a
// bucket/key pair (BoltSource), or nothing at all.
type Location struct {
	kind   locationKind
	path   string
	bucket string
	key    string
}

// UnknownLocation is returned by sources that have not yet produced an
// Element, or that have no natural notion of location (Merged before its
// one call to Next).
func UnknownLocation() Location {
	return Location{kind: locationUnknown}
}

// PathLocation wraps a filesystem path.
func PathLocation(path string) Location {
	return Location{kind: locationPath, path: path}
}

// BucketLocation wraps a bbolt bucket/key pair.
func BucketLocation(bucket, key string) Location {
	return Location{kind: locationBucket, bucket: bucket, key: key}
}

func (l Location) String() string {
	switch l.kind {
	case locationPath:
		return l.path
	case locationBucket:
		return fmt.Sprintf("%s/%s", l.bucket, l.key)
	default:
		return "unknown"
	}
}
