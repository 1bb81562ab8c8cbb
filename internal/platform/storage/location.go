package storage

import (
	"fmt"
	"strings"
)

// Location addresses a single Cloud Storage object.
type Location struct {
	Bucket string
	Object string
}

// String renders the location as a gs:// URI.
func (l Location) String() string {
	return "gs://" + l.Bucket + "/" + l.Object
}

// ParseURI parses gs://bucket/path/to/object.
func ParseURI(uri string) (Location, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "gs://")
	if !ok {
		return Location{}, fmt.Errorf("storage: %q is not a gs:// uri", uri)
	}
	bucket, object, _ := strings.Cut(rest, "/")
	if err := validateBucket(bucket); err != nil {
		return Location{}, err
	}
	if err := validateObject(object); err != nil {
		return Location{}, err
	}
	return Location{Bucket: bucket, Object: object}, nil
}

func validateBucket(bucket string) error {
	if bucket == "" {
		return fmt.Errorf("storage: bucket is required")
	}
	if strings.ContainsAny(bucket, "\\ ") {
		return fmt.Errorf("storage: bucket %q contains invalid characters", bucket)
	}
	return nil
}

func validateObject(object string) error {
	if strings.TrimSpace(object) == "" {
		return fmt.Errorf("storage: object name is required")
	}
	if strings.HasSuffix(object, "/") {
		return fmt.Errorf("storage: object %q names a folder", object)
	}
	for _, segment := range strings.Split(object, "/") {
		if segment == ".." {
			return fmt.Errorf("storage: object %q contains a traversal segment", object)
		}
	}
	return nil
}
