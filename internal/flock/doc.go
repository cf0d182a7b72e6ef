// Package flock provides cross-platform file locking utilities.
//
// The state and timeline stores use these locks to guard their durable files
// against a second dilagent process writing the same working root. They provide
// exclusive, non-blocking file locks that work on both Unix and Windows systems.
//
// Usage:
//
//	file, _ := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
//	if err := flock.Exclusive(file.Fd()); err != nil {
//	    // Lock not acquired - file is in use
//	}
//	defer flock.Unlock(file.Fd())
package flock
