// Package query is a request-deduplicating, invalidatable read cache with
// mutations that keep the cache in sync with the server.
package query

import "strings"

// Key identifies one cache entry. Two keys are the same entry when both fields match.
type Key struct {
	Family string
	ID     string
}

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "@", "%40")

// String renders the key for registries and second-tier storage as "family" or
// "family:id". Both parts are escaped, so distinct keys never render alike.
func (k Key) String() string {
	if k.ID == "" {
		return keyEscaper.Replace(k.Family)
	}
	return keyEscaper.Replace(k.Family) + ":" + keyEscaper.Replace(k.ID)
}

// Status is the phase of a query or mutation.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "idle"
	}
}

// MarshalText lets Status render as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
