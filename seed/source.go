package seed

import (
	"fmt"
	"math/rand"
)

// Source identifies where a resolved seed came from.
type Source int

const (
	SourceUnspecified Source = iota
	SourceEnvironment
	SourceConfig
	SourceStored
	SourceGenerated
)

func (s Source) String() string {
	switch s {
	case SourceUnspecified:
		return "unspecified"
	case SourceEnvironment:
		return "environment"
	case SourceConfig:
		return "config"
	case SourceStored:
		return "stored"
	case SourceGenerated:
		return "generated"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of seed resolution for one run.
type Resolution struct {
	Seed   int64
	Source Source
	// Descriptor is the human-readable line naming the source.
	Descriptor string
}

// String renders the resolution as "<descriptor>: <seed>".
func (r Resolution) String() string {
	return fmt.Sprintf("%s: %d", r.Descriptor, r.Seed)
}

// Rand returns a new generator seeded with the resolved seed. Each call
// starts a fresh, identical sequence.
func (r Resolution) Rand() *rand.Rand {
	return rand.New(rand.NewSource(r.Seed))
}

func describe(source Source, location string) string {
	switch source {
	case SourceEnvironment:
		return "Loaded seed from environment variable " + EnvKey
	case SourceConfig:
		return "Loaded seed from config"
	case SourceStored:
		return "Loaded last stored seed from " + location
	case SourceGenerated:
		return "Generated new seed"
	default:
		return "Unknown seed source"
	}
}
