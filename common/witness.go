package common

import "github.com/nspcc-dev/neo-go/pkg/interop/runtime"

// ErrWitnessFailed appears when the method must be called
// using certain account but was not.
const ErrWitnessFailed = "witness check failed"

// CheckWitness checks witness of the passed caller.
// It panics with ErrWitnessFailed message on fail.
func CheckWitness(caller []byte) {
	if !runtime.CheckWitness(caller) {
		panic(ErrWitnessFailed)
	}
}
