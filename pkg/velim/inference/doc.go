// Package inference defines the engine-independent query API: requests,
// elimination order specifications, results and a concurrent batch runner.
//
// Engines live in subpackages: ve (variable elimination) and enumerate
// (summing the full joint, used as a reference).
package inference
