// Package ports defines the interfaces that infrastructure adapters implement,
// so services can be tested against mocks.
package ports
