// Package iox provides small I/O cleanup helpers.
package iox

import "io"

// DiscardClose closes c, dropping the error. For defer sites where a
// close failure is unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc wraps c.Close for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(srv))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}
