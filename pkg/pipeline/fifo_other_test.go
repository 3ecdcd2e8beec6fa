//go:build !unix

package pipeline

import "testing"

func mkfifo(t *testing.T, path string) {
	t.Skip("named pipes are not supported on this platform")
}
