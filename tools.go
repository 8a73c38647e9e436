//go:build tools
// +build tools

// Package tools pins Go-based tools invoked through go generate (mockgen) so
// they are tracked in go.mod.
package chatsync

import (
	_ "go.uber.org/mock/mockgen"
)
