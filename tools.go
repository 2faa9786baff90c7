//go:build tools
// +build tools

// Package tools tracks the code generators run by go generate (mockgen) in go.mod.
package hirechat

import (
	_ "go.uber.org/mock/mockgen"
)
