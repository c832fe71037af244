// Package sandbox cross-checks the rv32 interpreter against Unicorn's
// RISC-V CPU. It needs cgo and libunicorn, so everything but this file is
// built only with the "unicorn" tag:
//
//	go test -tags unicorn ./rv32/sandbox/
package sandbox
