//go:build !linux

package main

func isTerminalFd(fd uintptr) bool { return false }
