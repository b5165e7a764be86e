//go:build !linux

package proctitle

func set(string) error { return ErrUnsupported }

func get() (string, error) { return "", ErrUnsupported }
