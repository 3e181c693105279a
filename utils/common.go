package utils

const (
	NODETOL = 1.e-12
)
