package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/Faultbox/mmdvr/internal/engine/pipeline"
)

// glContextLost is GL_CONTEXT_LOST, reported by robust contexts after a
// GPU reset.
const glContextLost = 0x0507

// maxErrors bounds how many queued error flags are drained at once.
const maxErrors = 16

// glError maps a GL error code to a typed device error.
func glError(op string, code uint32) error {
	switch code {
	case gl.NO_ERROR:
		return nil
	case gl.OUT_OF_MEMORY:
		return &pipeline.DeviceError{Op: op, Err: pipeline.ErrOutOfMemory}
	case glContextLost:
		return &pipeline.DeviceError{Op: op, Err: pipeline.ErrDeviceLost}
	default:
		return &pipeline.DeviceError{Op: op, Err: fmt.Errorf("GL error 0x%04X", code)}
	}
}

// worstError picks the error to report from a set of drained codes.
// Context loss outranks out of memory, which outranks any other code.
func worstError(op string, codes []uint32) error {
	for _, want := range []uint32{glContextLost, gl.OUT_OF_MEMORY} {
		for _, c := range codes {
			if c == want {
				return glError(op, c)
			}
		}
	}
	for _, c := range codes {
		if err := glError(op, c); err != nil {
			return err
		}
	}
	return nil
}

// checkError drains the GL error flags set since the last check.
func checkError(op string) error {
	var codes []uint32
	for range maxErrors {
		code := gl.GetError()
		if code == gl.NO_ERROR {
			break
		}
		codes = append(codes, code)
	}
	return worstError(op, codes)
}
