package passthrough

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// ErrCalibration is returned for calibration data the undistortion cannot
// use.
var ErrCalibration = errors.New("unusable camera calibration")

// SteamVR exposes both cameras side by side in one frame of this size.
const (
	SteamVRFrameWidth  = 1920
	SteamVRFrameHeight = 960
)

// CameraCalibration is one camera's calibration in frame pixels.
type CameraCalibration struct {
	Name string `yaml:"name"`
	// Offset is the camera image's position inside the frame.
	Offset [2]int     `yaml:"offset"`
	Size   [2]int     `yaml:"size"`
	Focal  [2]float32 `yaml:"focal"`
	Center [2]float32 `yaml:"center"`
	Coeffs Coeffs     `yaml:"coeffs"`

	Position [3]float32 `yaml:"position"`
	Right    [3]float32 `yaml:"right"`
	Back     [3]float32 `yaml:"back"`
}

// Calibration describes a stereo camera whose two images share one frame.
type Calibration struct {
	Serial    string                         `yaml:"serial"`
	FrameSize [2]int                         `yaml:"frame_size"`
	Eyes      [stereo.Eyes]CameraCalibration `yaml:"eyes"`
}

// Validate checks that sizes are positive and values finite.
func (c *Calibration) Validate() error {
	if c.FrameSize[0] <= 0 || c.FrameSize[1] <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrCalibration, c.FrameSize[0], c.FrameSize[1])
	}
	for eye, cam := range c.Eyes {
		if cam.Size[0] <= 0 || cam.Size[1] <= 0 {
			return fmt.Errorf("%w: %s camera size %dx%d", ErrCalibration, eyeName(eye), cam.Size[0], cam.Size[1])
		}
		for _, f := range [...]float32{
			cam.Focal[0], cam.Focal[1], cam.Center[0], cam.Center[1],
			cam.Coeffs[0], cam.Coeffs[1], cam.Coeffs[2], cam.Coeffs[3],
		} {
			if math32.IsNaN(f) || math32.IsInf(f, 0) {
				return fmt.Errorf("%w: %s camera has non-finite intrinsics", ErrCalibration, eyeName(eye))
			}
		}
	}
	return nil
}

// Intrinsics normalizes both cameras to texture space.
func (c *Calibration) Intrinsics() ([stereo.Eyes]Intrinsics, error) {
	var out [stereo.Eyes]Intrinsics
	if err := c.Validate(); err != nil {
		return out, err
	}
	frame := math.Vec2{X: float32(c.FrameSize[0]), Y: float32(c.FrameSize[1])}
	for eye, cam := range c.Eyes {
		size := math.Vec2{X: float32(cam.Size[0]), Y: float32(cam.Size[1])}
		offset := math.Vec2{X: float32(cam.Offset[0]), Y: float32(cam.Offset[1])}
		out[eye] = Intrinsics{
			Focal:  math.Vec2{X: cam.Focal[0], Y: cam.Focal[1]}.Div(size),
			Scale:  size.Div(frame),
			Center: math.Vec2{X: cam.Center[0], Y: cam.Center[1]}.Add(offset).Div(frame),
			Coeffs: cam.Coeffs,
		}
	}
	return out, nil
}

// LoadCalibration reads a SteamVR HMD calibration (.json) or a YAML
// calibration (any other extension).
func LoadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cal *Calibration
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cal, err = ParseSteamVR(data)
	default:
		cal, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return cal, nil
}

// ParseYAML decodes a calibration written in the YAML layout of
// Calibration.
func ParseYAML(data []byte) (*Calibration, error) {
	cal := &Calibration{}
	if err := yaml.Unmarshal(data, cal); err != nil {
		return nil, err
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

type steamVRConfig struct {
	DeviceSerialNumber string          `json:"device_serial_number"`
	TrackedCameras     []steamVRCamera `json:"tracked_cameras"`
}

type steamVRCamera struct {
	Name       string `json:"name"`
	Extrinsics struct {
		PlusX    [3]float32 `json:"plus_x"`
		PlusZ    [3]float32 `json:"plus_z"`
		Position [3]float32 `json:"position"`
	} `json:"extrinsics"`
	Intrinsics struct {
		CenterX float32 `json:"center_x"`
		CenterY float32 `json:"center_y"`
		Distort struct {
			Coeffs [4]float32 `json:"coeffs"`
			Type   string     `json:"type"`
		} `json:"distort"`
		FocalX float32 `json:"focal_x"`
		FocalY float32 `json:"focal_y"`
		Height int     `json:"height"`
		Width  int     `json:"width"`
	} `json:"intrinsics"`
}

// ParseSteamVR decodes the HMD configuration SteamVR stores for headsets
// with tracked cameras. The right camera sits to the right of the left one
// in a SteamVRFrameWidth x SteamVRFrameHeight frame.
func ParseSteamVR(data []byte) (*Calibration, error) {
	var hmd steamVRConfig
	if err := json.Unmarshal(data, &hmd); err != nil {
		return nil, err
	}
	if len(hmd.TrackedCameras) != stereo.Eyes {
		return nil, fmt.Errorf("%w: %d tracked cameras, want %d", ErrCalibration, len(hmd.TrackedCameras), stereo.Eyes)
	}
	cal := &Calibration{
		Serial:    hmd.DeviceSerialNumber,
		FrameSize: [2]int{SteamVRFrameWidth, SteamVRFrameHeight},
	}
	for eye, tc := range hmd.TrackedCameras {
		in := tc.Intrinsics
		cal.Eyes[eye] = CameraCalibration{
			Name:     tc.Name,
			Size:     [2]int{in.Width, in.Height},
			Focal:    [2]float32{in.FocalX, in.FocalY},
			Center:   [2]float32{in.CenterX, in.CenterY},
			Coeffs:   in.Distort.Coeffs,
			Position: tc.Extrinsics.Position,
			Right:    tc.Extrinsics.PlusX,
			Back:     tc.Extrinsics.PlusZ,
		}
	}
	cal.Eyes[stereo.Right].Offset = [2]int{cal.Eyes[stereo.Left].Size[0], 0}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}
