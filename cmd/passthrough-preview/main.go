// passthrough-preview renders background plates from a camera calibration
// and a still frame, without a GPU or headset.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdvr/internal/app"
	"github.com/Faultbox/mmdvr/internal/engine/debug"
	"github.com/Faultbox/mmdvr/internal/engine/passthrough"
	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/internal/engine/texture"
	"github.com/Faultbox/mmdvr/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "render":
		cmdRender(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`passthrough-preview - camera passthrough plate preview

Usage:
  passthrough-preview <command> [options] <calibration>

Commands:
  info <calibration>                 Show normalized camera parameters
  render [options] <calibration>     Render both eyes' plates to images

Render options:
  -frame <file>     Camera frame (png, jpg, tga, bmp); test pattern if empty
  -out <dir>        Output directory (default ".")
  -format <fmt>     png or webp (default png)
  -width, -height   Plate size in pixels (default 960x960)
  -fov <deg>        Horizontal eye field of view (default 100)
  -yaw <deg>        Head rotation since the frame was captured
  -hfov, -dfov <deg>
                    Camera-aligned horizontal and diagonal field of view;
                    replaces -fov and ignores -yaw when both are set
  -scale <f>        Resample the plates by this factor before saving
  -block <file>     Also write the GPU intrinsics block to file

Examples:
  passthrough-preview info default.vrsettings.json
  passthrough-preview render -frame capture.tga -yaw 5 -format webp camera.yaml
  passthrough-preview render -hfov 110 -dfov 130 camera.yaml`)
}

func loadCalibration(path string) *passthrough.Calibration {
	cal, err := passthrough.LoadCalibration(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cal
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: passthrough-preview info <calibration>")
		os.Exit(1)
	}
	cal := loadCalibration(args[0])
	intrinsics, err := cal.Intrinsics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	rig, err := passthrough.NewRig(cal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Serial:     %s\n", cal.Serial)
	fmt.Printf("Frame size: %dx%d\n", cal.FrameSize[0], cal.FrameSize[1])
	for eye, in := range intrinsics {
		cam := cal.Eyes[eye]
		fmt.Printf("\n[%d] %s (%dx%d at %d,%d)\n", eye, cam.Name, cam.Size[0], cam.Size[1], cam.Offset[0], cam.Offset[1])
		fmt.Printf("  focal:      %.4f %.4f\n", in.Focal.X, in.Focal.Y)
		fmt.Printf("  scale:      %.4f %.4f\n", in.Scale.X, in.Scale.Y)
		fmt.Printf("  center:     %.4f %.4f\n", in.Center.X, in.Center.Y)
		fmt.Printf("  distortion: %v\n", [4]float32(in.Coeffs))
		ext := rig.Extrinsics(eye)
		for row := 0; row < 3; row++ {
			fmt.Printf("  extrinsics: % .4f % .4f % .4f\n", ext[row], ext[3+row], ext[6+row])
		}
	}
}

func cmdRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	framePath := fs.String("frame", "", "camera frame image")
	outDir := fs.String("out", ".", "output directory")
	format := fs.String("format", "png", "png or webp")
	width := fs.Int("width", 960, "plate width")
	height := fs.Int("height", 960, "plate height")
	fov := fs.Float64("fov", 100, "horizontal eye field of view in degrees")
	yaw := fs.Float64("yaw", 0, "head yaw since capture in degrees")
	hfov := fs.Float64("hfov", 0, "camera-aligned horizontal field of view in degrees")
	dfov := fs.Float64("dfov", 0, "camera-aligned diagonal field of view in degrees")
	scale := fs.Float64("scale", 1, "resample factor")
	blockPath := fs.String("block", "", "write the std140 intrinsics block to this file")
	_ = fs.Parse(args)

	if fs.NArg() < 1 || *width <= 0 || *height <= 0 || *scale <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: passthrough-preview render [options] <calibration>")
		os.Exit(1)
	}
	cal := loadCalibration(fs.Arg(0))

	var frame image.Image
	if *framePath != "" {
		img, err := texture.LoadFrame(*framePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		frame = img
	} else {
		frame = app.TestPattern(cal.FrameSize[0], cal.FrameSize[1])
	}

	capture, err := debug.NewCapture(*outDir, "plate", *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var plates *passthrough.PlateRenderer
	if *hfov > 0 || *dfov > 0 {
		plates, err = passthrough.NewFovPlateRenderer(cal, passthrough.FovSpec{
			Horizontal: mgl32.DegToRad(float32(*hfov)),
			Diagonal:   mgl32.DegToRad(float32(*dfov)),
		}, 0)
	} else {
		eyeFov := stereo.SymmetricFov(mgl32.DegToRad(float32(*fov)), float32(*width)/float32(*height))
		plates, err = passthrough.NewPlateRenderer(cal, [stereo.Eyes]stereo.Fov{eyeFov, eyeFov}, 0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *blockPath != "" {
		if err := os.WriteFile(*blockPath, plates.Block(), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing intrinsics block: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", *blockPath, passthrough.IntrinsicsSize)
	}
	rig, err := passthrough.NewRig(cal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	head := math.QuatFromAxisAngle(math.Vec3{Y: 1}, mgl32.DegToRad(float32(*yaw)))
	shifts := rig.Shifts(head)

	for eye, name := range [stereo.Eyes]string{"left", "right"} {
		dst := image.NewRGBA(image.Rect(0, 0, *width, *height))
		err := plates.Render(context.Background(), stereo.HardwareEye(eye), stereo.DefaultDrawParams(), frame, shifts[eye], dst)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering %s plate: %v\n", name, err)
			os.Exit(1)
		}
		out := dst
		if *scale != 1 {
			w := max(1, int(float64(*width)**scale))
			h := max(1, int(float64(*height)**scale))
			out = texture.Resize(dst, w, h)
		}
		path, err := capture.Save(name, out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error saving %s plate: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s (%dx%d)\n", path, out.Bounds().Dx(), out.Bounds().Dy())
	}
}
