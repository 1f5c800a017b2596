// Package renderer runs the deformation stages on the GPU with OpenGL 4.3
// compute shaders.
package renderer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/mmdvr/internal/engine/buffer"
	"github.com/Faultbox/mmdvr/internal/engine/model"
	"github.com/Faultbox/mmdvr/internal/engine/morph"
	"github.com/Faultbox/mmdvr/internal/engine/pipeline"
	"github.com/Faultbox/mmdvr/internal/engine/renderer/shaders"
	"github.com/Faultbox/mmdvr/internal/engine/shader"
	"github.com/Faultbox/mmdvr/internal/engine/skeleton"
	"github.com/Faultbox/mmdvr/internal/engine/skinning"
	"github.com/Faultbox/mmdvr/internal/engine/stereo"
	"github.com/Faultbox/mmdvr/internal/engine/window"
	"github.com/Faultbox/mmdvr/internal/logger"
	"github.com/Faultbox/mmdvr/pkg/math"
)

// Shader storage bindings shared with shaders/*.comp.
const (
	bindVertices = 0
	bindTable    = 1
	bindActive   = 2
	bindOffsets  = 3
	bindBones    = 4
	bindPosed    = 5
	bindOutline  = 6
)

// Uniform block bindings shared with skin.comp.
const (
	bindCommons = 0
	bindDraw    = 1
)

// skinGroupSize matches local_size_x in skin.comp.
const skinGroupSize = 64

// gpuSlot holds the device buffers of one in-flight frame.
type gpuSlot struct {
	offsets, bones, posed, outline uint32
	commons, draw                  uint32
	palette                        buffer.Store[math.Mat4]
	vertices                       []skinning.Posed
	outlines                       [stereo.Eyes][]math.Vec3
	readback, outlineReadback      []byte
}

// Compute is a pipeline.Backend running morph accumulation, skinning and
// the per-eye outline pass on the GPU. The bone palette, the Commons block
// and the draw parameters are evaluated on the CPU and uploaded every frame. All methods must be called from the thread that
// owns the GL context.
type Compute struct {
	win  *window.Window
	opts pipeline.Options
	log  *zap.Logger

	morphProg, skinProg      uint32
	morphMaxSize, morphVerts int32
	skinVerts, skinHasMorphs int32

	model   *model.Model
	table   *morph.Table
	skel    *skeleton.Skeleton
	builder *stereo.Builder
	active  buffer.Store[morph.Active]

	vertexBuf, tableBuf, activeBuf uint32
	slots                          [pipeline.Slots]gpuSlot
}

// NewCompute creates a hidden window, initializes OpenGL and compiles the
// compute programs.
func NewCompute(opts pipeline.Options, debug bool) (*Compute, error) {
	win, err := window.New(window.Config{Title: "mmdvr compute", Width: 1, Height: 1, Hidden: true, Debug: debug})
	if err != nil {
		return nil, &pipeline.DeviceError{Op: "create context", Err: err}
	}
	c := &Compute{win: win, opts: opts, log: logger.Named("renderer")}

	if err := gl.Init(); err != nil {
		win.Close()
		return nil, &pipeline.DeviceError{Op: "init", Err: fmt.Errorf("failed to initialize OpenGL: %w", err)}
	}
	c.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	if err := c.compile(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Compute) compile() error {
	var err error
	src := shader.Source(shaders.MorphCompute, map[string]string{"GROUP_SIZE": strconv.Itoa(morph.GroupSize)})
	if c.morphProg, err = shader.CompileCompute("morph", src); err != nil {
		return err
	}
	if c.skinProg, err = shader.CompileCompute("skin", shaders.SkinCompute); err != nil {
		return err
	}
	c.morphMaxSize = shader.GetUniform(c.morphProg, "maxSize")
	c.morphVerts = shader.GetUniform(c.morphProg, "vertexCount")
	c.skinVerts = shader.GetUniform(c.skinProg, "vertexCount")
	c.skinHasMorphs = shader.GetUniform(c.skinProg, "hasMorphs")
	return checkError("compile")
}

// Name implements pipeline.Backend.
func (c *Compute) Name() string { return "gl" }

// Upload implements pipeline.Backend.
func (c *Compute) Upload(m *model.Model) error {
	if err := pipeline.CheckUpload(m, c.opts); err != nil {
		return err
	}
	c.releaseBuffers()

	c.model = m
	c.table = morph.BuildTable(m)
	c.skel = skeleton.New(m)
	c.builder = stereo.NewBuilder(c.opts.Stereo, c.opts.Eyes)
	c.active = buffer.New[morph.Active]("morph active set", c.opts.Morph.Variant, c.opts.Morph.Capacity)

	vertices := encodeVertices(m.Vertices)
	table := c.table.AppendBinary(nil)
	c.vertexBuf = newBuffer(vertices, gl.STATIC_DRAW)
	c.tableBuf = newBuffer(table, gl.STATIC_DRAW)
	c.activeBuf = newBuffer(nil, gl.DYNAMIC_DRAW)

	n := len(m.Vertices)
	for i := range c.slots {
		s := &c.slots[i]
		s.offsets = newSizedBuffer(n*offsetsStride, gl.DYNAMIC_COPY)
		s.bones = newSizedBuffer(len(m.Bones)*boneStride, gl.DYNAMIC_DRAW)
		s.posed = newSizedBuffer(n*posedStride, gl.DYNAMIC_READ)
		s.outline = newSizedBuffer(stereo.Eyes*n*outlineStride, gl.DYNAMIC_READ)
		s.commons = newUniformBuffer(stereo.CommonsSize)
		s.draw = newUniformBuffer(stereo.DrawParamsSize)
		s.palette = buffer.New[math.Mat4]("bone palette", c.opts.BoneVariant, c.opts.BoneCapacity)
		s.vertices = make([]skinning.Posed, n)
		for eye := range s.outlines {
			s.outlines[eye] = make([]math.Vec3, n)
		}
		s.readback = make([]byte, n*posedStride)
		s.outlineReadback = make([]byte, stereo.Eyes*n*outlineStride)
	}
	if err := checkError("upload"); err != nil {
		return err
	}

	c.log.Info("model uploaded",
		zap.String("model", m.Name),
		zap.Int("vertex_bytes", len(vertices)),
		zap.Int("table_bytes", len(table)))
	return nil
}

// Run implements pipeline.Backend.
func (c *Compute) Run(ctx context.Context, in *pipeline.FrameInput) (*pipeline.FrameOutput, error) {
	if c.model == nil {
		return nil, pipeline.ErrNotUploaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slot := &c.slots[in.Index%pipeline.Slots]

	if len(in.Weights) > c.table.Targets() {
		return nil, fmt.Errorf("frame %d: morph weights: %d weights for %d targets", in.Index, len(in.Weights), c.table.Targets())
	}
	if err := c.active.Set(morph.Activate(in.Weights, c.opts.Morph.Epsilon)); err != nil {
		return nil, fmt.Errorf("frame %d: morph weights: %w", in.Index, err)
	}
	if err := pipeline.Pose(c.skel, in); err != nil {
		return nil, fmt.Errorf("frame %d: %w", in.Index, err)
	}
	if err := c.skel.Evaluate(slot.palette); err != nil {
		return nil, fmt.Errorf("frame %d: %w", in.Index, err)
	}

	if bones := encodePalette(slot.palette); len(bones) > 0 {
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, slot.bones)
		gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, 0, len(bones), gl.Ptr(bones))
	}
	frame := c.builder.Build(in.Head)
	uploadUniform(slot.commons, frame.Marshal())
	uploadUniform(slot.draw, in.Draw.Marshal())

	c.accumulate(slot)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	c.skin(slot)
	gl.MemoryBarrier(gl.BUFFER_UPDATE_BARRIER_BIT)

	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, slot.posed)
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, len(slot.readback), gl.Ptr(slot.readback))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, slot.outline)
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, len(slot.outlineReadback), gl.Ptr(slot.outlineReadback))
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	if err := checkError("frame"); err != nil {
		return nil, fmt.Errorf("frame %d: %w", in.Index, err)
	}
	if err := decodePosed(slot.readback, slot.vertices); err != nil {
		return nil, err
	}
	if err := decodeOutlines(slot.outlineReadback, slot.outlines); err != nil {
		return nil, err
	}

	c.log.Debug("frame done", logger.Frame(in.Index), zap.Int("active_morphs", c.active.Len()))
	return &pipeline.FrameOutput{
		Index:    in.Index,
		Model:    c.model,
		Stereo:   frame,
		Draw:     in.Draw,
		Palette:  slot.palette,
		Vertices: slot.vertices,
		Outlines: slot.outlines,
	}, nil
}

// accumulate clears the slot's offsets and dispatches one work group per
// (record group, active target).
func (c *Compute) accumulate(slot *gpuSlot) {
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, slot.offsets)
	gl.ClearBufferData(gl.SHADER_STORAGE_BUFFER, gl.R32I, gl.RED_INTEGER, gl.INT, nil)

	active := c.active.Items()
	if len(active) == 0 {
		return
	}
	packed := morph.AppendPacked(nil, active)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, c.activeBuf)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, len(packed), gl.Ptr(packed), gl.DYNAMIC_DRAW)

	gl.UseProgram(c.morphProg)
	gl.Uniform1ui(c.morphMaxSize, uint32(c.table.MaxSize()))
	gl.Uniform1ui(c.morphVerts, uint32(len(c.model.Vertices)))
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindTable, c.tableBuf)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindActive, c.activeBuf)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindOffsets, slot.offsets)
	gl.DispatchCompute(uint32(c.table.Groups()), uint32(len(active)), 1)
}

func (c *Compute) skin(slot *gpuSlot) {
	n := len(c.model.Vertices)
	gl.UseProgram(c.skinProg)
	gl.Uniform1ui(c.skinVerts, uint32(n))
	hasMorphs := int32(0)
	if c.active.Len() > 0 {
		hasMorphs = 1
	}
	gl.Uniform1i(c.skinHasMorphs, hasMorphs)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindVertices, c.vertexBuf)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindOffsets, slot.offsets)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindBones, slot.bones)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindPosed, slot.posed)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, bindOutline, slot.outline)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, bindCommons, slot.commons)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, bindDraw, slot.draw)
	gl.DispatchCompute(uint32((n+skinGroupSize-1)/skinGroupSize), 1, 1)
}

func newBuffer(data []byte, usage uint32) uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, id)
	if len(data) > 0 {
		gl.BufferData(gl.SHADER_STORAGE_BUFFER, len(data), gl.Ptr(data), usage)
	} else {
		gl.BufferData(gl.SHADER_STORAGE_BUFFER, 16, nil, usage)
	}
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	return id
}

func newSizedBuffer(size int, usage uint32) uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, id)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, max(size, 16), nil, usage)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, 0)
	return id
}

func newUniformBuffer(size int) uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.UNIFORM_BUFFER, id)
	gl.BufferData(gl.UNIFORM_BUFFER, size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	return id
}

func uploadUniform(id uint32, data []byte) {
	gl.BindBuffer(gl.UNIFORM_BUFFER, id)
	gl.BufferSubData(gl.UNIFORM_BUFFER, 0, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
}

func (c *Compute) releaseBuffers() {
	del := func(id *uint32) {
		if *id != 0 {
			gl.DeleteBuffers(1, id)
			*id = 0
		}
	}
	del(&c.vertexBuf)
	del(&c.tableBuf)
	del(&c.activeBuf)
	for i := range c.slots {
		del(&c.slots[i].offsets)
		del(&c.slots[i].bones)
		del(&c.slots[i].posed)
		del(&c.slots[i].outline)
		del(&c.slots[i].commons)
		del(&c.slots[i].draw)
	}
	c.model = nil
}

// Close implements pipeline.Backend. It releases every GL object and the
// context.
func (c *Compute) Close() error {
	c.log.Info("closing compute backend")
	c.releaseBuffers()
	if c.morphProg != 0 {
		gl.DeleteProgram(c.morphProg)
		c.morphProg = 0
	}
	if c.skinProg != 0 {
		gl.DeleteProgram(c.skinProg)
		c.skinProg = 0
	}
	if c.win != nil {
		c.win.Close()
		c.win = nil
	}
	return nil
}
