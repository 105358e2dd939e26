package renderer

import (
	"fmt"

	"github.com/spaghettifunk/grove/engine/math"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

// Update writes the constant block of the terrain (slot 0) and of every
// vegetation instance (slots 1..N-1) for the given view.
func (c *GraphicsContext) Update(view math.Mat4, elapsedSeconds float32) error {
	c.rotation += elapsedSeconds * c.cfg.RotationSpeed

	rot := math.NewMat4EulerY(c.rotation)
	aspect := float32(c.cfg.Width) / float32(c.cfg.Height)
	viewProj := view.Mul(math.NewMat4PerspectiveFovLH(c.cfg.FieldOfView, aspect, c.cfg.NearClip, c.cfg.FarClip))

	block := ConstantBlock{
		WorldViewProj: rot.Mul(viewProj),
		World:         rot,
	}
	if err := c.constants.Write(0, &block); err != nil {
		return err
	}

	for i := 1; i < len(c.instances); i++ {
		inst := c.instances[i]
		yaw := math.NewMat4EulerY(inst.Yaw())
		s := inst.ScaleFactor()
		placed := rot.Mul(math.NewMat4Translation(inst.Position))

		block.World = yaw.Mul(placed)
		block.WorldViewProj = yaw.Mul(math.NewMat4Scale(math.NewVec3(s, s, s))).Mul(placed).Mul(viewProj)
		if err := c.constants.Write(i, &block); err != nil {
			return err
		}
	}
	return nil
}

// Render records the frame, submits it, presents and waits for the GPU.
func (c *GraphicsContext) Render() error {
	if err := c.record(); err != nil {
		return err
	}
	if err := c.queue.Execute(c.list); err != nil {
		return fmt.Errorf("failed to execute frame: %w", err)
	}
	if err := c.swapchain.Present(c.cfg.VSyncInterval, 0); err != nil {
		return fmt.Errorf("failed to present: %w", err)
	}
	return c.sync.WaitForFrame()
}

func (c *GraphicsContext) record() error {
	// Safe: the previous frame was waited on before Render returned.
	if err := c.allocator.Reset(); err != nil {
		return fmt.Errorf("failed to reset command allocator: %w", err)
	}
	if err := c.list.Reset(c.allocator, c.pipeline); err != nil {
		return fmt.Errorf("failed to reset command list: %w", err)
	}

	l := c.list
	l.SetPipeline(c.pipeline)
	l.SetDescriptorHeap(c.cbvSrvHeap)
	l.SetDescriptorTable(0)
	l.SetViewport(c.viewport)
	l.SetScissor(c.scissor)

	frame := c.sync.FrameIndex()
	backBuffer := c.renderTargets[frame]
	l.Transition(backBuffer, gpu.StatePresent, gpu.StateRenderTarget)
	l.SetRenderTarget(frame, 0)

	l.ClearRenderTarget(frame, c.cfg.ClearColor)
	l.ClearDepth(0, 1.0)
	l.SetPrimitiveTopology(gpu.TopologyTriangleList)

	cb := c.constants.Buffer()
	for _, m := range c.terrain {
		l.SetVertexBuffer(m.VertexView)
		l.SetIndexBuffer(m.IndexView)
		l.SetDescriptorTable(0)
		l.SetConstantBuffer(cb, 0)
		l.DrawIndexed(m.NumIndices, 1, 0, 0, 0)
	}

	for _, sp := range c.species {
		for i, m := range sp.meshes {
			l.SetVertexBuffer(m.VertexView)
			l.SetIndexBuffer(m.IndexView)
			l.SetDescriptorTable((sp.textureBase + uint32(i)) * 2)

			for slot := sp.instances.Start; slot < sp.instances.End; slot++ {
				offset, err := c.constants.Offset(slot)
				if err != nil {
					return err
				}
				l.SetConstantBuffer(cb, offset)
				l.DrawIndexed(m.NumIndices, 1, 0, 0, 0)
			}
		}
	}

	l.Transition(backBuffer, gpu.StateRenderTarget, gpu.StatePresent)
	if err := l.Close(); err != nil {
		return fmt.Errorf("failed to close frame list: %w", err)
	}
	return nil
}
