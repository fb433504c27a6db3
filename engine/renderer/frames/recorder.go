package frames

import "fmt"

// CommandRecorder fills the per-image command buffers of a freshly built
// ResourceSet. It must only touch buffers owned by that set.
type CommandRecorder interface {
	Record(enc CommandEncoder, set *ResourceSet) error
}

// RecorderFunc adapts a plain function to CommandRecorder.
type RecorderFunc func(enc CommandEncoder, set *ResourceSet) error

func (f RecorderFunc) Record(enc CommandEncoder, set *ResourceSet) error {
	return f(enc, set)
}

// ClearRecorder clears every framebuffer and, when the set has a pipeline,
// draws VertexCount vertices with it.
type ClearRecorder struct {
	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
	VertexCount  uint32
}

func (r ClearRecorder) Record(enc CommandEncoder, set *ResourceSet) error {
	set.Validate()
	for i, cb := range set.CommandBuffers {
		if err := enc.BeginCommandBuffer(cb); err != nil {
			return fmt.Errorf("failed to begin command buffer %d: %w", i, err)
		}
		enc.CmdBeginRenderPass(cb, RenderPassBegin{
			RenderPass:   set.RenderPass,
			Framebuffer:  set.Framebuffers[i],
			Extent:       set.Extent,
			ClearColor:   r.ClearColor,
			ClearDepth:   r.ClearDepth,
			ClearStencil: r.ClearStencil,
		})
		if set.Pipeline != NullPipeline && r.VertexCount > 0 {
			enc.CmdBindPipeline(cb, set.Pipeline)
			enc.CmdDraw(cb, r.VertexCount, 1, 0, 0)
		}
		enc.CmdEndRenderPass(cb)
		if err := enc.EndCommandBuffer(cb); err != nil {
			return fmt.Errorf("failed to end command buffer %d: %w", i, err)
		}
	}
	return nil
}
