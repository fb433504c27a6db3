package frames

// SyncDevice creates and drives fences and semaphores.
type SyncDevice interface {
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	// WaitForFence blocks until fence is signaled. timeout is in nanoseconds;
	// math.MaxUint64 waits forever. An expired bounded wait returns an error
	// wrapping core.ErrFenceTimeout.
	WaitForFence(fence Fence, timeout uint64) error
	ResetFence(fence Fence) error
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)
}

type SwapchainConfig struct {
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent2D
	ImageCount  uint32
}

type PipelineConfig struct {
	RenderPass     RenderPass
	Extent         Extent2D
	VertexShader   []byte
	FragmentShader []byte
}

type FramebufferConfig struct {
	RenderPass RenderPass
	View       ImageView
	Depth      DepthBuffer
	Extent     Extent2D
}

// SwapchainDevice creates and destroys everything a ResourceSet holds.
type SwapchainDevice interface {
	SurfaceSupport() (SurfaceSupport, error)
	// CreateSwapchain returns the swapchain and its presentable images, which
	// belong to the presentation engine and die with the swapchain.
	CreateSwapchain(cfg SwapchainConfig) (Swapchain, []Image, error)
	DestroySwapchain(swapchain Swapchain)
	CreateImageView(image Image, format Format) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateDepthBuffer(extent Extent2D) (DepthBuffer, error)
	DestroyDepthBuffer(depth DepthBuffer)
	CreateRenderPass(color Format) (RenderPass, error)
	DestroyRenderPass(pass RenderPass)
	CreatePipeline(cfg PipelineConfig) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)
	CreateFramebuffer(cfg FramebufferConfig) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)
	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)
}

type RenderPassBegin struct {
	RenderPass   RenderPass
	Framebuffer  Framebuffer
	Extent       Extent2D
	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
}

// CommandEncoder is the recording surface handed to a CommandRecorder.
type CommandEncoder interface {
	BeginCommandBuffer(cb CommandBuffer) error
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdBindPipeline(cb CommandBuffer, pipeline Pipeline)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdEndRenderPass(cb CommandBuffer)
	EndCommandBuffer(cb CommandBuffer) error
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

// QueueDevice covers the per-frame queue traffic.
type QueueDevice interface {
	// AcquireNextImage signals semaphore once the image is handed over. On
	// SurfaceOutOfDate no image was acquired and the semaphore is untouched.
	AcquireNextImage(swapchain Swapchain, timeout uint64, semaphore Semaphore) (uint32, SurfaceStatus, error)
	QueueSubmit(info SubmitInfo, fence Fence) error
	QueuePresent(info PresentInfo) (SurfaceStatus, error)
	WaitIdle() error
}

// GraphicsDevice is the whole capability set the coordinator needs from a
// backend. The surface is bound into the device when it is created.
type GraphicsDevice interface {
	SyncDevice
	SwapchainDevice
	CommandEncoder
	QueueDevice
	// Destroy releases the logical device and everything the backend owns
	// behind it. No other call is valid afterwards.
	Destroy()
}
