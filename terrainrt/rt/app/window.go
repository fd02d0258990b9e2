// Package app puts the subdivision pipeline on screen: a GLFW window, its
// WebGPU surface and the keyboard and mouse controls around the frame driver.
package app

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/subd"
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/gekko3d/subd/terrainrt/rt/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

var _ subd.Device = (*gpu.Device)(nil)

// Window owns the surface and the GPU device drawing into it.
type Window struct {
	Handle   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration
	Pipeline *gpu.Device

	texture *wgpu.Texture
	view    *wgpu.TextureView

	frames  int
	fpsTime float64
	FPS     float64
}

// NewWindow creates the WebGPU device for handle and uploads hf.
func NewWindow(handle *glfw.Window, hf *core.HeightField, opts gpu.Options) (*Window, error) {
	w := &Window{Handle: handle}
	w.Instance = wgpu.CreateInstance(nil)
	w.Surface = w.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(handle))

	adapter, err := w.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: w.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	w.Adapter = adapter

	w.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	width, height := handle.GetFramebufferSize()
	caps := w.Surface.GetCapabilities(adapter)
	w.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	w.Surface.Configure(adapter, w.Device, w.Config)

	opts.Format = w.Config.Format
	w.Pipeline, err = gpu.NewDevice(w.Device, hf, opts)
	if err != nil {
		w.Release()
		return nil, err
	}
	w.fpsTime = glfw.GetTime()
	return w, nil
}

// Resize reconfigures the surface. Zero sizes (minimized windows) are ignored.
func (w *Window) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	w.Config.Width = uint32(width)
	w.Config.Height = uint32(height)
	w.Surface.Configure(w.Adapter, w.Device, w.Config)
}

// acquire fetches the next surface texture and hands it to the pipeline.
func (w *Window) acquire() error {
	tex, err := w.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("get current texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("surface view: %w", err)
	}
	w.texture, w.view = tex, view
	return w.Pipeline.SetTarget(view, w.Config.Width, w.Config.Height)
}

func (w *Window) present() {
	if w.view == nil {
		return
	}
	w.Surface.Present()
	w.view.Release()
	w.texture.Release()
	w.view, w.texture = nil, nil
	_ = w.Pipeline.SetTarget(nil, w.Config.Width, w.Config.Height)

	w.frames++
	now := glfw.GetTime()
	if elapsed := now - w.fpsTime; elapsed >= 1 {
		w.FPS = float64(w.frames) / elapsed
		w.frames = 0
		w.fpsTime = now
	}
}

func (w *Window) Release() {
	if w.view != nil {
		w.view.Release()
		w.texture.Release()
	}
	if w.Pipeline != nil {
		w.Pipeline.Release()
	}
	if w.Device != nil {
		w.Device.Release()
	}
	if w.Adapter != nil {
		w.Adapter.Release()
	}
	if w.Surface != nil {
		w.Surface.Release()
	}
	if w.Instance != nil {
		w.Instance.Release()
	}
}

// Acquire runs before Prelude; Present runs after the frame is submitted.
var (
	Acquire = subd.Stage{Name: "Acquire"}
	Present = subd.Stage{Name: "Present"}
)

var keyActions = map[glfw.Key]Action{
	glfw.KeyR:            ActionReset,
	glfw.KeyF:            ActionFreeze,
	glfw.KeyO:            ActionOnlyRender,
	glfw.KeyC:            ActionCulling,
	glfw.KeyH:            ActionDisplace,
	glfw.KeyL:            ActionShading,
	glfw.KeyM:            ActionFill,
	glfw.KeyB:            ActionCull,
	glfw.KeyRightBracket: ActionDeeper,
	glfw.KeyLeftBracket:  ActionShallower,
	glfw.KeyMinus:        ActionFiner,
	glfw.KeyEqual:        ActionCoarser,
}

// WindowModule drives a Window from the app: it binds the input callbacks,
// acquires a surface texture each frame and presents it after submission.
type WindowModule struct {
	Window *Window
}

func (m WindowModule) Install(app *subd.App, cmd *subd.Commands) {
	w := m.Window
	controls, ok := subd.Resource[Controls](app)
	if !ok {
		controls = &Controls{}
		cmd.AddResources(controls)
	}
	cmd.AddResources(w, &subd.Renderer{Device: w.Pipeline})
	if _, ok := subd.Resource[subd.Viewport](app); !ok {
		cmd.AddResources(&subd.Viewport{Width: w.Config.Width, Height: w.Config.Height})
	}
	bindInput(w.Handle, controls)
	w.Handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.Resize(width, height)
	})

	app.UseStage(Acquire, subd.BeforeStage(subd.Prelude))
	app.UseStage(Present, subd.AfterStage(subd.Finale))
	cmd.UseSystem(subd.System(acquireSystem).InStage(Acquire)).
		UseSystem(subd.System(presentSystem).InStage(Present))
}

func bindInput(win *glfw.Window, c *Controls) {
	var lastX, lastY float64
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if c.Captured {
			c.Look = c.Look.Add(mgl32.Vec2{float32(x - lastX), float32(y - lastY)})
		}
		lastX, lastY = x, y
	})
	win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyTab:
			c.Captured = !c.Captured
			if c.Captured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
				lastX, lastY = w.GetCursorPos()
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		default:
			c.Queue(keyActions[key])
		}
	})
}

func axis(win *glfw.Window, neg, pos glfw.Key) float32 {
	var v float32
	if win.GetKey(pos) == glfw.Press {
		v++
	}
	if win.GetKey(neg) == glfw.Press {
		v--
	}
	return v
}

func acquireSystem(w *Window, c *Controls, vp *subd.Viewport, cmd *subd.Commands) {
	glfw.PollEvents()
	if w.Handle.ShouldClose() {
		cmd.Stop()
		return
	}
	c.Move = mgl32.Vec3{
		axis(w.Handle, glfw.KeyA, glfw.KeyD),
		axis(w.Handle, glfw.KeyQ, glfw.KeyE),
		axis(w.Handle, glfw.KeyS, glfw.KeyW),
	}
	c.Boost = w.Handle.GetKey(glfw.KeyLeftShift) == glfw.Press

	vp.Width, vp.Height = w.Config.Width, w.Config.Height
	if err := w.acquire(); err != nil {
		// Draw is skipped without a target; the kernel still steps.
		cmd.Logger().Warnf("%s: %v", w.Pipeline.Label(), err)
		_ = w.Pipeline.SetTarget(nil, vp.Width, vp.Height)
	}
}

func presentSystem(w *Window, cfg *core.AppConfig, frame *subd.FrameContext) {
	w.present()
	if frame.Frame%60 != 0 {
		return
	}
	w.Handle.SetTitle(windowTitle(w.FPS, w.Pipeline.Stats(), cfg, frame))
}

// windowTitle shows host-side state only; patch counts live on the device.
func windowTitle(fps float64, s gpu.Stats, cfg *core.AppConfig, frame *subd.FrameContext) string {
	return fmt.Sprintf("subd | %.0f fps | gen %d | submits %d | depth %d | %.2f px | %v/%v",
		fps, frame.Generation, s.Submitted, cfg.MaxDepth, cfg.TargetPixelSize, cfg.Shading, cfg.Fill)
}
