package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/grove/engine/assets"
	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/math"
	"github.com/spaghettifunk/grove/engine/platform"
	"github.com/spaghettifunk/grove/engine/renderer"
	"github.com/spaghettifunk/grove/engine/renderer/components"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
	"github.com/spaghettifunk/grove/engine/renderer/headless"
	"github.com/spaghettifunk/grove/engine/renderer/vulkan"
	"github.com/spaghettifunk/grove/engine/resources"
	"github.com/spaghettifunk/grove/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	cfg          *core.Config
	currentStage Stage
	running      atomic.Bool
	isSuspended  bool
	frameCount   uint64

	platform     *platform.Platform
	assetManager *assets.AssetManager
	instance     gpu.Instance
	context      *renderer.GraphicsContext

	camera     *components.Camera
	controller *components.Controller
	clock      *core.Clock
	lastTime   int64
}

func New(cfg *core.Config) (*Engine, error) {
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	am, err := assets.NewAssetManager(cfg.Assets.Watch)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	camera := components.NewCamera(math.NewVec3(cfg.Camera.Position[0], cfg.Camera.Position[1], cfg.Camera.Position[2]))
	e := &Engine{
		cfg:          cfg,
		currentStage: EngineStageUninitialized,
		assetManager: am,
		camera:       camera,
		controller:   components.NewController(camera, cfg.Camera),
		clock:        core.NewClock(),
	}
	if cfg.Renderer.Backend == "vulkan" {
		e.platform = platform.New()
	}
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.InputInitialize(); err != nil {
		return err
	}
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)
	e.controller.Listen()

	if err := e.assetManager.Initialize(e.cfg.Assets.Directory); err != nil {
		return err
	}

	var surface gpu.Surface
	if e.platform != nil {
		w := e.cfg.Window
		if err := e.platform.Startup(e.cfg.Application.Name, w.X, w.Y, w.Width, w.Height); err != nil {
			return err
		}
		surface = e.platform.Window
	}

	instance, err := e.createInstance()
	if err != nil {
		return err
	}
	e.instance = instance

	if e.context, err = renderer.Bootstrap(e.instance, surface, e.cfg.Renderer); err != nil {
		return fmt.Errorf("failed to bootstrap renderer: %w", err)
	}

	sceneAssets, err := e.loadScene()
	if err != nil {
		return err
	}
	if err := e.context.InitAssets(*sceneAssets); err != nil {
		return fmt.Errorf("failed to initialize scene: %w", err)
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) createInstance() (gpu.Instance, error) {
	if e.platform == nil {
		core.LogInfo("running headless for %d frames", e.cfg.Application.MaxFrames)
		return headless.NewInstance(), nil
	}
	return vulkan.NewInstance(vulkan.InstanceConfig{
		ApplicationName: e.cfg.Application.Name,
		ProcAddr:        e.platform.ProcAddr(),
		Extensions:      e.platform.RequiredExtensions(),
		Validation:      e.cfg.Renderer.Validation,
	})
}

// loadScene reads the shaders, models and textures named by the scene
// configuration.
func (e *Engine) loadScene() (*renderer.SceneAssets, error) {
	sa := &renderer.SceneAssets{
		InstanceCount: e.cfg.Scene.InstanceCount,
		Rand:          scene.NewRand(e.cfg.Scene.Seed),
	}

	var err error
	if sa.VertexShader, err = e.loadShader(e.cfg.Shaders.Vertex); err != nil {
		return nil, err
	}
	if sa.FragmentShader, err = e.loadShader(e.cfg.Shaders.Fragment); err != nil {
		return nil, err
	}
	if sa.Terrain, err = e.loadModel(e.cfg.Scene.Terrain); err != nil {
		return nil, err
	}
	for _, sp := range e.cfg.Scene.Species {
		model, err := e.loadModel(sp.Model)
		if err != nil {
			return nil, err
		}
		sa.Species = append(sa.Species, renderer.SpeciesAssets{Model: model, TextureBase: sp.TextureBase})
	}
	for _, name := range e.cfg.Scene.Textures {
		res, err := e.load(name, resources.ResourceTypeTexture)
		if err != nil {
			return nil, err
		}
		sa.Textures = append(sa.Textures, res.Data.(*loaders.TextureData))
	}
	return sa, nil
}

func (e *Engine) load(name string, want resources.ResourceType) (*resources.Resource, error) {
	res, err := e.assetManager.LoadAsset(name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	if res.Type != want {
		return nil, fmt.Errorf("%w: %s is a %s, expected a %s", core.ErrUnknownAssetType, name, res.Type, want)
	}
	return res, nil
}

func (e *Engine) loadShader(name string) ([]uint32, error) {
	res, err := e.load(name, resources.ResourceTypeShader)
	if err != nil {
		return nil, err
	}
	return res.Data.([]uint32), nil
}

func (e *Engine) loadModel(name string) (*loaders.Model, error) {
	res, err := e.load(name, resources.ResourceTypeModel)
	if err != nil {
		return nil, err
	}
	return res.Data.(*loaders.Model), nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.running.Store(true)
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.running.Load() {
		if e.platform != nil && !e.platform.PumpMessages() {
			e.running.Store(false)
			break
		}
		if e.isSuspended {
			continue
		}

		if err := e.frame(); err != nil {
			return fmt.Errorf("frame %d failed: %w", e.frameCount, err)
		}
		e.frameCount++
		if limit := e.cfg.Application.MaxFrames; limit != 0 && e.frameCount >= limit {
			core.LogInfo("rendered %d frames, stopping", e.frameCount)
			e.running.Store(false)
		}
	}
	return nil
}

func (e *Engine) frame() error {
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := core.TickDelta(e.lastTime, currentTime)

	e.controller.PollMouse()
	e.controller.Update()

	if err := e.context.Update(e.camera.ViewMatrix(), delta); err != nil {
		return err
	}
	if err := e.context.Render(); err != nil {
		return err
	}

	e.clock.Update()
	frameSeconds := float64(e.clock.Elapsed()-currentTime) / 1e9
	if core.MetricsUpdate(frameSeconds) {
		fps, ms := core.MetricsFrame()
		core.LogDebug("%.0f fps, %.3f ms/frame", fps, ms)
	}

	e.drainChanges()

	// Input is the last thing updated before the frame ends.
	core.InputUpdate()
	e.lastTime = currentTime
	return nil
}

// drainChanges logs assets modified on disk. They take effect on restart.
func (e *Engine) drainChanges() {
	for {
		select {
		case path := <-e.assetManager.Changes():
			core.LogInfo("asset %s changed on disk; restart to reload it", path)
		default:
			return
		}
	}
}

// Stop ends the loop after the current frame. Safe to call from any
// goroutine.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var err error
	if e.context != nil {
		err = e.context.Destroy()
		e.context = nil
	}
	if e.instance != nil {
		e.instance.Destroy()
		e.instance = nil
	}
	if e.platform != nil {
		if perr := e.platform.Shutdown(); perr != nil && err == nil {
			err = perr
		}
	}
	if aerr := e.assetManager.Shutdown(); aerr != nil && err == nil {
		err = aerr
	}
	if eerr := core.EventSystemShutdown(); eerr != nil && err == nil {
		err = eerr
	}
	if ierr := core.InputShutdown(); ierr != nil && err == nil {
		err = ierr
	}
	e.currentStage = EngineStageUninitialized
	return err
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Frames() uint64 {
	return e.frameCount
}

func (e *Engine) onEvent(context core.EventContext) bool {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Stop()
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	// Handle minimization
	if se.WindowWidth == 0 || se.WindowHeight == 0 {
		if !e.isSuspended {
			core.LogInfo("Window minimized, suspending application.")
		}
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	return false
}
