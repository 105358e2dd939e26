package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Number of frames to render before exiting. Zero means run until quit.
	MaxFrames uint64 `toml:"max_frames"`
}

type WindowConfig struct {
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// "vulkan" or "headless".
	Backend            string     `toml:"backend"`
	Validation         bool       `toml:"validation"`
	FrameCount         uint32     `toml:"frame_count"`
	VSyncInterval      uint32     `toml:"vsync_interval"`
	DescriptorCapacity uint32     `toml:"descriptor_capacity"`
	ConstantBufferSize uint64     `toml:"constant_buffer_size"`
	StagingBufferSize  uint64     `toml:"staging_buffer_size"`
	MaxMeshes          int        `toml:"max_meshes"`
	ClearColor         [4]float32 `toml:"clear_color"`
	FieldOfView        float32    `toml:"field_of_view"`
	NearClip           float32    `toml:"near_clip"`
	FarClip            float32    `toml:"far_clip"`
	// Radians per second the whole scene turns about Y. Zero keeps it still.
	RotationSpeed float32 `toml:"rotation_speed"`
	// Filled from the window section; not read from the file.
	Width  uint32 `toml:"-"`
	Height uint32 `toml:"-"`
}

type ShaderConfig struct {
	Vertex   string `toml:"vertex"`
	Fragment string `toml:"fragment"`
}

// SpeciesConfig describes one vegetation model. Mesh i of the model samples
// texture TextureBase+i.
type SpeciesConfig struct {
	Model       string `toml:"model"`
	TextureBase uint32 `toml:"texture_base"`
}

type SceneConfig struct {
	Terrain       string          `toml:"terrain"`
	Species       []SpeciesConfig `toml:"species"`
	Textures      []string        `toml:"textures"`
	InstanceCount int             `toml:"instance_count"`
	// Fixed seed for instance placement. Zero seeds from the wall clock.
	Seed uint64 `toml:"seed"`
}

type CameraConfig struct {
	Position         [3]float32 `toml:"position"`
	MoveStep         float32    `toml:"move_step"`
	TurnRate         float32    `toml:"turn_rate"`
	MouseSensitivity float32    `toml:"mouse_sensitivity"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type AssetsConfig struct {
	Directory string `toml:"directory"`
	Watch     bool   `toml:"watch"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Window      WindowConfig      `toml:"window"`
	Renderer    RendererConfig    `toml:"renderer"`
	Shaders     ShaderConfig      `toml:"shaders"`
	Scene       SceneConfig       `toml:"scene"`
	Camera      CameraConfig      `toml:"camera"`
	Log         LogConfig         `toml:"log"`
	Assets      AssetsConfig      `toml:"assets"`
}

const (
	ConstantSlotSize = 256
	defaultTreeCount = 2048
)

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name: "Grove",
		},
		Window: WindowConfig{
			X:      100,
			Y:      100,
			Width:  2560,
			Height: 1600,
		},
		Renderer: RendererConfig{
			Backend:            "vulkan",
			FrameCount:         2,
			VSyncInterval:      1,
			DescriptorCapacity: 100,
			ConstantBufferSize: 4096 * ConstantSlotSize,
			StagingBufferSize:  0x1000000 * 2,
			MaxMeshes:          100,
			ClearColor:         [4]float32{0.8, 0.85, 1.0, 1.0},
			FieldOfView:        1.0,
			NearClip:           0.1,
			FarClip:            100.0,
		},
		Shaders: ShaderConfig{
			Vertex:   "shaders/scene.vert.spv",
			Fragment: "shaders/scene.frag.spv",
		},
		Scene: SceneConfig{
			Terrain: "terrain.glb",
			Species: []SpeciesConfig{
				{Model: "white_oak.glb", TextureBase: 1},
				{Model: "conifer.glb", TextureBase: 5},
			},
			Textures: []string{
				"ground_seamless_texture_7137.dds",
				"T_Cap_02_BaseColor.dds",
				"T_WhiteOakBark_BaseColor.dds",
				"T_White_Oak_Leaves_Hero_1_BaseColor.dds",
				"T_White_Oak_Leaves_Hero_3_BaseColor.dds",
				"Bark_Color.dds",
				"Conifer_Color.dds",
			},
			InstanceCount: defaultTreeCount,
		},
		Camera: CameraConfig{
			Position:         [3]float32{0, 0, -10},
			MoveStep:         0.1,
			TurnRate:         0.01,
			MouseSensitivity: 0.001,
		},
		Log: LogConfig{
			Level: "debug",
		},
		Assets: AssetsConfig{
			Directory: "assets",
		},
	}
}

// LoadConfig reads a TOML file over the defaults. A missing file is not an
// error; the defaults are returned as they are.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		LogWarn("config file %s not found, using defaults", path)
		cfg.sync()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	cfg.sync()
	return cfg, cfg.Validate()
}

func (c *Config) sync() {
	c.Renderer.Width = c.Window.Width
	c.Renderer.Height = c.Window.Height
}

func (c *Config) Validate() error {
	r := c.Renderer
	switch {
	case r.Backend != "vulkan" && r.Backend != "headless":
		return fmt.Errorf("%w: unknown renderer backend %q", ErrInvalidConfig, r.Backend)
	case r.FrameCount < 2:
		return fmt.Errorf("%w: frame_count must be at least 2", ErrInvalidConfig)
	case c.Window.Width == 0 || c.Window.Height == 0:
		return fmt.Errorf("%w: window size must be non-zero", ErrInvalidConfig)
	case c.Scene.InstanceCount < 1:
		return fmt.Errorf("%w: instance_count must be positive", ErrInvalidConfig)
	case uint64(c.Scene.InstanceCount)*ConstantSlotSize > r.ConstantBufferSize:
		return fmt.Errorf("%w: %d instances need %d bytes of constant buffer, have %d",
			ErrInvalidConfig, c.Scene.InstanceCount, uint64(c.Scene.InstanceCount)*ConstantSlotSize, r.ConstantBufferSize)
	case uint32(2*len(c.Scene.Textures)) > r.DescriptorCapacity:
		return fmt.Errorf("%w: %d textures need %d descriptors, heap holds %d",
			ErrInvalidConfig, len(c.Scene.Textures), 2*len(c.Scene.Textures), r.DescriptorCapacity)
	case len(c.Scene.Species) == 0:
		return fmt.Errorf("%w: at least one vegetation species is required", ErrInvalidConfig)
	case len(c.Scene.Textures) == 0:
		return fmt.Errorf("%w: at least one texture is required", ErrInvalidConfig)
	}
	return nil
}
