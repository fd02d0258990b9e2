package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type ShadingMode uint32

const (
	ShadingLod ShadingMode = iota
	ShadingDiffuse
	ShadingNormal
	NumShadingModes
)

var shadingNames = []string{"lod", "diffuse", "normal"}

func (m ShadingMode) String() string {
	if int(m) < len(shadingNames) {
		return shadingNames[m]
	}
	return fmt.Sprintf("ShadingMode(%d)", uint32(m))
}

func (m ShadingMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ShadingMode) UnmarshalText(b []byte) error {
	v, err := parseEnum("shading", shadingNames, b)
	*m = ShadingMode(v)
	return err
}

type FillMode uint32

const (
	FillSolid FillMode = iota
	FillWireframe
	NumFillModes
)

var fillNames = []string{"solid", "wireframe"}

func (m FillMode) String() string {
	if int(m) < len(fillNames) {
		return fillNames[m]
	}
	return fmt.Sprintf("FillMode(%d)", uint32(m))
}

func (m FillMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *FillMode) UnmarshalText(b []byte) error {
	v, err := parseEnum("fill", fillNames, b)
	*m = FillMode(v)
	return err
}

type CullMode uint32

const (
	CullNone CullMode = iota
	CullBack
	NumCullModes
)

var cullNames = []string{"none", "back"}

func (m CullMode) String() string {
	if int(m) < len(cullNames) {
		return cullNames[m]
	}
	return fmt.Sprintf("CullMode(%d)", uint32(m))
}

func (m CullMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CullMode) UnmarshalText(b []byte) error {
	v, err := parseEnum("cull", cullNames, b)
	*m = CullMode(v)
	return err
}

func parseEnum(kind string, names []string, b []byte) (uint32, error) {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range names {
		if n == s {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s mode %q (want one of %s)", kind, s, strings.Join(names, ", "))
}

// AppConfig is the user-facing configuration surface. The pipeline only reads it.
type AppConfig struct {
	FreezeSubdivision  bool        `toml:"freeze_subdivision"`
	OnlyRender         bool        `toml:"only_render"`
	EnableCulling      bool        `toml:"enable_culling"`
	Displace           bool        `toml:"displace"`
	TargetPixelSize    float32     `toml:"target_pixel_size"`
	DisplacementFactor float32     `toml:"displacement_factor"`
	MaxDepth           uint32      `toml:"max_depth"`
	Capacity           uint32      `toml:"capacity"`
	Shading            ShadingMode `toml:"shading"`
	Fill               FillMode    `toml:"fill"`
	Cull               CullMode    `toml:"cull"`
	LightDir           [3]float32  `toml:"light_dir"`
}

const DefaultCapacity = 1 << 20

func DefaultAppConfig() AppConfig {
	return AppConfig{
		EnableCulling:      true,
		Displace:           true,
		TargetPixelSize:    5,
		DisplacementFactor: 0.3,
		MaxDepth:           20,
		Capacity:           DefaultCapacity,
		Shading:            ShadingDiffuse,
		Fill:               FillSolid,
		Cull:               CullNone,
		LightDir:           [3]float32{0.4, 0.3, 0.87},
	}
}

// LoadConfig reads a TOML file over the defaults. Unknown keys are an error.
func LoadConfig(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return cfg, cfg.Validate()
}

// WriteConfig encodes cfg as TOML.
func WriteConfig(w io.Writer, cfg AppConfig) error {
	return toml.NewEncoder(w).Encode(cfg)
}

func (c AppConfig) Validate() error {
	if c.MaxDepth < MinDepth || c.MaxDepth > MaxSupportedDepth {
		return fmt.Errorf("%w: max_depth %d outside [%d, %d]", ErrInvalidDepth, c.MaxDepth, MinDepth, MaxSupportedDepth)
	}
	if c.Capacity < uint32(len(RootKeys())) {
		return fmt.Errorf("capacity %d cannot hold the %d root patches", c.Capacity, len(RootKeys()))
	}
	if !(c.TargetPixelSize > 0) {
		return fmt.Errorf("target_pixel_size must be positive, got %v", c.TargetPixelSize)
	}
	if c.DisplacementFactor < 0 {
		return fmt.Errorf("displacement_factor must not be negative, got %v", c.DisplacementFactor)
	}
	if c.Shading > ShadingNormal || c.Fill > FillWireframe || c.Cull > CullBack {
		return fmt.Errorf("unknown render mode: shading=%v fill=%v cull=%v", c.Shading, c.Fill, c.Cull)
	}
	return nil
}

// Kernel flags carried in KernelConfig.Flags.
const (
	FlagFreeze uint32 = 1 << iota
	FlagCulling
	FlagDisplace
)

// KernelConfig is the per-frame record every kernel invocation receives.
// Toggles are plain data so no kernel is rebuilt when they change.
type KernelConfig struct {
	ViewProj           mgl32.Mat4
	Planes             [6]mgl32.Vec4
	CameraPos          mgl32.Vec3
	FovX               float32
	LightDir           mgl32.Vec3
	TargetPixelSize    float32
	ScreenWidth        float32
	ScreenHeight       float32
	DisplacementFactor float32
	MaxDepth           uint32
	Capacity           uint32
	Flags              uint32
	Shading            ShadingMode
	Fill               FillMode
	Cull               CullMode
}

// Kernel combines the configuration with a camera snapshot.
func (c AppConfig) Kernel(v View) KernelConfig {
	var flags uint32
	if c.FreezeSubdivision {
		flags |= FlagFreeze
	}
	if c.EnableCulling {
		flags |= FlagCulling
	}
	if c.Displace {
		flags |= FlagDisplace
	}
	light := mgl32.Vec3(c.LightDir)
	if light.Len() > 0 {
		light = light.Normalize()
	}
	return KernelConfig{
		ViewProj:           v.ViewProj,
		Planes:             v.Planes,
		CameraPos:          v.Position,
		FovX:               v.FovX,
		LightDir:           light,
		TargetPixelSize:    c.TargetPixelSize,
		ScreenWidth:        float32(v.Width),
		ScreenHeight:       float32(v.Height),
		DisplacementFactor: c.DisplacementFactor,
		MaxDepth:           c.MaxDepth,
		Capacity:           c.Capacity,
		Flags:              flags,
		Shading:            c.Shading,
		Fill:               c.Fill,
		Cull:               c.Cull,
	}
}

func (k *KernelConfig) Has(flag uint32) bool { return k.Flags&flag != 0 }

// Displacement is the height scale in effect, zero when displacement is off.
func (k *KernelConfig) Displacement() float32 {
	if k.Has(FlagDisplace) {
		return k.DisplacementFactor
	}
	return 0
}

// ProjectedPixels estimates the on-screen length of the segment a-b.
func (k *KernelConfig) ProjectedPixels(a, b mgl32.Vec3) float32 {
	mid := a.Add(b).Mul(0.5)
	dist := math32.Max(mid.Sub(k.CameraPos).Len(), 1e-6)
	return a.Sub(b).Len() * k.ScreenWidth / (2 * math32.Tan(k.FovX*0.5) * dist)
}
