package systems

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

const (
	MaterialSolid     = "solid"
	MaterialWireframe = "wireframe"
)

// Shaders is the compiled SPIR-V every material pipeline is built from.
type Shaders struct {
	Vertex   []byte
	Fragment []byte
}

// Materials owns the pipeline layout and pipelines behind the named
// materials. The materials exist before their pipelines so entities can
// point at them while the descriptor layout is still being built.
type Materials struct {
	byName    map[string]*ecs.Material
	layout    gpu.PipelineLayout
	pipelines []gpu.Pipeline
	logger    *slog.Logger
}

func NewMaterials(logger *slog.Logger) *Materials {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materials{
		byName: map[string]*ecs.Material{
			MaterialSolid:     {Name: MaterialSolid},
			MaterialWireframe: {Name: MaterialWireframe},
		},
		logger: logger,
	}
}

// ByName is the name-to-material map handed to scene population.
func (m *Materials) ByName() map[string]*ecs.Material { return m.byName }

func (m *Materials) Layout() gpu.PipelineLayout { return m.layout }

// Build creates the pipeline layout over setLayout, a filled pipeline and,
// when the device supports it, a line pipeline. Without line support both
// materials draw filled.
func (m *Materials) Build(dev gpu.Device, setLayout gpu.DescriptorSetLayout, shaders Shaders) error {
	layout, err := dev.CreatePipelineLayout([]gpu.DescriptorSetLayout{setLayout})
	if err != nil {
		return errors.Wrap(err, "systems: create pipeline layout")
	}
	m.layout = layout

	desc := gpu.PipelineDesc{
		Name:             MaterialSolid,
		VertexSPIRV:      shaders.Vertex,
		FragmentSPIRV:    shaders.Fragment,
		Layout:           layout,
		VertexStride:     ecs.VertexSize,
		Attributes:       ecs.VertexAttributes,
		Polygon:          gpu.PolygonFill,
		DepthTest:        true,
		CounterClockwise: true,
	}
	fill, err := dev.CreatePipeline(desc)
	if err != nil {
		m.Destroy()
		return errors.Wrap(err, "systems: create solid pipeline")
	}
	m.pipelines = append(m.pipelines, fill)

	desc.Name = MaterialWireframe
	desc.Polygon = gpu.PolygonLine
	line, err := dev.CreatePipeline(desc)
	if err != nil {
		m.logger.Warn("wireframe unavailable, drawing filled", "err", err)
	} else {
		m.pipelines = append(m.pipelines, line)
	}

	solid := m.byName[MaterialSolid]
	solid.Solid = fill
	solid.Wireframe = line

	wire := m.byName[MaterialWireframe]
	wire.Solid = fill
	wire.Wireframe = line
	if line != nil {
		wire.Solid = line
	}
	return nil
}

// Destroy releases the pipelines and the layout. The materials keep their
// names but no longer carry pipelines.
func (m *Materials) Destroy() {
	for _, p := range m.pipelines {
		p.Destroy()
	}
	m.pipelines = nil
	for _, mat := range m.byName {
		mat.Solid = nil
		mat.Wireframe = nil
	}
	if m.layout != nil {
		m.layout.Destroy()
		m.layout = nil
	}
}
