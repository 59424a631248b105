package testbed

import (
	"github.com/chewxy/math32"

	"github.com/prismrender/prism/engine"
	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer/components"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	worldCamera *components.Camera

	width  uint32
	height uint32

	cube   *metadata.Mesh
	sphere *metadata.Mesh
	floor  *metadata.Mesh

	cubeMaterial   *metadata.Material
	sphereMaterial *metadata.Material
	floorMaterial  *metadata.Material

	orbitAngle float32
	pulseTime  float32
}

func NewTestGame(cfg *config.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
			State: &gameState{
				worldCamera: components.NewCamera(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize

	return tg
}

func (tg *TestGame) Initialize() error {
	core.LogInfo("initializing test scene")
	state := tg.State.(*gameState)
	meshes := tg.SystemManager.Meshes
	materials := tg.SystemManager.Materials

	state.cube = meshes.CreateMeshFromShape(metadata.ShapeConfig{
		Kind:  metadata.ShapeCube,
		Width: 2, Height: 2, Depth: 2,
	})
	state.sphere = meshes.CreateMeshFromShape(metadata.ShapeConfig{
		Kind:     metadata.ShapeSphere,
		Radius:   1.2,
		Segments: 32,
		Rings:    24,
	})
	state.floor = meshes.CreateMeshFromShape(metadata.ShapeConfig{
		Kind:  metadata.ShapePlane,
		Width: 40, Depth: 40,
	})

	var err error
	state.cubeMaterial, err = materials.CreateMaterial(metadata.MaterialFactors{
		Albedo:    math.Vec4{X: 0.9, Y: 0.2, Z: 0.15, W: 1},
		Metallic:  0.1,
		Roughness: 0.6,
	}, metadata.NoTextures())
	if err != nil {
		return err
	}
	state.sphereMaterial, err = materials.CreateMaterial(metadata.MaterialFactors{
		Albedo:    math.Vec4{X: 0.8, Y: 0.8, Z: 0.9, W: 1},
		Metallic:  0.9,
		Roughness: 0.15,
	}, metadata.NoTextures())
	if err != nil {
		return err
	}
	state.floorMaterial, err = materials.CreateMaterial(metadata.MaterialFactors{
		Albedo:    math.Vec4{X: 0.3, Y: 0.35, Z: 0.3, W: 1},
		Metallic:  0,
		Roughness: 0.95,
	}, metadata.NoTextures())
	if err != nil {
		return err
	}

	state.worldCamera.Position = math.NewVec3(0, 6, 12)
	state.worldCamera.Target = math.NewVec3Zero()
	return nil
}

func (tg *TestGame) Update(deltaTime float64) error {
	state := tg.State.(*gameState)

	state.orbitAngle += float32(deltaTime) * 0.4
	state.pulseTime += float32(deltaTime)

	radius := float32(12)
	sin, cos := math32.Sincos(state.orbitAngle)
	state.worldCamera.Position = math.NewVec3(radius*sin, 6, radius*cos)

	// Slow roughness pulse on the sphere exercises the dirty-batch upload
	// path every few frames.
	state.sphereMaterial.SetRoughnessFactor(0.15 + 0.05*(1+math32.Sin(state.pulseTime)))
	return nil
}

func (tg *TestGame) Render(deltaTime float64) (*metadata.DrawData, error) {
	state := tg.State.(*gameState)

	dd := metadata.NewDrawData()
	dd.SetCamera(state.worldCamera)

	dd.AddLight(metadata.Light{
		Kind:      metadata.LightPoint,
		Position:  math.NewVec3(5, 10, 5),
		Color:     math.NewVec4(1, 0.95, 0.9, 1),
		Intensity: 40,
		Range:     60,
	})
	dd.AddLight(metadata.Light{
		Kind:      metadata.LightPoint,
		Position:  math.NewVec3(-8, 4, -3),
		Color:     math.NewVec4(0.3, 0.4, 1, 1),
		Intensity: 15,
		Range:     30,
	})

	var calls []metadata.DrawCallHandle
	addObject := func(mesh *metadata.Mesh, material *metadata.Material, transform math.Mat4) error {
		if mesh == nil || material == nil {
			return nil
		}
		meshRef, err := dd.AddMesh(mesh)
		if err != nil {
			return err
		}
		matRef, err := dd.AddMaterial(material)
		if err != nil {
			return err
		}
		inst, err := dd.AddInstance(transform, matRef, 0)
		if err != nil {
			return err
		}
		call, err := dd.AddDrawCall(meshRef, []metadata.InstanceHandle{inst})
		if err != nil {
			return err
		}
		calls = append(calls, call)
		return nil
	}

	if err := addObject(state.floor, state.floorMaterial, math.NewMat4Identity()); err != nil {
		return nil, err
	}
	if err := addObject(state.cube, state.cubeMaterial,
		math.NewMat4Translation(math.NewVec3(-3, 1, 0))); err != nil {
		return nil, err
	}
	if err := addObject(state.sphere, state.sphereMaterial,
		math.NewMat4Translation(math.NewVec3(3, 1.2, 0))); err != nil {
		return nil, err
	}

	if len(calls) == 0 {
		return dd, nil
	}
	if _, err := dd.AddDeferredShadingDrawPass(calls); err != nil {
		return nil, err
	}
	return dd, nil
}

func (tg *TestGame) OnResize(width, height uint32) error {
	state := tg.State.(*gameState)
	state.width = width
	state.height = height
	if height > 0 {
		state.worldCamera.Aspect = float32(width) / float32(height)
	}
	return nil
}
