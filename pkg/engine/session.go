// Package engine ties the volume, rendering, reformatting, geometry, and
// segmentation components together behind one rendering-session context.
// A Session is the single logical owner of the volume and of every cache;
// components receive it explicitly rather than reaching for shared state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"volrender/internal/logging"
	"volrender/internal/models"
	"volrender/pkg/config"
	"volrender/pkg/mesh"
	"volrender/pkg/mpr"
	"volrender/pkg/render"
	"volrender/pkg/segment"
	"volrender/pkg/transfer"
	"volrender/pkg/volume"
)

// ErrNoVolume is returned by operations that need a loaded volume where a
// degraded fallback is not part of the contract (MPR, segmentation).
var ErrNoVolume = errors.New("engine: no volume loaded")

// Session is a rendering session: the owner of the loaded volume, the
// active transfer function, the lazily-built gradient field, and the mesh
// cache. All mutation goes through the session; it is safe for one
// logical caller, with a mutex guarding against accidental interleaving
// rather than enabling concurrent writers.
type Session struct {
	mu sync.Mutex

	cfg *config.Config

	loader    *volume.Loader
	vol       *volume.Volume
	gradients *volume.GradientField

	tf       *transfer.Function
	pipeline *render.Pipeline
	mpr      *mpr.Reformatter

	meshes    *mesh.Builder
	segmenter *segment.Segmenter
}

// NewSession creates a session from the given configuration (defaults when
// nil).
func NewSession(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	tf, err := transfer.NewPreset(transfer.Preset(cfg.Rendering.Preset))
	if err != nil {
		return nil, fmt.Errorf("session setup: %w", err)
	}
	quality, err := render.ParseQuality(cfg.Rendering.Quality)
	if err != nil {
		return nil, fmt.Errorf("session setup: %w", err)
	}
	mode, err := render.ParseMode(cfg.Rendering.Mode)
	if err != nil {
		return nil, fmt.Errorf("session setup: %w", err)
	}

	pipeline := render.NewPipeline()
	pipeline.SetQuality(quality)
	pipeline.SetMode(mode)
	pipeline.SetTransferFunction(tf)

	builder := mesh.NewBuilder(cfg.Mesh.CacheCapacity)
	builder.DecimationCeiling = cfg.Mesh.DecimationCeiling

	return &Session{
		cfg: cfg,
		loader: &volume.Loader{
			BatchSize:     cfg.Loading.BatchSize,
			MaxTextureDim: cfg.Loading.MaxTextureDim,
		},
		tf:        tf,
		pipeline:  pipeline,
		meshes:    builder,
		segmenter: &segment.Segmenter{Workers: cfg.Segmentation.Workers},
	}, nil
}

// LoadVolume assembles the slice series into a volume and makes it the
// session's current volume. The load builds into a fresh volume and the
// session swaps only on success, so cancellation or failure leaves the
// previous volume intact.
func (s *Session) LoadVolume(ctx context.Context, slices []models.Slice) (*volume.Volume, error) {
	vol, err := s.loader.Load(ctx, slices)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vol = vol
	s.gradients = nil
	s.pipeline.SetVolume(vol)
	s.pipeline.SetWindowLevel(vol.WindowCenter, vol.WindowWidth)
	s.mpr = mpr.New(vol)
	return vol, nil
}

// Volume returns the session's current volume, or nil.
func (s *Session) Volume() *volume.Volume {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vol
}

// Render produces one frame at the given viewport size. With no volume
// loaded it returns the pipeline's neutral fallback frame; the
// presentation loop never stalls on missing content.
func (s *Session) Render(width, height int) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Shading and isosurface normals want gradients; build them lazily on
	// the first frame that needs them.
	if s.vol != nil && s.gradients == nil {
		g, err := volume.ComputeGradients(context.Background(), s.vol)
		if err != nil {
			return nil, err
		}
		s.gradients = g
		s.pipeline.SetGradients(g)
	}
	return s.pipeline.Render(width, height)
}

// SetRenderMode selects the rendering algorithm.
func (s *Session) SetRenderMode(m render.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.SetMode(m)
}

// SetQualityLevel selects the sampling density.
func (s *Session) SetQualityLevel(q render.QualityLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.SetQuality(q)
}

// SetTransferFunctionPreset switches to a named preset.
func (s *Session) SetTransferFunctionPreset(p transfer.Preset) error {
	tf, err := transfer.NewPreset(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tf = tf
	s.pipeline.SetTransferFunction(tf)
	logging.Logger().Info("transfer function preset switched", "preset", string(p))
	return nil
}

// TransferFunction returns the active transfer function.
func (s *Session) TransferFunction() *transfer.Function {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tf
}

// SetWindowLevel sets the normalized display window on both the 3D
// pipeline and the MPR view.
func (s *Session) SetWindowLevel(center, width float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.SetWindowLevel(center, width)
	if s.mpr != nil {
		s.mpr.SetWindowLevel(center, width)
	}
}

// SetOpacity scales per-sample alpha in DVR mode.
func (s *Session) SetOpacity(o float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.SetOpacity(o)
}

// SetBrightness scales the final frame color.
func (s *Session) SetBrightness(b float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.SetBrightness(b)
}

// Camera returns the pipeline's camera for orbit updates.
func (s *Session) Camera() *render.Camera {
	return s.pipeline.Camera
}

// RotateCameraAroundTarget orbits the camera by the given angle deltas.
func (s *Session) RotateCameraAroundTarget(dAzimuth, dElevation float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.Camera.Rotate(dAzimuth, dElevation)
}

// SetCameraDistance clamps and sets the orbit radius.
func (s *Session) SetCameraDistance(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.Camera.SetDistance(d)
}

// MPR returns the reformatter for the loaded volume, or an error when no
// volume is loaded.
func (s *Session) MPR() (*mpr.Reformatter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mpr == nil {
		return nil, ErrNoVolume
	}
	return s.mpr, nil
}

// BuildMesh builds (or returns the cached) mesh for one ROI's contours.
func (s *Session) BuildMesh(key mesh.Key, contours []mesh.Contour, color models.RGBA) (*mesh.Mesh, error) {
	return s.meshes.Build(key, contours, color)
}

// PreloadStructureSet builds meshes for every visible ROI in the set.
func (s *Session) PreloadStructureSet(set *mesh.StructureSet) error {
	return s.meshes.BuildSet(set)
}

// MeshCache exposes the session's mesh cache.
func (s *Session) MeshCache() *mesh.Cache {
	return s.meshes.Cache()
}

// Segment runs one tissue pipeline against the loaded volume. The
// returned mask is owned by the caller.
func (s *Session) Segment(ctx context.Context, params segment.TissueParams) (*segment.Mask, error) {
	vol := s.Volume()
	if vol == nil {
		return nil, ErrNoVolume
	}
	return s.segmenter.Segment(ctx, vol, params)
}

// SegmentOrgans runs the multi-organ batch against the loaded volume.
func (s *Session) SegmentOrgans(ctx context.Context, organs []string) (*segment.Mask, error) {
	vol := s.Volume()
	if vol == nil {
		return nil, ErrNoVolume
	}
	return s.segmenter.SegmentOrgans(ctx, vol, organs)
}

// HandleMemoryPressure synchronously drops the session's rebuildable
// resources: the gradient field, the mesh cache, and the transfer lookup
// texture. The volume itself is kept; rendering continues at the cost of
// rebuilding the dropped caches. Invoked by the host application — the
// engine never evicts in the background.
func (s *Session) HandleMemoryPressure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gradients = nil
	s.pipeline.SetGradients(nil)
	s.meshes.Cache().Clear()
	s.tf.FreeTexture()
	logging.Logger().Info("memory pressure handled, caches dropped")
}

// ReleaseResources drops everything the session owns, including the
// volume. The session remains usable; a new LoadVolume call starts fresh.
func (s *Session) ReleaseResources() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vol = nil
	s.gradients = nil
	s.mpr = nil
	s.pipeline.SetVolume(nil)
	s.meshes.Cache().Clear()
	s.tf.FreeTexture()
	logging.Logger().Info("session resources released")
}
