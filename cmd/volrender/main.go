package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/flywave/go3d/float64/vec3"
	"gopkg.in/yaml.v3"

	"volrender/internal/logging"
	"volrender/internal/models"
	"volrender/pkg/config"
	"volrender/pkg/engine"
	"volrender/pkg/mesh"
	"volrender/pkg/mpr"
	"volrender/pkg/segment"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing 2D slice images (PNG or JPEG)")
	output := flag.String("output", "render.png", "Output rendered frame filename")
	mode := flag.String("mode", "raycast", "Render mode: raycast, mip, or isosurface")
	quality := flag.String("quality", "medium", "Quality level: low, medium, high, or ultra")
	preset := flag.String("preset", "ct-default", "Transfer function preset")
	size := flag.Int("size", 512, "Output frame size in pixels")
	pixelSpacing := flag.Float64("pixel-spacing", 1.0, "In-plane pixel spacing in mm")
	sliceGap := flag.Float64("gap", 1.5, "Inter-slice gap in mm")
	mprSpec := flag.String("mpr", "", "Extract an MPR slice, e.g. axial:12 or coronal:40")
	mprOut := flag.String("mpr-out", "mpr.png", "Output filename for the extracted MPR slice")
	organs := flag.String("segment", "", "Comma-separated organs to segment, e.g. liver,kidneys,spleen")
	maskOut := flag.String("mask-out", "mask_slices", "Directory to save segmentation mask slices")
	contoursPath := flag.String("contours", "", "YAML structure set with contours to mesh")
	meshOut := flag.String("mesh-out", "structures.glb", "Output filename for the exported contour meshes")
	configPath := flag.String("config", "", "Optional YAML configuration file")
	verbose := flag.Bool("verbose", false, "Enable log output")
	flag.Parse()

	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *verbose {
		logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	cfg.Rendering.Mode = *mode
	cfg.Rendering.Quality = *quality
	cfg.Rendering.Preset = *preset

	fmt.Println("================================")
	fmt.Println("VOLRENDER - VOLUMETRIC MEDICAL IMAGE RENDERING")
	fmt.Println("================================")

	session, err := engine.NewSession(cfg)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	// Step 1: Load the slice series into a volume
	fmt.Println("Step 1: Loading slice series...")
	slices, err := loadSliceSeries(*inputDir, *pixelSpacing, *sliceGap)
	if err != nil {
		log.Fatalf("Failed to read slices: %v", err)
	}

	startTime := time.Now()
	vol, err := session.LoadVolume(context.Background(), slices)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	fmt.Printf("Loaded %dx%dx%d volume (%s) in %.2f seconds\n",
		vol.Width, vol.Height, vol.Depth, vol.Format, time.Since(startTime).Seconds())
	fmt.Printf("Voxel spacing: %.2f x %.2f x %.2f mm\n",
		vol.Spacing[0], vol.Spacing[1], vol.Spacing[2])

	// Step 2: Render a frame
	fmt.Printf("Step 2: Rendering %s frame at %s quality...\n", *mode, *quality)
	frame, err := session.Render(*size, *size)
	if err != nil {
		log.Fatalf("Render failed: %v", err)
	}
	if err := savePNG(frame, *output); err != nil {
		log.Fatalf("Failed to save frame: %v", err)
	}
	fmt.Printf("Rendered frame saved to: %s\n", *output)

	// Step 3: Optional MPR extraction
	if *mprSpec != "" {
		fmt.Printf("Step 3: Extracting MPR slice %s...\n", *mprSpec)
		if err := extractMPR(session, *mprSpec, *size, *mprOut); err != nil {
			log.Fatalf("MPR extraction failed: %v", err)
		}
		fmt.Printf("MPR slice saved to: %s\n", *mprOut)
	}

	// Step 4: Optional segmentation
	if *organs != "" {
		names := strings.Split(*organs, ",")
		fmt.Printf("Step 4: Segmenting %d organ(s)...\n", len(names))
		mask, err := session.SegmentOrgans(context.Background(), names)
		if err != nil {
			log.Fatalf("Segmentation failed: %v", err)
		}
		for _, name := range names {
			if p, err := segment.OrganPreset(name); err == nil && mask.HasLabel(p.Label) {
				fmt.Printf("  %-10s %8d voxels  %8.1f mL\n",
					name, mask.VoxelCount(p.Label), mask.VolumeML(p.Label))
			}
		}
		if err := saveMaskSlices(mask, *maskOut); err != nil {
			log.Fatalf("Failed to save mask slices: %v", err)
		}
		fmt.Printf("Mask slices saved to: %s\n", *maskOut)
	}

	// Step 5: Optional contour meshing and export
	if *contoursPath != "" {
		fmt.Println("Step 5: Building contour meshes...")
		set, err := loadStructureSet(*contoursPath)
		if err != nil {
			log.Fatalf("Failed to read structure set: %v", err)
		}
		if err := session.PreloadStructureSet(set); err != nil {
			log.Fatalf("Mesh building failed: %v", err)
		}
		var meshes []*mesh.Mesh
		for _, roi := range set.ROIs {
			if !roi.Visible {
				continue
			}
			if m, ok := session.MeshCache().Get(mesh.Key{StructureSetID: set.ID, ROINumber: roi.Number}); ok {
				meshes = append(meshes, m)
			}
		}
		if err := mesh.ExportGLTF(meshes, *meshOut); err != nil {
			log.Fatalf("Mesh export failed: %v", err)
		}
		fmt.Printf("Exported %d structure mesh(es) to: %s\n", len(meshes), *meshOut)
	}

	fmt.Println("\nDone.")
}

// structureSetFile is the YAML schema for contour input.
type structureSetFile struct {
	ID   string `yaml:"id"`
	ROIs []struct {
		Number   int        `yaml:"number"`
		Name     string     `yaml:"name"`
		Color    [4]float64 `yaml:"color"`
		Visible  *bool      `yaml:"visible"`
		Contours []struct {
			Type   string       `yaml:"type"`
			Points [][3]float64 `yaml:"points"`
		} `yaml:"contours"`
	} `yaml:"rois"`
}

var contourTypes = map[string]mesh.GeometricType{
	"point":            mesh.TypePoint,
	"open-planar":      mesh.TypeOpenPlanar,
	"open-nonplanar":   mesh.TypeOpenNonplanar,
	"closed-planar":    mesh.TypeClosedPlanar,
	"closed-nonplanar": mesh.TypeClosedNonplanar,
}

// loadStructureSet reads a YAML structure set into mesh input types.
// ROIs default to visible when the field is omitted.
func loadStructureSet(path string) (*mesh.StructureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file structureSetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing structure set: %w", err)
	}

	set := &mesh.StructureSet{ID: file.ID}
	for _, r := range file.ROIs {
		roi := mesh.ROI{
			Number:  r.Number,
			Name:    r.Name,
			Color:   models.RGBA{R: r.Color[0], G: r.Color[1], B: r.Color[2], A: r.Color[3]},
			Visible: r.Visible == nil || *r.Visible,
		}
		for _, c := range r.Contours {
			gt, ok := contourTypes[c.Type]
			if !ok {
				return nil, fmt.Errorf("unknown contour type %q in ROI %s", c.Type, r.Name)
			}
			points := make([]vec3.T, len(c.Points))
			for i, p := range c.Points {
				points[i] = vec3.T{p[0], p[1], p[2]}
			}
			roi.Contours = append(roi.Contours, mesh.Contour{Points: points, Type: gt})
		}
		set.ROIs = append(set.ROIs, roi)
	}
	return set, nil
}

// seriesSidecar is the optional series.yaml metadata next to the slice
// images. Values present in the sidecar override the command line flags.
type seriesSidecar struct {
	PixelSpacing float64 `yaml:"pixelSpacing"`
	SliceGap     float64 `yaml:"sliceGap"`
	WindowCenter float64 `yaml:"windowCenter"`
	WindowWidth  float64 `yaml:"windowWidth"`
}

// loadSliceSeries decodes every PNG/JPEG in the directory into a 16-bit
// slice series, ordered by the numeric part of the filenames.
func loadSliceSeries(dir string, pixelSpacing, gap float64) ([]models.Slice, error) {
	var sidecar seriesSidecar
	if data, err := os.ReadFile(filepath.Join(dir, "series.yaml")); err == nil {
		if err := yaml.Unmarshal(data, &sidecar); err != nil {
			return nil, fmt.Errorf("error parsing series.yaml: %w", err)
		}
		if sidecar.PixelSpacing > 0 {
			pixelSpacing = sidecar.PixelSpacing
		}
		if sidecar.SliceGap > 0 {
			gap = sidecar.SliceGap
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".png" || ext == ".jpg" || ext == ".jpeg" {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PNG or JPEG images found in %s", dir)
	}
	sort.Slice(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	slices := make([]models.Slice, 0, len(files))
	for i, name := range files {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		z := float64(i) * gap
		slices = append(slices, models.Slice{
			Pixels:         grayPixels(img),
			Width:          img.Bounds().Dx(),
			Height:         img.Bounds().Dy(),
			Format:         models.FormatUint16,
			PixelSpacing:   [2]float64{pixelSpacing, pixelSpacing},
			Thickness:      gap,
			Position:       &[3]float64{0, 0, z},
			InstanceNumber: i + 1,
			WindowCenter:   sidecar.WindowCenter,
			WindowWidth:    sidecar.WindowWidth,
		})
	}
	return slices, nil
}

// extractNumber extracts the numeric part from a filename for ordering.
func extractNumber(filename string) int {
	num := 0
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			num = num*10 + int(c-'0')
		}
	}
	return num
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.ToLower(filepath.Ext(path)) == ".png" {
		return png.Decode(f)
	}
	return jpeg.Decode(f)
}

// grayPixels converts an image to 16-bit grayscale samples, little-endian.
func grayPixels(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, b.Dx()*b.Dy()*2)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			out[i] = byte(g.Y)
			out[i+1] = byte(g.Y >> 8)
			i += 2
		}
	}
	return out
}

// extractMPR parses an orientation:index spec and saves that slice.
func extractMPR(session *engine.Session, spec string, size int, path string) error {
	parts := strings.SplitN(spec, ":", 2)
	orientation, err := mpr.ParseOrientation(parts[0])
	if err != nil {
		return err
	}
	reformatter, err := session.MPR()
	if err != nil {
		return err
	}
	reformatter.SetPlane(orientation)
	if len(parts) == 2 {
		var idx int
		if _, err := fmt.Sscanf(parts[1], "%d", &idx); err != nil {
			return fmt.Errorf("bad slice index %q: %w", parts[1], err)
		}
		reformatter.SetSliceIndex(idx)
	}
	img, err := reformatter.Render(size, size)
	if err != nil {
		return err
	}
	return savePNG(img, path)
}

// saveMaskSlices writes each mask depth layer as a PNG, label values
// spread over the gray range for inspection.
func saveMaskSlices(mask *segment.Mask, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for z := 0; z < mask.Depth; z++ {
		img := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				if l := mask.At(x, y, z); l != 0 {
					img.SetGray(x, y, color.Gray{Y: 95 + l*10})
				}
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("mask_%03d.png", z))
		if err := savePNG(img, path); err != nil {
			return err
		}
	}
	return nil
}

func savePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
