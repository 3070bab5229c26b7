package mesh

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/qmuntal/gltf"
)

const gltfVersion = "2.0"

// BuildDocument assembles the given meshes into a glTF 2.0 document: one
// node and primitive per mesh, positions and normals as float32 vec3
// accessors, indices as uint32 scalars, and the mesh color as the
// material's base color factor.
func BuildDocument(meshes []*Mesh) (*gltf.Document, error) {
	doc := &gltf.Document{}
	doc.Asset.Version = gltfVersion
	sceneIndex := uint32(0)
	doc.Scene = &sceneIndex
	doc.Scenes = append(doc.Scenes, &gltf.Scene{})
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	buffer := doc.Buffers[0]

	for _, m := range meshes {
		if len(m.Vertices) == 0 {
			continue
		}
		buf := bytes.NewBuffer(nil)
		startLen := buffer.ByteLength

		indexView := &gltf.BufferView{Buffer: 0, ByteOffset: startLen}
		for _, idx := range m.Indices {
			binary.Write(buf, binary.LittleEndian, idx)
		}
		indexView.ByteLength = uint32(buf.Len())
		bvIndex := uint32(len(doc.BufferViews))
		doc.BufferViews = append(doc.BufferViews, indexView)

		posView := &gltf.BufferView{Buffer: 0, ByteOffset: startLen + uint32(buf.Len())}
		for _, v := range m.Vertices {
			binary.Write(buf, binary.LittleEndian, [3]float32{float32(v[0]), float32(v[1]), float32(v[2])})
		}
		posView.ByteLength = startLen + uint32(buf.Len()) - posView.ByteOffset
		bvPos := uint32(len(doc.BufferViews))
		doc.BufferViews = append(doc.BufferViews, posView)

		bvNormal := uint32(len(doc.BufferViews))
		if len(m.Normals) > 0 {
			normalView := &gltf.BufferView{Buffer: 0, ByteOffset: startLen + uint32(buf.Len())}
			for _, n := range m.Normals {
				binary.Write(buf, binary.LittleEndian, [3]float32{float32(n[0]), float32(n[1]), float32(n[2])})
			}
			normalView.ByteLength = startLen + uint32(buf.Len()) - normalView.ByteOffset
			doc.BufferViews = append(doc.BufferViews, normalView)
		}

		buffer.ByteLength += uint32(buf.Len())
		buffer.Data = append(buffer.Data, buf.Bytes()...)

		indexAcc := &gltf.Accessor{
			ComponentType: gltf.ComponentUint,
			Type:          gltf.AccessorScalar,
			Count:         uint32(len(m.Indices)),
			BufferView:    &bvIndex,
		}
		accIndex := uint32(len(doc.Accessors))
		doc.Accessors = append(doc.Accessors, indexAcc)

		box := m.Bounds()
		posAcc := &gltf.Accessor{
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec3,
			Count:         uint32(len(m.Vertices)),
			BufferView:    &bvPos,
			Min:           []float32{float32(box.Min[0]), float32(box.Min[1]), float32(box.Min[2])},
			Max:           []float32{float32(box.Max[0]), float32(box.Max[1]), float32(box.Max[2])},
		}
		accPos := uint32(len(doc.Accessors))
		doc.Accessors = append(doc.Accessors, posAcc)

		attrs := gltf.Attribute{"POSITION": accPos}
		if len(m.Normals) > 0 {
			normalAcc := &gltf.Accessor{
				ComponentType: gltf.ComponentFloat,
				Type:          gltf.AccessorVec3,
				Count:         uint32(len(m.Normals)),
				BufferView:    &bvNormal,
			}
			accNormal := uint32(len(doc.Accessors))
			doc.Accessors = append(doc.Accessors, normalAcc)
			attrs["NORMAL"] = accNormal
		}

		matIndex := uint32(len(doc.Materials))
		doc.Materials = append(doc.Materials, &gltf.Material{
			DoubleSided: true,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &[4]float32{
					float32(m.Color.R), float32(m.Color.G), float32(m.Color.B), float32(m.Color.A),
				},
			},
		})

		prim := &gltf.Primitive{
			Attributes: attrs,
			Indices:    &accIndex,
			Material:   &matIndex,
			Mode:       primitiveMode(m.Topology),
		}

		meshIndex := uint32(len(doc.Meshes))
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Primitives: []*gltf.Primitive{prim}})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
		doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: &meshIndex})
	}

	return doc, nil
}

func primitiveMode(t Topology) gltf.PrimitiveMode {
	switch t {
	case TopologyLines:
		return gltf.PrimitiveLines
	case TopologyPoints:
		return gltf.PrimitivePoints
	default:
		return gltf.PrimitiveTriangles
	}
}

// ExportGLTF writes the meshes to a glTF binary (.glb) file.
func ExportGLTF(meshes []*Mesh, path string) error {
	doc, err := BuildDocument(meshes)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating mesh export file: %w", err)
	}
	defer f.Close()

	enc := gltf.NewEncoder(f)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("error encoding glTF: %w", err)
	}
	return nil
}
