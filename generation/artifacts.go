package generation

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Artifact file suffixes, appended to the target name.
const (
	SuffixTrackingData = ".tracking.yaml"
	SuffixAuthoring    = ".3dt"
	SuffixMesh         = ".glb"
	SuffixDatabaseXML  = ".xml"
	SuffixDatabaseDat  = ".dat"
	SuffixPackage      = ".zip"
)

// ArtifactPath returns the path of the artifact with suffix for req.
func ArtifactPath(req Request, suffix string) string {
	return filepath.Join(req.OutputDirectory, req.TargetName+suffix)
}

// Bounds is the axis-aligned box around all keyframe positions.
type Bounds struct {
	Min [3]float64 `yaml:"min,flow" json:"min"`
	Max [3]float64 `yaml:"max,flow" json:"max"`
}

// Size returns the extent of the box along each axis.
func (b Bounds) Size() [3]float64 {
	return [3]float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// ComputeBounds returns the bounds of keyframes, or a zero box when empty.
func ComputeBounds(keyframes []Keyframe) Bounds {
	if len(keyframes) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: keyframes[0].Position, Max: keyframes[0].Position}
	for _, kf := range keyframes[1:] {
		for axis := 0; axis < 3; axis++ {
			b.Min[axis] = math.Min(b.Min[axis], kf.Position[axis])
			b.Max[axis] = math.Max(b.Max[axis], kf.Position[axis])
		}
	}
	return b
}

// TrackingData is the intermediate result of the tracking data phase.
type TrackingData struct {
	Target    string     `yaml:"target"`
	JobID     string     `yaml:"job_id"`
	CreatedAt time.Time  `yaml:"created_at"`
	Bounds    Bounds     `yaml:"bounds"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

// AuthoringMetadata is the content of the .3dt authoring file.
type AuthoringMetadata struct {
	Format    string    `yaml:"format"`
	Version   int       `yaml:"version"`
	Target    string    `yaml:"target"`
	CreatedAt time.Time `yaml:"created_at"`
	Keyframes int       `yaml:"keyframes"`
	Bounds    Bounds    `yaml:"bounds"`
	Mesh      string    `yaml:"mesh"`
}

type databaseConfig struct {
	XMLName xml.Name           `xml:"ARConfig"`
	Version string             `xml:"version,attr"`
	Targets []databaseAreaItem `xml:"Tracking>AreaTarget"`
}

type databaseAreaItem struct {
	Name     string `xml:"name,attr"`
	DataFile string `xml:"dataFile,attr"`
	Size     string `xml:"size,attr"`
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes to a temporary file in the same directory and renames it.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeTrackingData(req Request, now time.Time) error {
	return writeYAML(ArtifactPath(req, SuffixTrackingData), TrackingData{
		Target:    req.TargetName,
		JobID:     req.JobID,
		CreatedAt: now.UTC(),
		Bounds:    ComputeBounds(req.Keyframes),
		Keyframes: req.Keyframes,
	})
}

func writeAuthoringData(req Request, now time.Time) error {
	meta := AuthoringMetadata{
		Format:    "3dt",
		Version:   1,
		Target:    req.TargetName,
		CreatedAt: now.UTC(),
		Keyframes: len(req.Keyframes),
		Bounds:    ComputeBounds(req.Keyframes),
		Mesh:      req.TargetName + SuffixMesh,
	}
	if err := writeYAML(ArtifactPath(req, SuffixAuthoring), meta); err != nil {
		return err
	}

	glb, err := EncodeGLB(req.TargetName, req.Keyframes)
	if err != nil {
		return err
	}
	return writeFileAtomic(ArtifactPath(req, SuffixMesh), glb)
}

func writeDeviceDatabase(req Request) error {
	size := ComputeBounds(req.Keyframes).Size()
	cfg := databaseConfig{
		Version: "1.0",
		Targets: []databaseAreaItem{{
			Name:     req.TargetName,
			DataFile: req.TargetName + SuffixDatabaseDat,
			Size:     fmt.Sprintf("%.3f %.3f %.3f", size[0], size[1], size[2]),
		}},
	}
	out, err := xml.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode database config: %w", err)
	}
	out = append([]byte(xml.Header), out...)
	if err := writeFileAtomic(ArtifactPath(req, SuffixDatabaseXML), out); err != nil {
		return err
	}

	tracking, err := os.ReadFile(ArtifactPath(req, SuffixTrackingData))
	if err != nil {
		return fmt.Errorf("tracking data unavailable: %w", err)
	}
	dat, err := zipEntries(map[string][]byte{"tracking.yaml": tracking})
	if err != nil {
		return err
	}
	return writeFileAtomic(ArtifactPath(req, SuffixDatabaseDat), dat)
}

func writePackage(req Request) error {
	entries := make(map[string][]byte)
	for _, suffix := range []string{SuffixAuthoring, SuffixMesh, SuffixDatabaseXML, SuffixDatabaseDat} {
		path := ArtifactPath(req, suffix)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("package input %s unavailable: %w", filepath.Base(path), err)
		}
		entries[filepath.Base(path)] = data
	}
	out, err := zipEntries(entries)
	if err != nil {
		return err
	}
	return writeFileAtomic(ArtifactPath(req, SuffixPackage), out)
}

func zipEntries(entries map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := io.Copy(w, bytes.NewReader(entries[name])); err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// GLB container constants (binary glTF 2.0).
const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A // "JSON"
)

// EncodeGLB encodes a binary glTF container holding one node per keyframe.
func EncodeGLB(name string, keyframes []Keyframe) ([]byte, error) {
	type node struct {
		Name        string     `json:"name"`
		Translation [3]float64 `json:"translation"`
		Rotation    [4]float64 `json:"rotation"`
	}
	doc := struct {
		Asset  map[string]string `json:"asset"`
		Scene  int               `json:"scene"`
		Scenes []map[string]any  `json:"scenes"`
		Nodes  []node            `json:"nodes,omitempty"`
	}{
		Asset: map[string]string{"version": "2.0", "generator": "areacapture"},
	}

	indices := make([]int, 0, len(keyframes))
	for i, kf := range keyframes {
		rot := kf.Rotation
		if rot == [4]float64{} {
			rot[3] = 1
		}
		doc.Nodes = append(doc.Nodes, node{
			Name:        fmt.Sprintf("keyframe-%d", kf.Index),
			Translation: kf.Position,
			Rotation:    rot,
		})
		indices = append(indices, i)
	}
	doc.Scenes = []map[string]any{{"name": name, "nodes": indices}}

	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mesh document: %w", err)
	}
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}

	var buf bytes.Buffer
	header := []uint32{glbMagic, glbVersion, uint32(12 + 8 + len(js))}
	chunk := []uint32{uint32(len(js)), glbChunkJSON}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, chunk); err != nil {
		return nil, err
	}
	buf.Write(js)
	return buf.Bytes(), nil
}
