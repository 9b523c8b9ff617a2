// Package geometry converts RenderWare .rws streams into Wavefront OBJ+MTL:
// model clumps from the models directory and terrain worlds (plane/atomic
// sector trees) from the terrains directory.
package geometry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"psprip/internal/config"
	"psprip/internal/extract"
	"psprip/internal/report"
	"psprip/internal/rw"
)

const (
	modelsDirName   = "models"
	terrainsDirName = "terrains"
	outputDirName   = "rws_obj"
)

// Converter extracts RWS geometry to OBJ.
type Converter struct {
	mode  string
	limit int
}

// New builds the geometry converter from configuration.
func New(cfg *config.Config) *Converter {
	return &Converter{mode: cfg.Geometry.Mode, limit: cfg.Geometry.Limit}
}

// Kind implements extract.Converter.
func (c *Converter) Kind() report.Kind {
	return report.KindGeometry
}

// Run executes the models pass, the terrains pass, or both depending on the
// configured mode.
func (c *Converter) Run(ctx context.Context, req extract.Request) (extract.Result, error) {
	var res extract.Result

	runModels := c.mode == "all" || c.mode == modelsDirName
	runTerrains := c.mode == "all" || c.mode == terrainsDirName

	var modelsRoot, terrainsRoot string
	if runModels {
		root, ok := extract.SubDir(req.InputRoot, modelsDirName)
		if !ok {
			return res, extract.Wrap(extract.ErrConverterSetup, "geometry", "setup",
				fmt.Sprintf("no %s directory under %s", modelsDirName, req.InputRoot), nil)
		}
		modelsRoot = root
	}
	if runTerrains {
		root, ok := extract.SubDir(req.InputRoot, terrainsDirName)
		if !ok {
			return res, extract.Wrap(extract.ErrConverterSetup, "geometry", "setup",
				fmt.Sprintf("no %s directory under %s", terrainsDirName, req.InputRoot), nil)
		}
		terrainsRoot = root
	}

	outRoot := filepath.Join(req.OutputRoot, outputDirName)
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return res, extract.Wrap(extract.ErrConverterSetup, "geometry", "setup", "create output directory", err)
	}

	if runModels {
		if err := c.runPass(ctx, modelsRoot, filepath.Join(outRoot, modelsDirName), modelsDirName, extractModelFile, req.Log, &res); err != nil {
			return res, err
		}
	}
	if runTerrains {
		if err := c.runPass(ctx, terrainsRoot, filepath.Join(outRoot, terrainsDirName), terrainsDirName, extractTerrainFile, req.Log, &res); err != nil {
			return res, err
		}
	}
	req.Log.Logf("geometry done: files=%d exported=%d failures=%d", res.Found, res.Converted, res.Skipped)
	return res, nil
}

type passFunc func(blob []byte, stem, outDir string) (exported, objects, failures int)

func (c *Converter) runPass(ctx context.Context, inRoot, outDir, label string, pass passFunc, log extract.LogFunc, res *extract.Result) error {
	files, err := extract.ListFiles(inRoot, ".rws")
	if err != nil {
		return extract.Wrap(extract.ErrConverterSetup, "geometry", "setup", "list rws files", err)
	}
	files = extract.Limit(files, c.limit)
	res.Found += len(files)

	for _, file := range files {
		if err := extract.Cancelled(ctx); err != nil {
			return err
		}
		blob, err := os.ReadFile(file)
		if err != nil {
			res.Skipped++
			log.Logf("[%s] %s: read: %v", label, filepath.Base(file), err)
			continue
		}
		stem := extract.Stem(file)
		perOut := filepath.Join(outDir, stem)
		if err := os.MkdirAll(perOut, 0o755); err != nil {
			res.Skipped++
			log.Logf("[%s] %s: create output dir: %v", label, filepath.Base(file), err)
			continue
		}
		exported, objects, failures := pass(blob, stem, perOut)
		res.Converted += exported
		res.Skipped += failures
		log.Logf("[%s] %s: exported=%d objects=%d failures=%d", label, filepath.Base(file), exported, objects, failures)
	}
	return nil
}

// extractModelFile exports every clump in the stream as one OBJ file.
func extractModelFile(blob []byte, stem, outDir string) (exported, objects, failures int) {
	for ci, clumpChunk := range rw.FindClumps(blob) {
		clump, err := rw.ParseClump(blob, clumpChunk)
		if err != nil {
			failures++
			continue
		}

		set := newMaterialSet()
		var objs []*objObject
		worldMats := frameWorldMats(clump.Frames)

		if len(clump.Atomics) > 0 {
			for ai, atomic := range clump.Atomics {
				if atomic.GeometryIndex < 0 || atomic.GeometryIndex >= len(clump.Geometries) {
					continue
				}
				geom := &clump.Geometries[atomic.GeometryIndex]
				matNames := materialNamesForGeometry(geom, fmt.Sprintf("g%03d", atomic.GeometryIndex), set)

				objName := fmt.Sprintf("atomic_%03d", ai)
				if atomic.FrameIndex >= 0 && atomic.FrameIndex < len(clump.Frames) {
					if frameName := clump.Frames[atomic.FrameIndex].Name; frameName != "" {
						objName = frameName
					}
				}
				transform, ok := worldMats[atomic.FrameIndex]
				if !ok {
					transform = identity()
				}
				if obj := buildObjObject(geom, objName, transform, matNames); obj != nil {
					objs = append(objs, obj)
				}
			}
		} else {
			for gi := range clump.Geometries {
				geom := &clump.Geometries[gi]
				matNames := materialNamesForGeometry(geom, fmt.Sprintf("g%03d", gi), set)
				if obj := buildObjObject(geom, fmt.Sprintf("geometry_%03d", gi), identity(), matNames); obj != nil {
					objs = append(objs, obj)
				}
			}
		}

		if len(objs) == 0 {
			continue
		}
		objPath := filepath.Join(outDir, fmt.Sprintf("%s_clump_%03d.obj", stem, ci))
		if err := writeObjAndMtl(objPath, objs, set); err != nil {
			failures++
			continue
		}
		exported++
		objects += len(objs)
	}
	return exported, objects, failures
}

// extractTerrainFile exports every world in the stream as one OBJ file built
// from its atomic sectors.
func extractTerrainFile(blob []byte, stem, outDir string) (exported, objects, failures int) {
	for wi, world := range rw.FindWorlds(blob) {
		worldMaterials, err := rw.ParseWorldMaterials(blob, world)
		if err != nil {
			failures++
			continue
		}

		set := newMaterialSet()
		var matNames []string
		if len(worldMaterials) > 0 {
			for mi, mat := range worldMaterials {
				tex := textureNameFor(mat)
				if tex == "" {
					tex = "solid"
				}
				matNames = append(matNames, set.register(fmt.Sprintf("world_m%03d_%s", mi, tex), mat))
			}
		} else {
			matNames = append(matNames, set.registerDefault())
		}

		root, ok := rw.FindWorldRootSector(blob, world)
		if !ok {
			continue
		}
		var objs []*objObject
		for si, sector := range rw.CollectAtomicSectors(blob, root) {
			geom, err := rw.ParseSectorGeometry(blob, sector, worldMaterials)
			if err != nil || geom == nil {
				if err != nil {
					failures++
				}
				continue
			}
			if obj := buildObjObject(geom, fmt.Sprintf("sector_%04d", si), identity(), matNames); obj != nil {
				objs = append(objs, obj)
			}
		}

		if len(objs) == 0 {
			continue
		}
		objPath := filepath.Join(outDir, fmt.Sprintf("%s_world_%03d.obj", stem, wi))
		if err := writeObjAndMtl(objPath, objs, set); err != nil {
			failures++
			continue
		}
		exported++
		objects += len(objs)
	}
	return exported, objects, failures
}
