package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/azybler/meshvis/pkg/geom"
	"github.com/azybler/meshvis/pkg/httpapi"
	"github.com/azybler/meshvis/pkg/mesh"
	"github.com/azybler/meshvis/pkg/rayengine"
)

func main() {
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	precise := flag.Bool("precise", false, "use the double-precision watertight intersector")
	flag.Parse()

	start := time.Now()

	// A mesh loader is outside this engine's scope; the server boots
	// against a flat ground plane so the HTTP surface is exercisable
	// without an external asset pipeline. Real deployments insert their
	// own meshes via the embedding program before serving.
	plane, err := mesh.New(0, "ground", []float32{
		-1000, -1000, 0,
		1000, -1000, 0,
		1000, 1000, 0,
		-1000, 1000, 0,
	}, []uint32{0, 1, 2, 0, 2, 3}, geom.NewEulerRotation(0, 0, 0))
	if err != nil {
		log.Fatalf("building ground plane: %v", err)
	}

	engine, err := rayengine.NewFromMeshes([]*mesh.MeshInfo{plane}, *precise)
	if err != nil {
		log.Fatalf("building ray engine: %v", err)
	}
	defer engine.Release()

	log.Printf("ready in %s: %d mesh(es), %d triangle(s), precise=%v",
		time.Since(start).Round(time.Millisecond), engine.MeshCount(), engine.TriangleCount(), engine.Precise())

	addr := fmt.Sprintf(":%d", *port)
	cfg := httpapi.DefaultConfig(addr)
	cfg.CORSOrigin = *corsOrigin

	handlers := httpapi.NewHandlers(engine)
	srv := httpapi.NewServer(cfg, handlers)

	if err := httpapi.ListenAndServe(srv); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
