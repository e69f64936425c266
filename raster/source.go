package raster

import (
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//MemoryScheme prefix of locations served from the in-process registry
const MemoryScheme = "mem://"

var (
	registryMu sync.RWMutex
	registry   = map[string]*Grid{}
)

//Register publish g under mem://name
func Register(name string, g *Grid) string {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = g
	return MemoryScheme + name
}

//Unregister remove a grid published with Register
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

//Open load the grid addressed by location: mem://name or a path to an ESRI ASCII grid (.asc)
func Open(location string) (*Grid, error) {
	if strings.HasPrefix(location, MemoryScheme) {
		name := strings.TrimPrefix(location, MemoryScheme)
		registryMu.RLock()
		g, ok := registry[name]
		registryMu.RUnlock()
		if !ok {
			return nil, errors.Errorf("no raster registered as %v", location)
		}
		return g, nil
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".asc", ".txt":
		f, err := os.Open(location)
		if err != nil {
			return nil, errors.Wrapf(err, "open raster:%v", location)
		}
		defer f.Close()
		g, err := ReadASCII(f)
		if err != nil {
			return nil, errors.Wrapf(err, "read raster:%v", location)
		}
		return g, nil
	}
	return nil, errors.Errorf("unsupported raster format:%v", location)
}
