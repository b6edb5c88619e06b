// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobuffalo/packd"
	"github.com/pkg/errors"
)

const shaderSuffix = ".spv"

// ShaderType is the pipeline stage a shader binary is compiled for.
type ShaderType int

// Shader types known to the loaders.
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
)

// ShaderFile is a compiled shader found by FindShaders.
type ShaderFile struct {
	Name string
	Path string
	Type ShaderType
}

// ShaderFileName is the name a compiled shader is stored under,
// e.g. triangle.vert.spv.
func ShaderFileName(name string, t ShaderType) string {
	if t == FragmentShaderType {
		return name + ".frag" + shaderSuffix
	}
	return name + ".vert" + shaderSuffix
}

// FindShaders lists the compiled shaders below dir. A shader file name
// has exactly three parts: the shader name, its stage (vert or frag)
// and the .spv suffix. Anything else is skipped.
func FindShaders(dir string) ([]ShaderFile, error) {
	var shaders []ShaderFile
	if err := filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() || !strings.HasSuffix(f.Name(), shaderSuffix) {
			return nil
		}

		nodes := strings.Split(strings.TrimSuffix(f.Name(), shaderSuffix), ".")
		if len(nodes) != 2 {
			return nil
		}
		switch nodes[1] {
		case "frag":
			shaders = append(shaders, ShaderFile{Name: nodes[0], Path: path, Type: FragmentShaderType})
		case "vert":
			shaders = append(shaders, ShaderFile{Name: nodes[0], Path: path, Type: VertexShaderType})
		}
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "find shaders in %s", dir)
	}

	sort.Slice(shaders, func(i, j int) bool {
		return shaders[i].Path < shaders[j].Path
	})
	return shaders, nil
}

// DirLoader loads assets from a directory on disk.
type DirLoader struct {
	Root string
}

// Load implements gfx.Loader.
func (l DirLoader) Load(name string) ([]byte, error) {
	data, err := ioutil.ReadFile(filepath.Join(l.Root, filepath.FromSlash(name)))
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return data, err
}

// BoxLoader loads assets from a packr box, or anything else that can
// find files by name.
type BoxLoader struct {
	Finder packd.Finder
}

// Load implements gfx.Loader.
func (l BoxLoader) Load(name string) ([]byte, error) {
	data, err := l.Finder.Find(name)
	if err != nil {
		return nil, errors.Wrap(ErrNotFound, err.Error())
	}
	return data, nil
}
