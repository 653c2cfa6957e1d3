// Package translator compiles WebGL2 fragment sources to desktop GLSL 4.10
// through a shared shader translator instance.
package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

var (
	once       sync.Once
	translator *gst.ShaderTranslator
	initErr    error
)

// Get returns the process-wide translator, creating it on first use.
func Get() (*gst.ShaderTranslator, error) {
	once.Do(func() {
		translator, initErr = gst.NewShaderTranslator(context.Background())
	})
	return translator, initErr
}

// Fragment translates a WebGL2 fragment shader. The returned map is keyed by
// source uniform name; look locations up with the MappedName.
func Fragment(src string) (string, map[string]gst.ShaderVariable, error) {
	t, err := Get()
	if err != nil {
		return "", nil, fmt.Errorf("shader translator unavailable: %w", err)
	}
	out, err := t.TranslateShader(src, "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return "", nil, fmt.Errorf("fragment shader translation failed: %w", err)
	}
	return out.Code, out.Variables, nil
}
