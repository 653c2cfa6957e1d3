package renderer

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gosketch/shader"
	"github.com/richinsley/gosketch/translator"
	gst "github.com/richinsley/goshadertranslator"
)

// program is a linked pass shader with its uniform locations resolved
// through the translator's name mapping.
type program struct {
	id   uint32
	locs map[string]int32
}

// newPassProgram translates a WebGL2 fragment source, links it against the
// full-screen vertex shader and looks up the named uniforms.
func newPassProgram(fragmentSource string, uniforms ...string) (*program, error) {
	code, vars, err := translator.Fragment(fragmentSource)
	if err != nil {
		return nil, err
	}
	id, err := newProgram(shader.VertexShader(), code)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}
	p := &program{id: id, locs: make(map[string]int32, len(uniforms))}
	for _, name := range uniforms {
		p.locs[name] = uniformLocation(vars, id, name)
	}
	return p, nil
}

// loc returns the location of a uniform, or -1 when the compiler dropped it.
func (p *program) loc(name string) int32 {
	if l, ok := p.locs[name]; ok {
		return l
	}
	return -1
}

func (p *program) delete() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

func uniformLocation(vars map[string]gst.ShaderVariable, prog uint32, name string) int32 {
	if v, ok := vars[name]; ok {
		return gl.GetUniformLocation(prog, gl.Str(v.MappedName+"\x00"))
	}
	return -1
}

func newProgram(vertexShaderSource, fragmentShaderSource string) (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)
	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link program: %v", log)
	}
	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %v", logText)
	}
	return shader, nil
}
