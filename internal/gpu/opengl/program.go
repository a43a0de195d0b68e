package opengl

import (
	"embed"
	"fmt"
	"strings"

	"grapple/internal/gpu"

	"github.com/go-gl/gl/v4.1-core/gl"
)

//go:embed shaders/*.vert shaders/*.frag
var shaderFS embed.FS

// program is a linked shader pair plus the vertex array object that holds
// its attribute layout.
type program struct {
	id     uint32
	vao    uint32
	layout gpu.VertexLayout
}

func shaderSources(name string) (vertex, fragment string, err error) {
	v, err := shaderFS.ReadFile("shaders/" + name + ".vert")
	if err != nil {
		return "", "", fmt.Errorf("no vertex shader for program %q", name)
	}
	f, err := shaderFS.ReadFile("shaders/" + name + ".frag")
	if err != nil {
		return "", "", fmt.Errorf("no fragment shader for program %q", name)
	}
	return string(v), string(f), nil
}

func newProgram(desc gpu.ProgramDesc, uniformSlot uint32) (*program, error) {
	vertexSrc, fragmentSrc, err := shaderSources(desc.Name)
	if err != nil {
		return nil, err
	}
	id, err := compileProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", desc.Name, err)
	}

	if desc.UniformBlock != "" {
		idx := gl.GetUniformBlockIndex(id, gl.Str(desc.UniformBlock+"\x00"))
		if idx == gl.INVALID_INDEX {
			gl.DeleteProgram(id)
			return nil, fmt.Errorf("program %q has no uniform block %q", desc.Name, desc.UniformBlock)
		}
		gl.UniformBlockBinding(id, idx, uniformSlot)
	}
	if desc.Sampler != "" {
		gl.UseProgram(id)
		gl.Uniform1i(gl.GetUniformLocation(id, gl.Str(desc.Sampler+"\x00")), 0)
		gl.UseProgram(0)
	}

	p := &program{id: id, layout: desc.Layout}
	gl.GenVertexArrays(1, &p.vao)
	return p, nil
}

// bind makes the program current and points its attributes at vbo.
func (p *program) bind(vbo, ebo uint32) {
	gl.UseProgram(p.id)
	gl.BindVertexArray(p.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	for _, a := range p.layout.Attributes {
		gl.EnableVertexAttribArray(a.Location)
		gl.VertexAttribPointerWithOffset(a.Location, int32(a.Components), gl.FLOAT, false,
			int32(p.layout.Stride), uintptr(a.Offset))
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ebo)
}

func (p *program) delete() {
	gl.DeleteVertexArrays(1, &p.vao)
	gl.DeleteProgram(p.id)
}

func compileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	var shaders [2]uint32
	for i, stage := range []struct {
		src  string
		kind uint32
	}{{vertexSrc, gl.VERTEX_SHADER}, {fragmentSrc, gl.FRAGMENT_SHADER}} {
		id, err := compileShader(stage.src, stage.kind)
		if err != nil {
			return 0, err
		}
		defer gl.DeleteShader(id)
		shaders[i] = id
	}

	id := gl.CreateProgram()
	for _, sh := range shaders {
		gl.AttachShader(id, sh)
	}
	gl.LinkProgram(id)
	if msg, failed := infoLog(id, gl.LINK_STATUS, gl.GetProgramiv, gl.GetProgramInfoLog); failed {
		gl.DeleteProgram(id)
		return 0, fmt.Errorf("link: %s", msg)
	}
	return id, nil
}

func compileShader(source string, kind uint32) (uint32, error) {
	id := gl.CreateShader(kind)
	src, free := gl.Strs(source + "\x00")
	defer free()
	gl.ShaderSource(id, 1, src, nil)
	gl.CompileShader(id)
	if msg, failed := infoLog(id, gl.COMPILE_STATUS, gl.GetShaderiv, gl.GetShaderInfoLog); failed {
		gl.DeleteShader(id)
		stage := "vertex"
		if kind == gl.FRAGMENT_SHADER {
			stage = "fragment"
		}
		return 0, fmt.Errorf("compile %s shader: %s", stage, msg)
	}
	return id, nil
}

// infoLog reads the status flag of a shader or program object and, when it
// is false, the driver's log for it.
func infoLog(id, status uint32,
	getiv func(uint32, uint32, *int32),
	getLog func(uint32, int32, *int32, *uint8),
) (string, bool) {
	var ok int32
	getiv(id, status, &ok)
	if ok != gl.FALSE {
		return "", false
	}
	var n int32
	getiv(id, gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return "no driver log", true
	}
	buf := make([]byte, n)
	getLog(id, n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n"), true
}
