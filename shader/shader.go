// Package shader holds the GLSL sources of the GL backend. The pass shaders
// are written against WebGL2 and go through the translator; the vertex and
// blit shaders are plain GLSL 4.10.
package shader

import (
	"fmt"

	"github.com/richinsley/gosketch/effects"
)

// Uniform names shared by the pass shaders.
const (
	Source      = "u_source"
	Paper       = "u_paper"
	Resolution  = "u_resolution"
	Pigment     = "u_pigment"
	Threshold   = "u_threshold"
	Thickness   = "u_thickness"
	Sensitivity = "u_sensitivity"
	Color       = "u_color"
	Background  = "u_background"
)

// ──────────────────────────────────── GL ──────────────────────────────────────

const vertexShaderSourceGL = `#version 410 core
layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

// Targets store image row 0 in texture row 0, so the flipping blit is the
// one that shows the frame upright on screen.
const blitFragmentShaderSourceFlipGL = `#version 410 core
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, vec2(frag_uv.x, 1.0 - frag_uv.y)); }
`

const blitFragmentShaderSourceGL = `#version 410 core
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, frag_uv); }
`

// ──────────────────────────────── Pass shaders ─────────────────────────────────

const preamble = `#version 300 es
precision highp float;
precision highp int;

uniform sampler2D u_source;
uniform sampler2D u_paper;
uniform vec2      u_resolution; // one texel in uv units

out vec4 fragColor;
`

const watercolorSource = `
uniform float u_pigment;
uniform float u_threshold;

void main()
{
    vec2 uv = gl_FragCoord.xy * u_resolution;
    vec4 c = texture(u_source, uv);

    vec2 t = u_resolution;
    vec4 blur = (texture(u_source, uv + vec2(t.x, 0.0)) +
                 texture(u_source, uv - vec2(t.x, 0.0)) +
                 texture(u_source, uv + vec2(0.0, t.y)) +
                 texture(u_source, uv - vec2(0.0, t.y))) * 0.25;

    float edge = length(c.rgb - blur.rgb);
    float edgeFactor = smoothstep(u_threshold - 0.1, u_threshold + 0.1, edge);

    float grain = texture(u_paper, uv).r;
    float pool = (1.0 - grain) + 0.5 * edgeFactor;
    vec4 wash = mix(c, blur, 0.5) * (1.0 - 0.5 * pool);

    float k = 1.0 - exp(-u_pigment);
    fragColor = vec4(mix(c, wash, k).rgb, 1.0);
}
`

const pencilSource = `
uniform float u_thickness;
uniform float u_sensitivity;
uniform vec3  u_color;
uniform vec3  u_background;

float luma(vec3 c) { return dot(c, vec3(0.299, 0.587, 0.114)); }

float sobel(vec2 uv, vec2 s)
{
    float l[9];
    for (int i = -1; i <= 1; i++) {
        for (int j = -1; j <= 1; j++) {
            l[(i + 1) * 3 + (j + 1)] = luma(texture(u_source, uv + vec2(float(i), float(j)) * s).rgb);
        }
    }
    float left   = l[0] + 2.0 * l[1] + l[2];
    float right  = l[6] + 2.0 * l[7] + l[8];
    float top    = l[0] + 2.0 * l[3] + l[6];
    float bottom = l[2] + 2.0 * l[5] + l[8];
    vec2 g = vec2(right - left, bottom - top);
    return length(g);
}

void main()
{
    vec2 uv = gl_FragCoord.xy * u_resolution;

    vec4 w = texture(u_paper, uv);
    vec2 d = (w.rg - 0.5) * WOBBLE;
    float edge = sobel(uv + d, u_resolution * u_thickness);

    float grain = texture(u_paper, uv * 2.0).r;
    vec3 pencil = u_color * (0.8 + 0.2 * grain);

    float edgeFactor = smoothstep(u_sensitivity - 0.1, u_sensitivity + 0.1, edge);
    fragColor = vec4(mix(u_background, pencil, edgeFactor), 1.0);
}
`

// ────────────────────────────────── Public API ─────────────────────────────────

func VertexShader() string {
	return vertexShaderSourceGL
}

func BlitFragmentShader(flip bool) string {
	if flip {
		return blitFragmentShaderSourceFlipGL
	}
	return blitFragmentShaderSourceGL
}

// WatercolorFragmentShader returns the WebGL2 source of the watercolor pass.
func WatercolorFragmentShader() string {
	return preamble + watercolorSource
}

// PencilFragmentShader returns the WebGL2 source of the pencil-lines pass.
func PencilFragmentShader() string {
	return preamble + fmt.Sprintf("#define WOBBLE %s\n", glslFloat(effects.Wobble)) + pencilSource
}

// glslFloat formats v so GLSL parses it as a float literal.
func glslFloat(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
