package main

import (
	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/trianglego/shaderc"
	"github.com/NOT-REAL-GAMES/trianglego/systems"
)

const vertexShader = `
#version 450

layout(set = 0, binding = 0) uniform Transforms {
    mat4 model;
    mat4 view;
    mat4 proj;
} ubo;

layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inColor;
layout(location = 2) in vec2 inUV;

layout(location = 0) out vec3 fragColor;
layout(location = 1) out vec2 fragUV;

void main() {
    gl_Position = ubo.proj * ubo.view * ubo.model * vec4(inPosition, 1.0);
    fragColor = inColor;
    fragUV = inUV;
}
`

const fragmentShader = `
#version 450

layout(location = 0) in vec3 fragColor;
layout(location = 1) in vec2 fragUV;

#ifdef TEXTURED
layout(set = 0, binding = 1) uniform sampler2D albedo;
#endif

layout(location = 0) out vec4 outColor;

void main() {
#ifdef TEXTURED
    outColor = vec4(fragColor, 1.0) * texture(albedo, fragUV);
#else
    outColor = vec4(fragColor, 1.0);
#endif
}
`

func compileShaders(textured bool) (systems.Shaders, error) {
	vert, err := shaderc.CompileGLSL(vertexShader, "mesh.vert", shaderc.VertexShader, nil)
	if err != nil {
		return systems.Shaders{}, errors.Wrap(err, "compile vertex shader")
	}

	var defines map[string]string
	if textured {
		defines = map[string]string{"TEXTURED": "1"}
	}
	frag, err := shaderc.CompileGLSL(fragmentShader, "mesh.frag", shaderc.FragmentShader, defines)
	if err != nil {
		return systems.Shaders{}, errors.Wrap(err, "compile fragment shader")
	}
	return systems.Shaders{Vertex: vert, Fragment: frag}, nil
}
