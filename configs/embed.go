// Package configs provides embedded configuration templates for contextos.
//
// How Configuration Templates Work:
//
// Templates are embedded at build time using Go's //go:embed directive.
// This ensures they are available in ALL distributions:
//   - Source builds (go install)
//   - Binary releases
//   - Homebrew installations
//
// The templates are used by:
//   - cmd/contextos/cmd/init.go → generateContextosYAML() - creates .contextos/config.yaml
//   - cmd/contextos/cmd/config.go → creates user config at ~/.config/contextos/config.yaml
//
// Template files:
//   - project-config.example.yaml: Project-specific settings (.contextos/context.yaml + config.yaml)
//   - user-config.example.yaml: Machine-specific settings (thermal, Ollama host)
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//   1. Hardcoded defaults (internal/config/config.go NewConfig())
//   2. User config (~/.config/contextos/config.yaml)
//   3. Project config (.contextos/context.yaml, .contextos/config.yaml)
//   4. Environment variables (CONTEXTOS_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
// Changes will be embedded in the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by: `contextos config init` at ~/.config/contextos/config.yaml
// Contains: Machine-specific settings like thermal management and Ollama host.
// Use case: Settings that apply to all projects on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created by: `contextos init` at .contextos/context.yaml + .contextos/config.yaml
// in the project root.
// Contains: Project-specific settings like ranker weights, budget, agent/sandbox
// caps, and submodule discovery.
// Use case: Settings that are version-controlled with the project.
//
// Important: The template includes commented examples showing how to exclude
// project management directories to prevent ranking pollution.
// See: configs/project-config.example.yaml for the full template.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
