// Package config provides configuration management for svcenv.
//
// This package implements a layered configuration system. Configuration is
// loaded from multiple sources and merged in a specific order, with later
// sources overriding earlier ones.
//
// # Configuration Layers
//
//  1. Default Configuration (embedded in binary)
//     - docker as the engine, no project, no services
//
//  2. User Configuration (~/.config/svcenv/config.yaml)
//     - User-specific settings that apply to all projects
//
//  3. Project Configuration (./.svcenv/config.yaml)
//     - Project-specific settings in the current directory
//     - Allows teams to share their service declarations via version control
//
// A single file passed with --config replaces layers 2 and 3.
//
// # Configuration Structure
//
//	project: myapp            # enables the settings store
//	defaultStore: dev         # store used when --store is not given
//	engine: docker            # or podman
//	services:
//	  - service: postgres
//	    name: db
//	    tag: "16"
//	    options:
//	      database: app
//	      password: ${DB_PASSWORD:-secret}
//	    env:
//	      DATABASE_URL: "{{ .url }}"
//
// Services are registered in the order they are declared. When two layers
// declare a service with the same name (or the same service id when no name
// is given) the later layer replaces the earlier definition in place.
//
// Env values are Go templates evaluated against the data the service reports
// once it is ready; see package template for the available functions.
package config
