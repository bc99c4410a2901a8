// Package containerizer drives a local container engine (docker or podman)
// through its command line interface.
//
// svcenv never talks to the engine API directly. Every operation is a CLI
// invocation:
//
//	docker pull <repository>:<tag>
//	docker run --rm --name <name> [options...] <image> [command...]
//	docker exec <name> <command...>
//	docker stop <name>
//	docker volume rm -f <volume>
//
// `run` is kept in the foreground; the returned Process is the handle the
// supervisor kills during teardown, followed by a best-effort `stop`.
package containerizer
