// Package store persists the settings records services produce once they are
// ready, so a later run, `show` or `tool` can reuse passwords, ports and
// volumes. Records are flat string maps kept as YAML files, one per instance.
package store
