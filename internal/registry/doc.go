// Package registry maps "module.function" names to compiled Go functions.
//
// Pipelines and remote callers refer to tool code by name only. The Registry
// is built once at process start from a list of Modules and is then looked
// up on every call, so a changed definition never needs to rebind an
// existing object.
package registry
