// Package deps models the dependency descriptors attached to tool
// environments and filters them for the host platform.
//
// A descriptor lists conda packages, pip packages, pip packages installed
// without their own dependencies, an optional Python version and an optional
// nested descriptor of dependencies that must never block environment
// creation. Every package reference may carry a platform restriction suffix:
//
//	cellpose==3.0.8|win-64,linux-64
//
// The reference then applies only on the listed platforms. Resolution is a
// pure function of the descriptor and the platform; it touches neither the
// network nor the filesystem.
package deps
