// Package dag indexes tasks by id and keeps both edge directions, so that
// invalidation can walk from a task to everything downstream of it.
package dag
