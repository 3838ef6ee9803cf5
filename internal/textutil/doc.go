// Package textutil cleans transcript text before it is stored and shortens it
// for terminal previews.
package textutil
